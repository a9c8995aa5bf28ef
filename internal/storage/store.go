// Package storage persists simulation runs: a sqlite index of run metadata
// plus per-run trajectory CSV and metadata JSON files on disk.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/san-kum/varimech/internal/mech"
	"github.com/san-kum/varimech/internal/sim"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	scenario   TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	scheme     TEXT NOT NULL,
	controller TEXT NOT NULL,
	dt         REAL NOT NULL,
	duration   REAL NOT NULL,
	steps      INTEGER NOT NULL,
	params     TEXT NOT NULL,
	metrics    TEXT NOT NULL
)`

// RunMeta describes one stored run.
type RunMeta struct {
	ID         string             `json:"id"`
	Scenario   string             `json:"scenario"`
	Params     map[string]float64 `json:"params,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
	Scheme     string             `json:"scheme"`
	Controller string             `json:"controller"`
	Dt         float64            `json:"dt"`
	Duration   float64            `json:"duration"`
	Steps      int                `json:"steps"`
	Metrics    map[string]float64 `json:"metrics"`
}

// Store is a directory of run subdirectories indexed by a sqlite database.
type Store struct {
	dir string
	db  *sql.DB
}

// Open creates dir if needed and opens (or creates) the run index.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("storage: create %s: %w", dir, err)
	}
	dsn := filepath.Join(dir, "runs.db") + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open index: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: init index: %w", err)
	}
	return &Store{dir: dir, db: db}, nil
}

// Close closes the index database.
func (s *Store) Close() error { return s.db.Close() }

// Dir returns the store's base directory.
func (s *Store) Dir() string { return s.dir }

// Save writes a run directory and indexes it. The returned ID is a fresh
// UUID; meta.ID, meta.CreatedAt and meta.Steps are filled in here.
func (s *Store) Save(meta RunMeta, sys *mech.System, result *sim.Result) (string, error) {
	meta.ID = uuid.NewString()
	meta.CreatedAt = time.Now().UTC()
	meta.Steps = len(result.States)
	if meta.Metrics == nil {
		meta.Metrics = result.Metrics
	}

	runDir := filepath.Join(s.dir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", fmt.Errorf("storage: create run dir: %w", err)
	}

	if err := writeMetadata(filepath.Join(runDir, "metadata.json"), meta); err != nil {
		os.RemoveAll(runDir)
		return "", err
	}
	if err := writeTrajectory(filepath.Join(runDir, "trajectory.csv"), sys, result); err != nil {
		os.RemoveAll(runDir)
		return "", err
	}

	metricsJSON, err := json.Marshal(meta.Metrics)
	if err != nil {
		os.RemoveAll(runDir)
		return "", fmt.Errorf("storage: encode metrics: %w", err)
	}
	paramsJSON, err := json.Marshal(meta.Params)
	if err != nil {
		os.RemoveAll(runDir)
		return "", fmt.Errorf("storage: encode params: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO runs (id, scenario, created_at, scheme, controller, dt, duration, steps, params, metrics)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		meta.ID, meta.Scenario, meta.CreatedAt.UnixMilli(), meta.Scheme,
		meta.Controller, meta.Dt, meta.Duration, meta.Steps,
		string(paramsJSON), string(metricsJSON),
	)
	if err != nil {
		os.RemoveAll(runDir)
		return "", fmt.Errorf("storage: index run: %w", err)
	}
	return meta.ID, nil
}

// List returns all indexed runs, newest first.
func (s *Store) List() ([]RunMeta, error) {
	rows, err := s.db.Query(
		`SELECT id, scenario, created_at, scheme, controller, dt, duration, steps, params, metrics
		 FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("storage: list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunMeta
	for rows.Next() {
		meta, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		runs = append(runs, meta)
	}
	return runs, rows.Err()
}

// Load returns the index entry for one run.
func (s *Store) Load(id string) (RunMeta, error) {
	row := s.db.QueryRow(
		`SELECT id, scenario, created_at, scheme, controller, dt, duration, steps, params, metrics
		 FROM runs WHERE id = ?`, id)
	meta, err := scanRun(row.Scan)
	if err == sql.ErrNoRows {
		return RunMeta{}, fmt.Errorf("storage: run %s not found", id)
	}
	return meta, err
}

// Delete removes a run from the index and from disk.
func (s *Store) Delete(id string) error {
	res, err := s.db.Exec(`DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("storage: delete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("storage: run %s not found", id)
	}
	return os.RemoveAll(filepath.Join(s.dir, id))
}

func scanRun(scan func(...any) error) (RunMeta, error) {
	var meta RunMeta
	var createdMillis int64
	var paramsJSON, metricsJSON string
	err := scan(&meta.ID, &meta.Scenario, &createdMillis, &meta.Scheme,
		&meta.Controller, &meta.Dt, &meta.Duration, &meta.Steps,
		&paramsJSON, &metricsJSON)
	if err != nil {
		return RunMeta{}, err
	}
	meta.CreatedAt = time.UnixMilli(createdMillis).UTC()
	if err := json.Unmarshal([]byte(paramsJSON), &meta.Params); err != nil {
		return RunMeta{}, fmt.Errorf("storage: decode params for %s: %w", meta.ID, err)
	}
	if err := json.Unmarshal([]byte(metricsJSON), &meta.Metrics); err != nil {
		return RunMeta{}, fmt.Errorf("storage: decode metrics for %s: %w", meta.ID, err)
	}
	return meta, nil
}

func writeMetadata(path string, meta RunMeta) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("storage: write metadata: %w", err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return fmt.Errorf("storage: write metadata: %w", err)
	}
	return nil
}
