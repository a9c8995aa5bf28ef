package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// ExportData is the JSON export shape of one stored run.
type ExportData struct {
	Meta    RunMeta     `json:"meta"`
	Columns []string    `json:"columns"`
	Rows    [][]float64 `json:"rows"`
}

// WriteJSON streams a stored run as indented JSON.
func (s *Store) WriteJSON(w io.Writer, id string) error {
	meta, err := s.Load(id)
	if err != nil {
		return err
	}
	tr, err := s.LoadTrajectory(id)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(ExportData{Meta: meta, Columns: tr.Columns, Rows: tr.Rows})
}

// ExportJSON writes a stored run to a file, or to stdout when path is "-".
func (s *Store) ExportJSON(path, id string) error {
	if path == "-" {
		return s.WriteJSON(os.Stdout, id)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("storage: create %s: %w", path, err)
	}
	defer f.Close()
	return s.WriteJSON(f, id)
}
