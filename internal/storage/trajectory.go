package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/san-kum/varimech/internal/mech"
	"github.com/san-kum/varimech/internal/sim"
)

// Trajectory is a loaded run trace: one named column per state component.
type Trajectory struct {
	Columns []string
	Rows    [][]float64
}

// Column returns the values of a named column, or nil if absent.
func (tr *Trajectory) Column(name string) []float64 {
	for j, c := range tr.Columns {
		if c != name {
			continue
		}
		vals := make([]float64, len(tr.Rows))
		for i, row := range tr.Rows {
			vals[i] = row[j]
		}
		return vals
	}
	return nil
}

// Times returns the time column.
func (tr *Trajectory) Times() []float64 { return tr.Column("t") }

// columnNames derives the CSV header from the system's variable, input and
// constraint layout.
func columnNames(sys *mech.System, st sim.State) []string {
	names := []string{"t"}
	varNames := sys.VarNames()
	for _, n := range varNames {
		names = append(names, "q_"+n)
	}
	for _, n := range varNames[:sys.ND()] {
		names = append(names, "p_"+n)
	}
	for _, n := range varNames {
		names = append(names, "v_"+n)
	}
	for i := range st.Lam {
		names = append(names, fmt.Sprintf("lam%d", i))
	}
	for _, n := range sys.InputNames() {
		names = append(names, "u_"+n)
	}
	return names
}

func writeTrajectory(path string, sys *mech.System, result *sim.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("storage: write trajectory: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if len(result.States) == 0 {
		return nil
	}
	if err := w.Write(columnNames(sys, result.States[0])); err != nil {
		return fmt.Errorf("storage: write trajectory: %w", err)
	}

	nu := sys.NU()
	for _, st := range result.States {
		row := make([]string, 0, 1+len(st.Q)+len(st.P)+len(st.V)+len(st.Lam)+nu)
		row = append(row, formatSample(st.T))
		for _, x := range st.Q {
			row = append(row, formatSample(x))
		}
		for _, x := range st.P {
			row = append(row, formatSample(x))
		}
		for _, x := range st.V {
			row = append(row, formatSample(x))
		}
		for _, x := range st.Lam {
			row = append(row, formatSample(x))
		}
		for i := 0; i < nu; i++ {
			if i < len(st.U) {
				row = append(row, formatSample(st.U[i]))
			} else {
				row = append(row, "0")
			}
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("storage: write trajectory: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

func formatSample(x float64) string {
	return strconv.FormatFloat(x, 'g', 12, 64)
}

// LoadTrajectory reads back the CSV trace of a stored run.
func (s *Store) LoadTrajectory(id string) (*Trajectory, error) {
	f, err := os.Open(filepath.Join(s.dir, id, "trajectory.csv"))
	if err != nil {
		return nil, fmt.Errorf("storage: open trajectory for %s: %w", id, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("storage: read trajectory for %s: %w", id, err)
	}
	if len(records) == 0 {
		return &Trajectory{}, nil
	}

	tr := &Trajectory{Columns: records[0]}
	for _, record := range records[1:] {
		row := make([]float64, len(record))
		for j, field := range record {
			row[j], err = strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("storage: bad trajectory value %q: %w", field, err)
			}
		}
		tr.Rows = append(tr.Rows, row)
	}
	return tr, nil
}
