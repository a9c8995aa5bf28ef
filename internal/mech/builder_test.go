package mech

import (
	"errors"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// stubConstraint pins nothing; it exists to exercise registry bookkeeping.
type stubConstraint struct {
	name string
	rows int
}

func (c *stubConstraint) Name() string           { return c.name }
func (c *stubConstraint) Bind(sys *System) error { return nil }
func (c *stubConstraint) Rows() int              { return c.rows }
func (c *stubConstraint) Eval(kin *Kinematics, dst []float64) {
	for i := range dst {
		dst[i] = 0
	}
}
func (c *stubConstraint) Jac(kin *Kinematics, dst *mat.Dense, row int) {}
func (c *stubConstraint) AddLamHess(kin *Kinematics, lam []float64, scale float64, dst *mat.Dense) {
}

func TestBuildValidation(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *Builder)
	}{
		{"unknown parent", func(b *Builder) {
			b.Frame(FrameID(99), RotZ, Var("a"), Mass(1))
		}},
		{"fixed frame with variable", func(b *Builder) {
			b.Frame(World, Fixed, Var("a"))
		}},
		{"var and const together", func(b *Builder) {
			b.Frame(World, RotZ, Var("a"), Const(1), Mass(1))
		}},
		{"missing var and const", func(b *Builder) {
			b.Frame(World, RotZ, Mass(1))
		}},
		{"negative mass", func(b *Builder) {
			b.Frame(World, RotZ, Var("a"), Mass(-1))
		}},
		{"negative inertia", func(b *Builder) {
			b.Frame(World, RotZ, Var("a"), Mass(1), Inertia(-0.1, 0, 0))
		}},
		{"bounds without variable", func(b *Builder) {
			b.Frame(World, RotZ, Const(0.4), Bounds(0, 1))
		}},
		{"bounds lo above hi", func(b *Builder) {
			b.Frame(World, RotZ, Var("a"), Mass(1), Bounds(2, 1))
		}},
		{"duplicate variable name", func(b *Builder) {
			b.Frame(World, RotZ, Var("a"), Mass(1))
			b.Frame(World, RotY, Var("a"), Mass(1))
		}},
		{"duplicate frame name", func(b *Builder) {
			b.Frame(World, RotZ, Var("a"), Mass(1), Name("x"))
			b.Frame(World, RotY, Var("b"), Mass(1), Name("x"))
		}},
		{"empty variable name", func(b *Builder) {
			b.Frame(World, RotZ, Var(""), Mass(1))
		}},
		{"dynamic variable without inertia", func(b *Builder) {
			b.Frame(World, RotZ, Var("a"))
		}},
		{"duplicate input name", func(b *Builder) {
			b.Frame(World, RotZ, Var("a"), Mass(1))
			b.Input("u")
			b.Input("u")
		}},
		{"empty input name", func(b *Builder) {
			b.Frame(World, RotZ, Var("a"), Mass(1))
			b.Input("")
		}},
		{"over-constrained", func(b *Builder) {
			b.Frame(World, RotZ, Var("a"), Mass(1))
			b.AddConstraint(&stubConstraint{name: "pin", rows: 2})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder()
			tt.build(b)
			if _, err := b.Build(); !errors.Is(err, ErrBuild) {
				t.Errorf("expected ErrBuild, got %v", err)
			}
		})
	}
}

func TestBuildReordersDynamicFirst(t *testing.T) {
	b := NewBuilder()
	b.Frame(World, TransX, KinVar("track"), Mass(1))
	b.Frame(World, RotZ, Var("swing"), Mass(1))
	b.Frame(World, TransY, KinVar("lift"), Mass(1))
	b.Frame(World, RotY, Var("tilt"), Mass(1))

	sys, err := b.Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	want := []string{"swing", "tilt", "track", "lift"}
	got := sys.VarNames()
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("var %d: expected %s, got %s", i, want[i], got[i])
		}
	}
	for i := 0; i < sys.ND(); i++ {
		if sys.Var(i).Kind() != Dynamic {
			t.Errorf("var %d: expected dynamic, got %s", i, sys.Var(i).Kind())
		}
	}
	for i := sys.ND(); i < sys.NQ(); i++ {
		if sys.Var(i).Kind() != Kinematic {
			t.Errorf("var %d: expected kinematic, got %s", i, sys.Var(i).Kind())
		}
	}
}

func TestFrozenRejectsMutation(t *testing.T) {
	sys := buildTestChain(t)
	sys.Freeze()

	if err := sys.AddConstraint(&stubConstraint{name: "pin", rows: 1}); !errors.Is(err, ErrFrozen) {
		t.Errorf("expected ErrFrozen, got %v", err)
	}

	sys.Unfreeze()
	if err := sys.AddConstraint(&stubConstraint{name: "pin", rows: 1}); err != nil {
		t.Errorf("expected mutation after unfreeze, got %v", err)
	}
	if sys.NC() != 1 {
		t.Errorf("expected 1 constraint row, got %d", sys.NC())
	}
}

func TestReplaceConstraintRevalidatesRows(t *testing.T) {
	sys := buildTestChain(t)
	if err := sys.AddConstraint(&stubConstraint{name: "pin", rows: 1}); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	if err := sys.ReplaceConstraint("pin", &stubConstraint{name: "pin2", rows: 3}); !errors.Is(err, ErrBuild) {
		t.Errorf("expected ErrBuild for row overflow, got %v", err)
	}
	if err := sys.ReplaceConstraint("missing", &stubConstraint{name: "pin3", rows: 1}); !errors.Is(err, ErrUnknownName) {
		t.Errorf("expected ErrUnknownName, got %v", err)
	}
	if err := sys.ReplaceConstraint("pin", &stubConstraint{name: "pin2", rows: 2}); err != nil {
		t.Errorf("expected replacement to succeed, got %v", err)
	}
	if sys.NC() != 2 {
		t.Errorf("expected 2 constraint rows, got %d", sys.NC())
	}
}

func TestBoundsViolations(t *testing.T) {
	b := NewBuilder()
	b.Frame(World, RotZ, Var("a"), Mass(1), Bounds(-1, 1))
	b.Frame(World, RotY, Var("b"), Mass(1))
	sys, err := b.Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	if names := sys.BoundsViolations([]float64{0.5, 100}); len(names) != 0 {
		t.Errorf("expected no violations, got %v", names)
	}
	names := sys.BoundsViolations([]float64{1.5, 0})
	if len(names) != 1 || names[0] != "a" {
		t.Errorf("expected violation on a, got %v", names)
	}
}
