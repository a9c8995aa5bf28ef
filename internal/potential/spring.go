package potential

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/varimech/internal/mech"
)

// minSep is the endpoint separation below which a nonzero-rest-length spring
// is no longer differentiable. Evaluation past it yields NaN, which the
// integrator maps to its ill-conditioned error path.
const minSep = 1e-9

// LinearSpring connects two frame origins with V = ½k(‖Δp‖−L0)².
type LinearSpring struct {
	name   string
	nameA  string
	nameB  string
	K, L0  float64
	a, b   mech.FrameID
	affect []int
	sys    *mech.System
}

// NewLinearSpring connects the named frames with stiffness k and rest
// length l0. Frame names resolve at Bind.
func NewLinearSpring(name, frameA, frameB string, k, l0 float64) *LinearSpring {
	return &LinearSpring{name: name, nameA: frameA, nameB: frameB, K: k, L0: l0}
}

func (s *LinearSpring) Name() string { return s.name }

func (s *LinearSpring) Bind(sys *mech.System) error {
	if s.K < 0 {
		return fmt.Errorf("negative stiffness %g", s.K)
	}
	if s.L0 < 0 {
		return fmt.Errorf("negative rest length %g", s.L0)
	}
	a, ok := sys.FrameByName(s.nameA)
	if !ok {
		return fmt.Errorf("%w: frame %q", mech.ErrUnknownName, s.nameA)
	}
	b, ok := sys.FrameByName(s.nameB)
	if !ok {
		return fmt.Errorf("%w: frame %q", mech.ErrUnknownName, s.nameB)
	}
	if a == b {
		return fmt.Errorf("spring endpoints are the same frame %q", s.nameA)
	}
	s.a, s.b, s.sys = a, b, sys
	s.affect = affectUnion(sys.Frame(a).Affects(), sys.Frame(b).Affects())
	return nil
}

func (s *LinearSpring) delta(kin *mech.Kinematics) [3]float64 {
	pa, pb := kin.Pos(s.a), kin.Pos(s.b)
	return [3]float64{pa[0] - pb[0], pa[1] - pb[1], pa[2] - pb[2]}
}

func (s *LinearSpring) deltaD(kin *mech.Kinematics, k int) [3]float64 {
	da, db := kin.DPos(s.a, k), kin.DPos(s.b, k)
	return [3]float64{da[0] - db[0], da[1] - db[1], da[2] - db[2]}
}

func (s *LinearSpring) deltaD2(kin *mech.Kinematics, k, l int) [3]float64 {
	da, db := kin.D2Pos(s.a, k, l), kin.D2Pos(s.b, k, l)
	return [3]float64{da[0] - db[0], da[1] - db[1], da[2] - db[2]}
}

func (s *LinearSpring) Energy(kin *mech.Kinematics) float64 {
	d := s.delta(kin)
	if s.L0 == 0 {
		return 0.5 * s.K * dot(d, d)
	}
	r := math.Sqrt(dot(d, d))
	if r < minSep {
		return math.NaN()
	}
	return 0.5 * s.K * (r - s.L0) * (r - s.L0)
}

func (s *LinearSpring) AddDV(kin *mech.Kinematics, dst []float64) {
	d := s.delta(kin)
	if s.L0 == 0 {
		for _, k := range s.affect {
			dst[k] += s.K * dot(d, s.deltaD(kin, k))
		}
		return
	}
	r := math.Sqrt(dot(d, d))
	if r < minSep {
		for _, k := range s.affect {
			dst[k] = math.NaN()
		}
		return
	}
	c := s.K * (r - s.L0) / r
	for _, k := range s.affect {
		dst[k] += c * dot(d, s.deltaD(kin, k))
	}
}

func (s *LinearSpring) AddD2V(kin *mech.Kinematics, dst *mat.Dense) {
	d := s.delta(kin)
	if s.L0 == 0 {
		for _, k := range s.affect {
			dk := s.deltaD(kin, k)
			for _, l := range s.affect {
				dl := s.deltaD(kin, l)
				v := s.K * (dot(dk, dl) + dot(d, s.deltaD2(kin, k, l)))
				dst.Set(k, l, dst.At(k, l)+v)
			}
		}
		return
	}
	r := math.Sqrt(dot(d, d))
	if r < minSep {
		for _, k := range s.affect {
			for _, l := range s.affect {
				dst.Set(k, l, math.NaN())
			}
		}
		return
	}
	stretch := s.K * (r - s.L0)
	for _, k := range s.affect {
		dk := s.deltaD(kin, k)
		drk := dot(d, dk) / r
		for _, l := range s.affect {
			dl := s.deltaD(kin, l)
			drl := dot(d, dl) / r
			d2r := (dot(dk, dl)+dot(d, s.deltaD2(kin, k, l)))/r - drk*drl/r
			v := s.K*drk*drl + stretch*d2r
			dst.Set(k, l, dst.At(k, l)+v)
		}
	}
}

// ConfigSpring acts on a single configuration variable with V = ½k(q−q0)².
type ConfigSpring struct {
	name    string
	varName string
	K, Q0   float64
	idx     int
}

// NewConfigSpring attaches a spring to the named configuration variable with
// stiffness k and neutral position q0.
func NewConfigSpring(name, varName string, k, q0 float64) *ConfigSpring {
	return &ConfigSpring{name: name, varName: varName, K: k, Q0: q0, idx: -1}
}

func (s *ConfigSpring) Name() string { return s.name }

func (s *ConfigSpring) Bind(sys *mech.System) error {
	if s.K < 0 {
		return fmt.Errorf("negative stiffness %g", s.K)
	}
	i, ok := sys.VarByName(s.varName)
	if !ok {
		return fmt.Errorf("%w: variable %q", mech.ErrUnknownName, s.varName)
	}
	s.idx = i
	return nil
}

func (s *ConfigSpring) Energy(kin *mech.Kinematics) float64 {
	dq := kin.Q()[s.idx] - s.Q0
	return 0.5 * s.K * dq * dq
}

func (s *ConfigSpring) AddDV(kin *mech.Kinematics, dst []float64) {
	dst[s.idx] += s.K * (kin.Q()[s.idx] - s.Q0)
}

func (s *ConfigSpring) AddD2V(kin *mech.Kinematics, dst *mat.Dense) {
	dst.Set(s.idx, s.idx, dst.At(s.idx, s.idx)+s.K)
}

// affectUnion merges two affect lists into one sorted, deduplicated list.
func affectUnion(a, b []int) []int {
	seen := make(map[int]struct{}, len(a)+len(b))
	out := make([]int, 0, len(a)+len(b))
	for _, k := range a {
		if _, dup := seen[k]; !dup {
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	for _, k := range b {
		if _, dup := seen[k]; !dup {
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	sort.Ints(out)
	return out
}
