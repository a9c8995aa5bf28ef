package mech

// Kinematics evaluates frame poses and their configuration derivatives for
// one engine instance. All results are cached against a version counter that
// Set bumps, so repeated reads within one Newton iteration cost nothing and
// a stale read after Set is impossible.
//
// Derivative storage is sparse over each frame's affect list: a frame driven
// by variables [k0 k1 ...] stores derivatives only for those variables, and
// a parent's list is a prefix of its children's, which keeps the recursion a
// single forward pass over the arena.
//
// A Kinematics is not safe for concurrent use. Independent simulations each
// create their own with System.NewKinematics.
type Kinematics struct {
	sys     *System
	q       []float64
	version uint64
	level   int

	fr []frameState
}

type frameState struct {
	np      int  // parent affect length
	hasVar  bool // driven by a configuration variable
	needRot bool // rotational inertia requires angular velocity jacobians

	loc  Transform // local transform at the current configuration
	loc1 Transform
	loc2 Transform
	loc3 Transform

	world Transform
	dw    []Transform     // ∂world/∂q over the affect list
	ddw   [][]Transform   // ∂²world
	dddw  [][][]Transform // ∂³world, allocated on first level-3 pass

	bw   [][3]float64     // body angular velocity jacobian columns
	dbw  [][][3]float64   // ∂bw
	ddbw [][][][3]float64 // ∂²bw, allocated on first level-3 pass
}

// NewKinematics creates an evaluator cache for this system. Each engine
// (simulator, metric, visualization) owns its own.
func (s *System) NewKinematics() *Kinematics {
	k := &Kinematics{
		sys:   s,
		q:     make([]float64, s.NQ()),
		level: -1,
		fr:    make([]frameState, len(s.frames)),
	}
	for i := range s.frames {
		f := &s.frames[i]
		fs := &k.fr[i]
		fs.hasVar = f.varIdx >= 0
		fs.needRot = f.inertia != [3]float64{}
		if i > 0 {
			fs.np = len(s.frames[f.parent].affect)
		}
		na := len(f.affect)
		fs.dw = make([]Transform, na)
		fs.ddw = make([][]Transform, na)
		for a := range fs.ddw {
			fs.ddw[a] = make([]Transform, na)
		}
		if fs.needRot {
			fs.bw = make([][3]float64, na)
			fs.dbw = make([][][3]float64, na)
			for a := range fs.dbw {
				fs.dbw[a] = make([][3]float64, na)
			}
		}
	}
	k.fr[World].world = Identity()
	return k
}

func (k *Kinematics) System() *System { return k.sys }

// Q returns the current configuration. Callers must not modify it.
func (k *Kinematics) Q() []float64 { return k.q }

// Version increments on every Set. Derived quantities keyed by it can detect
// staleness without comparing configurations.
func (k *Kinematics) Version() uint64 { return k.version }

// Set loads a configuration and invalidates all cached results.
func (k *Kinematics) Set(q []float64) error {
	if len(q) != len(k.q) {
		return ErrConfigDim
	}
	copy(k.q, q)
	k.version++
	k.level = -1
	return nil
}

// World returns the frame's pose in world coordinates.
func (k *Kinematics) World(f FrameID) Transform {
	k.ensure(0)
	return k.fr[f].world
}

// Pos returns the frame origin in world coordinates.
func (k *Kinematics) Pos(f FrameID) [3]float64 {
	k.ensure(0)
	return k.fr[f].world.P
}

// Affects lists the configuration variables moving frame f, in root-to-leaf
// order. Positional accessors (DPosAt and friends) index into this list.
func (k *Kinematics) Affects(f FrameID) []int {
	return k.sys.frames[f].affect
}

// DPosAt returns ∂p/∂q for the i-th affect variable of f.
func (k *Kinematics) DPosAt(f FrameID, i int) [3]float64 {
	k.ensure(1)
	return k.fr[f].dw[i].P
}

// D2PosAt returns ∂²p/∂q∂q for the (i,j)-th affect pair of f.
func (k *Kinematics) D2PosAt(f FrameID, i, j int) [3]float64 {
	k.ensure(2)
	return k.fr[f].ddw[i][j].P
}

// D3PosAt returns ∂³p for the (i,j,l)-th affect triple of f.
func (k *Kinematics) D3PosAt(f FrameID, i, j, l int) [3]float64 {
	k.ensure(3)
	return k.fr[f].dddw[i][j][l].P
}

// DPos returns ∂p/∂q_v by absolute variable index, zero when v does not
// move f.
func (k *Kinematics) DPos(f FrameID, v int) [3]float64 {
	if i := k.affPos(f, v); i >= 0 {
		return k.DPosAt(f, i)
	}
	return [3]float64{}
}

// D2Pos returns ∂²p/∂q_v∂q_w by absolute variable indices.
func (k *Kinematics) D2Pos(f FrameID, v, w int) [3]float64 {
	i, j := k.affPos(f, v), k.affPos(f, w)
	if i >= 0 && j >= 0 {
		return k.D2PosAt(f, i, j)
	}
	return [3]float64{}
}

func (k *Kinematics) affPos(f FrameID, v int) int {
	for i, a := range k.sys.frames[f].affect {
		if a == v {
			return i
		}
	}
	return -1
}

// ensure brings the cache up to the requested derivative level.
func (k *Kinematics) ensure(lv int) {
	for k.level < lv {
		switch k.level {
		case -1:
			k.passPose()
		case 0:
			k.passFirst()
		case 1:
			k.passSecond()
		case 2:
			k.passThird()
		}
		k.level++
	}
}

func (k *Kinematics) passPose() {
	for i := 1; i < len(k.fr); i++ {
		f := &k.sys.frames[i]
		fs := &k.fr[i]
		x := 0.0
		if fs.hasVar {
			x = k.q[f.varIdx]
		}
		fs.loc = f.localAt(x)
		fs.world = Compose(k.fr[f.parent].world, fs.loc)
	}
}

func (k *Kinematics) passFirst() {
	for i := 1; i < len(k.fr); i++ {
		f := &k.sys.frames[i]
		fs := &k.fr[i]
		ps := &k.fr[f.parent]
		if fs.hasVar {
			fs.loc1 = f.localDerivAt(k.q[f.varIdx], 1)
		}
		for a := range fs.dw {
			if a < fs.np {
				fs.dw[a] = Compose(ps.dw[a], fs.loc)
			} else {
				fs.dw[a] = ComposeD(ps.world, fs.loc1)
			}
		}
		if fs.needRot {
			for a := range fs.bw {
				fs.bw[a] = unskew(rtr(fs.world, fs.dw[a]))
			}
		}
	}
}

func (k *Kinematics) passSecond() {
	for i := 1; i < len(k.fr); i++ {
		f := &k.sys.frames[i]
		fs := &k.fr[i]
		ps := &k.fr[f.parent]
		if fs.hasVar {
			fs.loc2 = f.localDerivAt(k.q[f.varIdx], 2)
		}
		na := len(fs.dw)
		for a := 0; a < na; a++ {
			for b := 0; b < na; b++ {
				switch {
				case a < fs.np && b < fs.np:
					fs.ddw[a][b] = Compose(ps.ddw[a][b], fs.loc)
				case a < fs.np:
					fs.ddw[a][b] = ComposeD(ps.dw[a], fs.loc1)
				case b < fs.np:
					fs.ddw[a][b] = ComposeD(ps.dw[b], fs.loc1)
				default:
					fs.ddw[a][b] = ComposeD(ps.world, fs.loc2)
				}
			}
		}
		if fs.needRot {
			for a := 0; a < na; a++ {
				for b := 0; b < na; b++ {
					m := addM3(rtr(fs.dw[b], fs.dw[a]), rtr(fs.world, fs.ddw[a][b]))
					fs.dbw[a][b] = unskew(m)
				}
			}
		}
	}
}

func (k *Kinematics) passThird() {
	for i := 1; i < len(k.fr); i++ {
		f := &k.sys.frames[i]
		fs := &k.fr[i]
		ps := &k.fr[f.parent]
		if fs.hasVar {
			fs.loc3 = f.localDerivAt(k.q[f.varIdx], 3)
		}
		na := len(fs.dw)
		if fs.dddw == nil && na > 0 {
			fs.dddw = make([][][]Transform, na)
			for a := range fs.dddw {
				fs.dddw[a] = make([][]Transform, na)
				for b := range fs.dddw[a] {
					fs.dddw[a][b] = make([]Transform, na)
				}
			}
			if fs.needRot {
				fs.ddbw = make([][][][3]float64, na)
				for a := range fs.ddbw {
					fs.ddbw[a] = make([][][3]float64, na)
					for b := range fs.ddbw[a] {
						fs.ddbw[a][b] = make([][3]float64, na)
					}
				}
			}
		}
		for a := 0; a < na; a++ {
			for b := 0; b < na; b++ {
				for c := 0; c < na; c++ {
					switch countParent(fs.np, a, b, c) {
					case 3:
						fs.dddw[a][b][c] = Compose(ps.dddw[a][b][c], fs.loc)
					case 2:
						// Exactly one index is the frame's own
						// variable; it consumes one derivative
						// of the local transform.
						pa, pb := pickParents(fs.np, a, b, c)
						fs.dddw[a][b][c] = ComposeD(ps.ddw[pa][pb], fs.loc1)
					case 1:
						pa, _ := pickParents(fs.np, a, b, c)
						fs.dddw[a][b][c] = ComposeD(ps.dw[pa], fs.loc2)
					default:
						fs.dddw[a][b][c] = ComposeD(ps.world, fs.loc3)
					}
				}
			}
		}
		if fs.needRot {
			for a := 0; a < na; a++ {
				for b := 0; b < na; b++ {
					for c := 0; c < na; c++ {
						m := rtr(fs.ddw[b][c], fs.dw[a])
						m = addM3(m, rtr(fs.dw[b], fs.ddw[a][c]))
						m = addM3(m, rtr(fs.dw[c], fs.ddw[a][b]))
						m = addM3(m, rtr(fs.world, fs.dddw[a][b][c]))
						fs.ddbw[a][b][c] = unskew(m)
					}
				}
			}
		}
	}
}

func countParent(np int, idx ...int) int {
	n := 0
	for _, i := range idx {
		if i < np {
			n++
		}
	}
	return n
}

// pickParents returns up to two parent-list indices among a, b, c.
func pickParents(np int, a, b, c int) (int, int) {
	out := [2]int{}
	n := 0
	for _, i := range [3]int{a, b, c} {
		if i < np && n < 2 {
			out[n] = i
			n++
		}
	}
	return out[0], out[1]
}
