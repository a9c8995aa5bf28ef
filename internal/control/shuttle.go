package control

import (
	"fmt"
	"sort"

	"github.com/san-kum/varimech/internal/sim"
)

// Waypoint fixes the kinematic configuration at one time.
type Waypoint struct {
	T   float64
	Pos []float64
}

// Shuttle prescribes kinematic variables along a piecewise-linear profile
// through waypoints: positions clamp to the first waypoint before it and to
// the last one after it. This is the rho source for trolley-style systems.
type Shuttle struct {
	points []Waypoint
}

// NewShuttle sorts the waypoints by time. At least one is required, and all
// must share a position width.
func NewShuttle(points []Waypoint) (*Shuttle, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("control: shuttle needs at least one waypoint")
	}
	sorted := append([]Waypoint(nil), points...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].T < sorted[j].T })
	width := len(sorted[0].Pos)
	for _, w := range sorted[1:] {
		if len(w.Pos) != width {
			return nil, fmt.Errorf("control: waypoint width %d, want %d", len(w.Pos), width)
		}
	}
	return &Shuttle{points: sorted}, nil
}

// At evaluates the profile at time t.
func (s *Shuttle) At(t float64) []float64 {
	pts := s.points
	if t <= pts[0].T {
		return append([]float64(nil), pts[0].Pos...)
	}
	last := pts[len(pts)-1]
	if t >= last.T {
		return append([]float64(nil), last.Pos...)
	}
	i := sort.Search(len(pts), func(k int) bool { return pts[k].T > t }) - 1
	a, b := pts[i], pts[i+1]
	frac := (t - a.T) / (b.T - a.T)
	out := make([]float64, len(a.Pos))
	for k := range out {
		out[k] = a.Pos[k] + frac*(b.Pos[k]-a.Pos[k])
	}
	return out
}

// Inputs prescribes the profile position for the end of the step.
func (s *Shuttle) Inputs(t, dt float64, _ sim.State) (u, rho []float64) {
	return nil, s.At(t + dt)
}
