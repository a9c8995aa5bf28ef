package export

import (
	"math"
	"strings"
	"testing"

	"github.com/san-kum/varimech/internal/scenario"
	"github.com/san-kum/varimech/internal/viz"
)

func TestTraceSVGPendulumBob(t *testing.T) {
	sys, _, _, err := scenario.BuildNamed("pendulum", nil)
	if err != nil {
		t.Fatal(err)
	}

	var qs [][]float64
	for i := 0; i <= 20; i++ {
		qs = append(qs, []float64{0.5 * math.Sin(float64(i)*0.1)})
	}

	svg, err := TraceSVG(sys, []string{"bob"}, qs, 400, 300)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(svg, `<?xml`) {
		t.Error("missing XML prolog")
	}
	if strings.Count(svg, "<path") != 1 {
		t.Errorf("want 1 polyline, got %d", strings.Count(svg, "<path"))
	}
	if !strings.Contains(svg, `viewBox="0 0 400 300"`) {
		t.Error("viewBox missing")
	}
}

func TestTraceSVGErrors(t *testing.T) {
	sys, q0, _, err := scenario.BuildNamed("pendulum", nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := TraceSVG(sys, nil, [][]float64{q0, q0}, 100, 100); err == nil {
		t.Error("expected error for no frames")
	}
	if _, err := TraceSVG(sys, []string{"nope"}, [][]float64{q0, q0}, 100, 100); err == nil {
		t.Error("expected error for unknown frame")
	}
	if _, err := TraceSVG(sys, []string{"bob"}, [][]float64{q0}, 100, 100); err == nil {
		t.Error("expected error for single sample")
	}
}

func TestCanvasSVGDots(t *testing.T) {
	c := viz.NewCanvas(4, 4)
	c.Line(0, 0, 7, 15)

	svg := CanvasSVG(c, 4)
	if strings.Count(svg, "<circle") == 0 {
		t.Fatal("no dots emitted")
	}
	if CanvasSVG(nil, 4) != "" {
		t.Error("nil canvas should render empty")
	}
}
