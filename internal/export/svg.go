// Package export renders trajectories and canvases as SVG.
package export

import (
	"fmt"
	"strings"

	"github.com/san-kum/varimech/internal/mech"
	"github.com/san-kum/varimech/internal/viz"
)

var traceColors = []string{"#00ff88", "#00ccff", "#ff00ff", "#ffcc00", "#ff4444"}

// TraceSVG draws the x-z paths of named frames over a sequence of
// configurations, one polyline per frame.
func TraceSVG(sys *mech.System, frameNames []string, qs [][]float64, width, height int) (string, error) {
	if len(frameNames) == 0 {
		return "", fmt.Errorf("export: no frames selected")
	}
	if len(qs) < 2 {
		return "", fmt.Errorf("export: need at least 2 configurations, got %d", len(qs))
	}

	ids := make([]mech.FrameID, len(frameNames))
	for i, name := range frameNames {
		id, ok := sys.FrameByName(name)
		if !ok {
			return "", fmt.Errorf("export: unknown frame %q", name)
		}
		ids[i] = id
	}

	kin := sys.NewKinematics()
	paths := make([][][2]float64, len(ids))
	for _, q := range qs {
		if err := kin.Set(q); err != nil {
			return "", fmt.Errorf("export: evaluate trajectory: %w", err)
		}
		for i, id := range ids {
			pos := kin.Pos(id)
			paths[i] = append(paths[i], [2]float64{pos[0], pos[2]})
		}
	}

	minX, maxX := paths[0][0][0], paths[0][0][0]
	minZ, maxZ := paths[0][0][1], paths[0][0][1]
	for _, path := range paths {
		for _, p := range path {
			minX, maxX = minMax(minX, maxX, p[0])
			minZ, maxZ = minMax(minZ, maxZ, p[1])
		}
	}
	rangeX, rangeZ := maxX-minX, maxZ-minZ
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeZ == 0 {
		rangeZ = 1
	}
	minX -= rangeX * 0.1
	minZ -= rangeZ * 0.1
	rangeX *= 1.2
	rangeZ *= 1.2

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height)

	for i, path := range paths {
		color := traceColors[i%len(traceColors)]
		fmt.Fprintf(&sb, `<path fill="none" stroke="%s" stroke-width="1.5" d="M`, color)
		for j, p := range path {
			x := (p[0] - minX) / rangeX * float64(width)
			// world z points up, SVG y points down
			y := float64(height) - (p[1]-minZ)/rangeZ*float64(height)
			if j == 0 {
				fmt.Fprintf(&sb, "%.1f,%.1f", x, y)
			} else {
				fmt.Fprintf(&sb, " L%.1f,%.1f", x, y)
			}
		}
		sb.WriteString("\"/>\n")
	}
	sb.WriteString("</svg>\n")
	return sb.String(), nil
}

func minMax(lo, hi, v float64) (float64, float64) {
	if v < lo {
		lo = v
	}
	if v > hi {
		hi = v
	}
	return lo, hi
}

// brailleBits mirrors the canvas dot layout.
var brailleBits = [4][2]rune{
	{0x01, 0x08},
	{0x02, 0x10},
	{0x04, 0x20},
	{0x40, 0x80},
}

// CanvasSVG converts a Braille canvas to SVG dots.
func CanvasSVG(canvas *viz.Canvas, scale float64) string {
	if canvas == nil {
		return ""
	}
	width := float64(canvas.Width) * scale * 2
	height := float64(canvas.Height) * scale * 4

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<g fill="#00ff88">
`, width, height, width, height)

	dotRadius := scale * 0.4
	for row := 0; row < canvas.Height; row++ {
		for col := 0; col < canvas.Width; col++ {
			r := canvas.Grid[row][col]
			if r <= 0x2800 {
				continue
			}
			pattern := r - 0x2800
			baseX := float64(col) * scale * 2
			baseY := float64(row) * scale * 4
			for dy := 0; dy < 4; dy++ {
				for dx := 0; dx < 2; dx++ {
					if pattern&brailleBits[dy][dx] != 0 {
						cx := baseX + float64(dx)*scale + scale/2
						cy := baseY + float64(dy)*scale + scale/2
						fmt.Fprintf(&sb, "<circle cx=\"%.1f\" cy=\"%.1f\" r=\"%.1f\"/>\n", cx, cy, dotRadius)
					}
				}
			}
		}
	}
	sb.WriteString("</g>\n</svg>\n")
	return sb.String()
}
