package viz

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
)

var (
	captionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	footerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	graphStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("49"))
)

// Plot renders a series as an asciigraph chart with a styled caption and a
// min/max footer.
func Plot(values []float64, caption string, width, height int) string {
	if len(values) < 2 {
		return captionStyle.Render(caption) + "\n(not enough samples)\n"
	}
	chart := asciigraph.Plot(values,
		asciigraph.Height(height),
		asciigraph.Width(width),
	)
	lo, hi := values[0], values[0]
	for _, v := range values {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	footer := footerStyle.Render(fmt.Sprintf("min %.6g  max %.6g  n=%d", lo, hi, len(values)))
	return captionStyle.Render(caption) + "\n" + graphStyle.Render(chart) + "\n" + footer + "\n"
}

// Sparkline renders a compact chart for embedding in the live view.
func Sparkline(values []float64, caption string) string {
	if len(values) < 2 {
		return ""
	}
	return asciigraph.Plot(values,
		asciigraph.Height(4),
		asciigraph.Width(30),
		asciigraph.Caption(caption),
	)
}
