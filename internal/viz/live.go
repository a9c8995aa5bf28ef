package viz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/varimech/internal/mech"
	"github.com/san-kum/varimech/internal/sim"
)

const (
	canvasWidth   = 60
	canvasHeight  = 24
	energyHistory = 300
)

var (
	liveCanvasStyle = lipgloss.NewStyle().Padding(0, 1)
	liveStatsStyle  = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 2)
	liveHeaderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	liveLabelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(10)
	liveValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	liveErrorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	liveHelpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
	pausedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
)

type tickMsg time.Time

// Live is a Bubble Tea model that steps a simulation in real time and draws
// the mechanism skeleton with an energy sparkline.
type Live struct {
	simr       *sim.Simulator
	ctrl       sim.Controller
	kin        *mech.Kinematics
	q0, v0     []float64
	dt         float64
	speed      float64 // simulated seconds per wall second
	span       float64 // world half-width of the view
	title      string
	canvas     *Canvas
	proj       *Projection
	energies   []float64
	running    bool
	stepErr    error
	frameCount int
}

// NewLive wraps a fresh simulator. ctrl may be nil.
func NewLive(simr *sim.Simulator, ctrl sim.Controller, dt, span float64, title string) *Live {
	st := simr.Current()
	c := NewCanvas(canvasWidth, canvasHeight)
	return &Live{
		simr:    simr,
		ctrl:    ctrl,
		kin:     simr.System().NewKinematics(),
		q0:      append([]float64(nil), st.Q...),
		v0:      append([]float64(nil), st.V...),
		dt:      dt,
		speed:   1,
		span:    span,
		title:   title,
		canvas:  c,
		proj:    NewProjection(c, 0, 0, span),
		running: true,
	}
}

func (m *Live) Init() tea.Cmd { return tick() }

func tick() tea.Cmd {
	return tea.Tick(time.Second/30, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Live) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running && m.stepErr == nil
		case "r":
			if err := m.simr.Reset(m.q0, m.v0); err == nil {
				m.energies = m.energies[:0]
				m.stepErr = nil
				m.running = true
			}
		case "+", "=":
			if m.speed < 16 {
				m.speed *= 2
			}
		case "-", "_":
			if m.speed > 0.0625 {
				m.speed /= 2
			}
		}
		return m, nil

	case tickMsg:
		if m.running {
			m.advance()
		}
		m.frameCount++
		return m, tick()
	}
	return m, nil
}

// advance steps the simulation by one frame's worth of simulated time.
func (m *Live) advance() {
	steps := int(m.speed/(30*m.dt) + 0.5)
	if steps < 1 {
		steps = 1
	}
	for i := 0; i < steps; i++ {
		var u, rho []float64
		if m.ctrl != nil {
			cur := m.simr.Current()
			u, rho = m.ctrl.Inputs(cur.T, m.dt, cur)
		}
		st, err := m.simr.StepInput(m.dt, u, rho)
		if err != nil {
			m.stepErr = err
			m.running = false
			return
		}
		m.recordEnergy(st)
	}
}

func (m *Live) recordEnergy(st sim.State) {
	sys := m.simr.System()
	if m.kin.Set(st.Q) != nil {
		return
	}
	e, err := sys.EnergyQP(m.kin, st.P, st.V[sys.ND():])
	if err != nil {
		return
	}
	m.energies = append(m.energies, e)
	if len(m.energies) > energyHistory {
		m.energies = m.energies[1:]
	}
}

func (m *Live) View() string {
	st := m.simr.Current()

	m.canvas.Clear()
	if m.kin.Set(st.Q) == nil {
		m.proj.DrawSystem(m.kin)
	}

	var stats strings.Builder
	stats.WriteString(liveHeaderStyle.Render(m.title) + "\n\n")
	writeStat(&stats, "time", fmt.Sprintf("%.2f s", st.T))
	writeStat(&stats, "speed", fmt.Sprintf("%gx", m.speed))
	writeStat(&stats, "dt", fmt.Sprintf("%g", m.dt))
	writeStat(&stats, "iters", fmt.Sprintf("%d", st.Iter))
	for i, name := range m.simr.System().VarNames() {
		writeStat(&stats, name, fmt.Sprintf("%+.4f", st.Q[i]))
	}
	if len(m.energies) > 0 {
		writeStat(&stats, "energy", fmt.Sprintf("%.6f", m.energies[len(m.energies)-1]))
		stats.WriteString("\n" + Sparkline(m.energies, "Energy") + "\n")
	}
	switch {
	case m.stepErr != nil:
		stats.WriteString("\n" + liveErrorStyle.Render("step failed: "+m.stepErr.Error()) + "\n")
	case !m.running:
		stats.WriteString("\n" + pausedStyle.Render("PAUSED") + "\n")
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		liveCanvasStyle.Render(m.canvas.String()),
		liveStatsStyle.Render(stats.String()),
	)
	help := liveHelpStyle.Render("space pause · r reset · +/- speed · q quit")
	return body + "\n" + help + "\n"
}

func writeStat(b *strings.Builder, label, value string) {
	b.WriteString(liveLabelStyle.Render(label) + liveValueStyle.Render(value) + "\n")
}

// RunLive starts the live view and blocks until the user quits.
func RunLive(m *Live) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
