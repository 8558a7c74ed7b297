package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/gravsim/internal/config"
	"github.com/san-kum/gravsim/internal/events"
	"github.com/san-kum/gravsim/internal/sim"
	"github.com/san-kum/gravsim/internal/viz"
)

const (
	frameInterval = 33 * time.Millisecond
	maxFeed       = 8
	historyLen    = 60
	maxSpeed      = 64
)

var presetInfo = map[string]string{
	"binary-bh": "two black holes and a debris ring",
	"tde":       "a star falls onto a black hole",
	"kilonova":  "inspiralling neutron stars",
	"belt":      "star, planet and asteroid belt",
	"cluster":   "hundreds of stars around a black hole",
}

type state int

const (
	stateMenu state = iota
	stateSim
)

type tickMsg time.Time

type changeMsg config.Change

func tick() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func waitForChange(ch <-chan config.Change) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		c, ok := <-ch
		if !ok {
			return nil
		}
		return changeMsg(c)
	}
}

type model struct {
	state   state
	cursor  int
	presets []string

	preset  string
	world   *sim.World
	changes <-chan config.Change

	scene  viz.Scene
	canvas *viz.Canvas
	follow bool
	zoom   float64

	paused  bool
	speed   int
	feed    []events.Event
	history []float64
	status  string

	width  int
	height int
}

// Option configures the viewer.
type Option func(*model)

// WithWorld starts the viewer on an existing world instead of the menu.
func WithWorld(preset string, w *sim.World) Option {
	return func(m *model) {
		m.preset = preset
		m.world = w
		m.state = stateSim
	}
}

// WithChanges hot-applies physics parameters from a config watcher.
func WithChanges(ch <-chan config.Change) Option {
	return func(m *model) { m.changes = ch }
}

func WithTheme(name string) Option {
	return func(m *model) { m.scene.Theme = viz.GetTheme(name) }
}

func New(opts ...Option) *model {
	m := &model{
		state:   stateMenu,
		presets: config.ListPresets(),
		scene:   viz.Scene{Theme: viz.ThemeCyberpunk, Trails: true},
		follow:  true,
		zoom:    1,
		speed:   1,
		width:   100,
		height:  32,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.resize()
	return m
}

// Run starts the viewer in the alternate screen and blocks until it quits.
func Run(opts ...Option) error {
	final, err := tea.NewProgram(New(opts...), tea.WithAltScreen()).Run()
	if fm, ok := final.(model); ok {
		fm.closeWorld()
	}
	return err
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{waitForChange(m.changes)}
	if m.state == stateSim {
		cmds = append(cmds, tick())
	}
	return tea.Batch(cmds...)
}

func (m *model) resize() {
	w := max(m.width-4, 20)
	h := max(m.height-10, 6)
	m.canvas = viz.NewCanvas(w, h)
}

func (m *model) closeWorld() {
	if m.world != nil {
		m.world.Close()
		m.world = nil
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil
	case changeMsg:
		m.apply(config.Change(msg))
		return m, waitForChange(m.changes)
	case tickMsg:
		if m.state != stateSim || m.world == nil {
			return m, nil
		}
		if !m.paused {
			m.advance()
		}
		return m, tick()
	}
	return m, nil
}

func (m *model) apply(c config.Change) {
	if c.Err != nil {
		m.status = "reload failed: " + c.Err.Error()
		return
	}
	if m.world == nil {
		return
	}
	scfg, err := c.Config.SimConfig()
	if err == nil {
		err = m.world.Reconfigure(scfg)
	}
	if err != nil {
		m.status = "reload rejected: " + err.Error()
		return
	}
	m.status = "config reloaded"
}

func (m *model) advance() {
	dt := m.world.Config().Dt
	for i := 0; i < m.speed; i++ {
		if err := m.world.Step(dt); err != nil {
			m.paused = true
			m.status = err.Error()
			break
		}
	}
	m.feed = append(m.feed, m.world.Events()...)
	if over := len(m.feed) - maxFeed; over > 0 {
		m.feed = m.feed[over:]
	}
	st := m.world.Stats()
	m.history = append(m.history, st.Energy())
	if over := len(m.history) - historyLen; over > 0 {
		m.history = m.history[over:]
	}
}

func (m model) handleKey(msg tea.KeyMsg) (model, tea.Cmd) {
	switch m.state {
	case stateMenu:
		return m.menuKey(msg)
	case stateSim:
		return m.simKey(msg)
	}
	return m, nil
}

func (m model) menuKey(msg tea.KeyMsg) (model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.presets)-1 {
			m.cursor++
		}
	case "enter", " ":
		if err := m.start(m.presets[m.cursor]); err != nil {
			m.status = err.Error()
			return m, nil
		}
		return m, tea.Batch(tea.ClearScreen, tick())
	}
	return m, nil
}

func (m *model) start(preset string) error {
	cfg := config.GetPreset(preset)
	if cfg == nil {
		return fmt.Errorf("unknown preset %q", preset)
	}
	w, err := cfg.Build()
	if err != nil {
		return err
	}
	m.closeWorld()
	m.preset, m.world = preset, w
	m.state = stateSim
	m.paused, m.speed, m.zoom, m.follow = false, 1, 1, true
	m.feed, m.history, m.status = nil, nil, ""
	return nil
}

func (m model) simKey(msg tea.KeyMsg) (model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "q", "esc":
		m.closeWorld()
		m.state = stateMenu
		return m, tea.ClearScreen
	case " ", "p":
		m.paused = !m.paused
	case "r":
		if err := m.start(m.preset); err != nil {
			m.status = err.Error()
		}
		return m, tea.ClearScreen
	case "+", "=":
		m.speed = min(m.speed*2, maxSpeed)
	case "-", "_":
		m.speed = max(m.speed/2, 1)
	case "z":
		m.zoom *= 1.5
	case "x":
		m.zoom /= 1.5
	case "f":
		if m.follow && m.world != nil {
			m.scene.Camera = viz.Fit(m.world.Bodies(), m.canvas)
		}
		m.follow = !m.follow
	case "t":
		m.scene.Trails = !m.scene.Trails
	case "c":
		m.scene.Theme = viz.NextTheme(m.scene.Theme.Name)
	case "n":
		if m.paused && m.world != nil {
			m.paused = false
			m.advance()
			m.paused = true
		}
	}
	return m, nil
}

func (m model) View() string {
	switch m.state {
	case stateMenu:
		return m.viewMenu()
	case stateSim:
		return m.viewSim()
	}
	return ""
}

func (m model) viewMenu() string {
	var b strings.Builder
	b.WriteString("\n  " + viz.Title.Render("gravsim") + viz.Subtle.Render("  choose a scenario") + "\n\n")
	for i, name := range m.presets {
		line := fmt.Sprintf("%-10s %s", name, presetInfo[name])
		if i == m.cursor {
			b.WriteString("  " + viz.Selected.Render("> "+line) + "\n")
		} else {
			b.WriteString("    " + line + "\n")
		}
	}
	if m.status != "" {
		b.WriteString("\n  " + viz.StatusPaused.Render(m.status) + "\n")
	}
	b.WriteString("\n  " + viz.KeyHint.Render("↑/↓ select · enter start · q quit") + "\n")
	return b.String()
}

func (m model) viewSim() string {
	if m.world == nil {
		return ""
	}
	snaps := m.world.Bodies()
	cam := m.scene.Camera
	if m.follow || cam.Scale == 0 {
		cam = viz.Fit(snaps, m.canvas)
	}
	cam.Scale /= m.zoom
	scene := m.scene
	scene.Camera = cam
	scene.Draw(m.canvas, snaps, m.feed, m.world.Time())

	st := m.world.Stats()
	status := viz.StatusRunning.Render("running")
	if m.paused {
		status = viz.StatusPaused.Render("paused")
	}

	var b strings.Builder
	header := fmt.Sprintf(" %s  %s  t=%.2f  x%d", viz.Title.Render(m.preset), status, st.Time, m.speed)
	b.WriteString(header + "\n")
	b.WriteString(viz.Panel.Render(m.canvas.Render()) + "\n")

	stats := []string{
		viz.Metric("bodies", fmt.Sprint(st.Bodies)),
		viz.Metric("disk", fmt.Sprint(st.DiskParticles)),
		viz.Metric("mass", fmt.Sprintf("%.1f", st.Mass)),
		viz.Metric("E", fmt.Sprintf("%.3g", st.Energy())),
		viz.SparkMid.Render(viz.Sparkline(m.history, 20)),
	}
	b.WriteString(" " + strings.Join(stats, "  ") + "\n")

	for _, e := range m.feed {
		color := lipgloss.NewStyle().Foreground(scene.Theme.Event(e.Kind))
		b.WriteString(" " + color.Render(e.String()) + "\n")
	}
	if m.status != "" {
		b.WriteString(" " + viz.StatusPaused.Render(m.status) + "\n")
	}
	b.WriteString(" " + viz.KeyHint.Render("space pause · +/- speed · z/x zoom · f follow · t trails · c colors · r restart · q menu") + "\n")
	return b.String()
}
