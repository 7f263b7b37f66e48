// Package tui is the terminal rendition of the dashboard: the control panel
// as a list of controls and the output surface as a status box. Generated
// maps are written to a file.
package tui

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/leapstack-labs/countymap/internal/choropleth"
	"github.com/leapstack-labs/countymap/internal/dashboard"
	"github.com/leapstack-labs/countymap/internal/panel"
	"github.com/leapstack-labs/countymap/internal/period"
)

// Options configures where generated maps go.
type Options struct {
	// Out is the image path. Empty means countymap.<format>.
	Out string
	// Format overrides the figure format when set.
	Format choropleth.Format
	Title  string
}

type control int

const (
	ctrlMetric control = iota
	ctrlMode
	ctrlPeriod
	ctrlFrom
	ctrlTo
)

func (c control) label() string {
	switch c {
	case ctrlMetric:
		return "Metric"
	case ctrlMode:
		return "Mode"
	case ctrlPeriod:
		return "Period"
	case ctrlFrom:
		return "From"
	case ctrlTo:
		return "To"
	}
	return ""
}

// generatedMsg reports a finished render.
type generatedMsg struct {
	render *choropleth.Render
	path   string
	err    error
}

// Model is the bubbletea model.
type Model struct {
	ctx     context.Context
	dash    *dashboard.Dashboard
	opts    Options
	keys    keyMap
	help    help.Model
	spinner spinner.Model

	focus  control
	busy   bool
	status string
	err    error
}

// New creates the model for dash.
func New(ctx context.Context, dash *dashboard.Dashboard, opts Options) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = focusedStyle
	if opts.Title == "" {
		opts.Title = "countymap"
	}
	return Model{
		ctx:     ctx,
		dash:    dash,
		opts:    opts,
		keys:    defaultKeyMap(),
		help:    help.New(),
		spinner: sp,
		focus:   ctrlMetric,
		status:  "Pick a metric and period, then press enter.",
	}
}

// Run starts the terminal dashboard and blocks until the user quits or ctx
// is cancelled.
func Run(ctx context.Context, dash *dashboard.Dashboard, opts Options) error {
	p := tea.NewProgram(New(ctx, dash, opts), tea.WithContext(ctx), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case generatedMsg:
		m.busy = false
		m.err = msg.err
		if msg.err == nil {
			m.status = summary(msg.render, msg.path)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Generate):
		if m.busy {
			return m, nil
		}
		m.busy = true
		m.err = nil
		return m, tea.Batch(m.spinner.Tick, m.generate())
	case key.Matches(msg, m.keys.Mode):
		m.err = m.toggleMode()
	case key.Matches(msg, m.keys.Up):
		m.moveFocus(-1)
	case key.Matches(msg, m.keys.Down):
		m.moveFocus(1)
	case key.Matches(msg, m.keys.Left):
		m.err = m.step(-1)
	case key.Matches(msg, m.keys.Right):
		m.err = m.step(1)
	}
	return m, nil
}

// controls lists the rows on screen. Exactly one period control is shown.
func (m Model) controls() []control {
	if m.dash.Panel().Visibility().Period {
		return []control{ctrlMetric, ctrlMode, ctrlPeriod}
	}
	return []control{ctrlMetric, ctrlMode, ctrlFrom, ctrlTo}
}

func (m *Model) moveFocus(delta int) {
	ctrls := m.controls()
	i := slices.Index(ctrls, m.focus)
	if i < 0 {
		i = 0
	}
	i = (i + delta + len(ctrls)) % len(ctrls)
	m.focus = ctrls[i]
}

func (m *Model) toggleMode() error {
	p := m.dash.Panel()
	next := panel.ChangeMode
	if p.Mode() == panel.ChangeMode {
		next = panel.CountMode
	}
	if err := p.SetMode(next); err != nil {
		return err
	}
	if !slices.Contains(m.controls(), m.focus) {
		m.focus = ctrlMode
	}
	return nil
}

// step moves the focused control by delta options.
func (m *Model) step(delta int) error {
	p := m.dash.Panel()
	sel := p.Selection()
	cal := p.Calendar()

	switch m.focus {
	case ctrlMetric:
		metrics := p.Metrics()
		i := slices.Index(metrics, sel.Metric)
		i = (i + delta + len(metrics)) % len(metrics)
		return p.SetMetric(metrics[i])
	case ctrlMode:
		return m.toggleMode()
	case ctrlPeriod:
		if next, ok := cal.At(cal.Index(sel.Period) + delta); ok {
			return p.SetPeriod(next)
		}
	case ctrlFrom, ctrlTo:
		r := sel.Range
		end := &r.Start
		if m.focus == ctrlTo {
			end = &r.End
		}
		next, ok := cal.At(cal.Index(*end) + delta)
		if !ok {
			return nil
		}
		*end = next
		if r.End.Before(r.Start) {
			r = period.Range{Start: r.End, End: r.Start}
		}
		return p.SetRange(r)
	}
	return nil
}

// generate renders the current selection and writes the image.
func (m Model) generate() tea.Cmd {
	ctx, dash, opts := m.ctx, m.dash, m.opts
	return func() tea.Msg {
		r, err := dash.Generate(ctx)
		if err != nil {
			return generatedMsg{err: err}
		}
		format := opts.Format
		if format == "" {
			format = r.Format
		}
		img, err := dash.Image(format)
		if err != nil {
			return generatedMsg{err: err}
		}
		path := opts.Out
		if path == "" {
			path = "countymap." + string(format)
		}
		if err := os.WriteFile(path, img, 0o644); err != nil { //nolint:gosec // images are not secret
			return generatedMsg{err: fmt.Errorf("failed to write %s: %w", path, err)}
		}
		return generatedMsg{render: r, path: path}
	}
}

func summary(r *choropleth.Render, path string) string {
	sel := r.Selection
	when := sel.Period.Label()
	if sel.Mode == panel.ChangeMode {
		when = sel.Range.String()
	}
	head := fmt.Sprintf("%s %s, %s: ", sel.Mode, r.Column, strings.TrimSpace(when))
	if r.Empty() {
		return head + fmt.Sprintf("no counties with data (%d rows) -> %s", r.ResultRows, path)
	}
	return head + fmt.Sprintf("%d of %d rows coloured, scale %s to %s -> %s",
		len(r.Data), r.ResultRows,
		strconv.FormatFloat(r.Scale.Min, 'g', 6, 64),
		strconv.FormatFloat(r.Scale.Max, 'g', 6, 64),
		path)
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.opts.Title))
	b.WriteString("\n")

	for _, c := range m.controls() {
		b.WriteString(m.row(c))
		b.WriteString("\n")
	}

	var out string
	switch {
	case m.busy:
		out = m.spinner.View() + " Generating…"
	case m.err != nil:
		out = errorStyle.Render(m.err.Error())
	case m.dash.Output().Current().Render != nil:
		out = successStyle.Render(m.status)
	default:
		out = mutedStyle.Render(m.status)
	}
	b.WriteString(outputBox.Render(out))
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) row(c control) string {
	sel := m.dash.Panel().Selection()
	var value, hint string
	switch c {
	case ctrlMetric:
		value = panel.DisplayName(sel.Metric)
	case ctrlMode:
		value = sel.Mode.String()
		hint = sel.Mode.Tooltip()
	case ctrlPeriod:
		value = strings.TrimSpace(sel.Period.Label())
	case ctrlFrom:
		value = strings.TrimSpace(sel.Range.Start.Label())
	case ctrlTo:
		value = strings.TrimSpace(sel.Range.End.Label())
	}

	cursor, style := "  ", valueStyle
	if c == m.focus {
		cursor, style = "› ", focusedStyle
	}
	line := lipgloss.JoinHorizontal(lipgloss.Top,
		cursor, labelStyle.Render(c.label()), style.Render("‹ "+value+" ›"))
	if hint != "" {
		line += "  " + tooltipStyle.Render(hint)
	}
	return line
}
