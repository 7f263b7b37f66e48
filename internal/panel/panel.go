// Package panel holds the control panel state: the selected metric, the
// display mode and the period or period range the map is drawn for.
package panel

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/leapstack-labs/countymap/internal/period"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Mode is the display mode of the map.
type Mode int

// Display modes. CountMode is the initial state.
const (
	CountMode Mode = iota
	ChangeMode
)

// String returns the toggle label for the mode.
func (m Mode) String() string {
	switch m {
	case CountMode:
		return "Count"
	case ChangeMode:
		return "Change"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Tooltip returns the toggle tooltip for the mode.
func (m Mode) Tooltip() string {
	if m == ChangeMode {
		return "Display change over time"
	}
	return "Display absolute counts"
}

// ParseMode parses a toggle label.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "Count", "count":
		return CountMode, nil
	case "Change", "change":
		return ChangeMode, nil
	}
	return CountMode, fmt.Errorf("unknown mode %q (want Count or Change)", s)
}

// Modes lists the toggle options in display order.
func Modes() []Mode { return []Mode{CountMode, ChangeMode} }

// Visibility reports which period control is shown.
type Visibility struct {
	Period bool `json:"period"`
	Range  bool `json:"range"`
}

// VisibilityFor returns the control visibility for a mode.
// Exactly one of the two controls is visible.
func VisibilityFor(m Mode) Visibility {
	return Visibility{Period: m == CountMode, Range: m == ChangeMode}
}

// Selection is an immutable snapshot of the panel.
type Selection struct {
	Metric string        `json:"metric"`
	Mode   Mode          `json:"mode"`
	Period period.Period `json:"period"`
	Range  period.Range  `json:"range"`
}

// InvalidSelectionError is returned when a control is set to a value outside
// its options.
type InvalidSelectionError struct {
	Control string
	Value   string
	Reason  string
}

func (e *InvalidSelectionError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Control, e.Value, e.Reason)
}

// Panel is the control panel state machine.
type Panel struct {
	// modeMu orders mode transitions with their notifications.
	modeMu    sync.Mutex
	mu        sync.RWMutex
	metrics   []string
	calendar  period.Calendar
	sel       Selection
	observers []func(Mode)
}

// New creates a panel in CountMode with the first metric, the first period
// and the full range selected.
func New(metrics []string, cal period.Calendar) (*Panel, error) {
	if len(metrics) == 0 {
		return nil, fmt.Errorf("at least one metric is required")
	}
	if cal.Len() == 0 {
		return nil, fmt.Errorf("calendar %d-%d has no periods", cal.FirstYear, cal.LastYear)
	}
	return &Panel{
		metrics:  slices.Clone(metrics),
		calendar: cal,
		sel: Selection{
			Metric: metrics[0],
			Mode:   CountMode,
			Period: cal.First(),
			Range:  cal.FullRange(),
		},
	}, nil
}

// Metrics returns the dropdown options.
func (p *Panel) Metrics() []string {
	return slices.Clone(p.metrics)
}

// Calendar returns the period options.
func (p *Panel) Calendar() period.Calendar {
	return p.calendar
}

// Selection returns a snapshot of the current state.
func (p *Panel) Selection() Selection {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sel
}

// Mode returns the current mode.
func (p *Panel) Mode() Mode {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sel.Mode
}

// Visibility returns the visibility of both period controls.
func (p *Panel) Visibility() Visibility {
	return VisibilityFor(p.Mode())
}

// OnModeChange registers fn to be called after every mode transition.
func (p *Panel) OnModeChange(fn func(Mode)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, fn)
}

// SetMode moves the panel to m. Observers run only when the mode changed,
// in the order the transitions happened. An observer must not call SetMode.
func (p *Panel) SetMode(m Mode) error {
	if m != CountMode && m != ChangeMode {
		return &InvalidSelectionError{Control: "mode", Value: m.String(), Reason: "not a toggle option"}
	}
	p.modeMu.Lock()
	defer p.modeMu.Unlock()

	p.mu.Lock()
	changed := p.sel.Mode != m
	p.sel.Mode = m
	observers := slices.Clone(p.observers)
	p.mu.Unlock()

	if changed {
		for _, fn := range observers {
			fn(m)
		}
	}
	return nil
}

// SetMetric selects a metric from the dropdown options.
func (p *Panel) SetMetric(metric string) error {
	if !slices.Contains(p.metrics, metric) {
		return &InvalidSelectionError{Control: "metric", Value: metric, Reason: "not in metric list"}
	}
	p.mu.Lock()
	p.sel.Metric = metric
	p.mu.Unlock()
	return nil
}

// SetPeriod moves the single-quarter selector.
func (p *Panel) SetPeriod(per period.Period) error {
	if !p.calendar.Contains(per) {
		return &InvalidSelectionError{Control: "period", Value: per.String(), Reason: "outside calendar"}
	}
	p.mu.Lock()
	p.sel.Period = per
	p.mu.Unlock()
	return nil
}

// SetRange moves the range selector.
func (p *Panel) SetRange(r period.Range) error {
	if err := p.calendar.ValidRange(r); err != nil {
		return &InvalidSelectionError{Control: "range", Value: r.String(), Reason: err.Error()}
	}
	p.mu.Lock()
	p.sel.Range = r
	p.mu.Unlock()
	return nil
}

// Apply sets every control from sel. It stops at the first invalid value and
// leaves the controls already applied in place.
func (p *Panel) Apply(sel Selection) error {
	if err := p.SetMetric(sel.Metric); err != nil {
		return err
	}
	if err := p.SetPeriod(sel.Period); err != nil {
		return err
	}
	if err := p.SetRange(sel.Range); err != nil {
		return err
	}
	return p.SetMode(sel.Mode)
}

var titleCaser = cases.Title(language.English)

// DisplayName turns a metric column name into a dropdown label:
// "avg_wage" becomes "Avg Wage".
func DisplayName(metric string) string {
	return titleCaser.String(strings.ReplaceAll(metric, "_", " "))
}
