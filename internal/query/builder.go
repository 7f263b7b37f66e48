// Package query builds the count and change queries from caller-supplied
// templates.
package query

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/leapstack-labs/countymap/internal/panel"
)

// ErrUnknownPlaceholder is reported by Validate for a {name} the builder
// does not substitute. Templates carrying one are never installed.
var ErrUnknownPlaceholder = errors.New("unknown placeholder")

var (
	placeholderRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)
	identRe       = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// Placeholders substituted in each template.
var (
	CountPlaceholders  = []string{"q", "y", "metric"}
	ChangePlaceholders = []string{"q0", "y0", "q1", "y1", "metric"}
)

// Templates holds the two query templates.
type Templates struct {
	Count  string
	Change string
}

// Validate checks that both templates are set and only use known
// placeholders.
func (t Templates) Validate() error {
	if strings.TrimSpace(t.Count) == "" {
		return fmt.Errorf("count query template is empty")
	}
	if strings.TrimSpace(t.Change) == "" {
		return fmt.Errorf("change query template is empty")
	}
	if err := checkPlaceholders("count", t.Count, CountPlaceholders); err != nil {
		return err
	}
	return checkPlaceholders("change", t.Change, ChangePlaceholders)
}

func checkPlaceholders(name, tmpl string, known []string) error {
	for _, m := range placeholderRe.FindAllStringSubmatch(tmpl, -1) {
		if !slices.Contains(known, m[1]) {
			return fmt.Errorf("%s query: %w {%s}", name, ErrUnknownPlaceholder, m[1])
		}
	}
	return nil
}

// Query is a built query and the values it was built from.
type Query struct {
	SQL    string
	Mode   panel.Mode
	Params map[string]int
}

// Builder expands templates for a selection. Templates can be swapped at
// runtime when the files they were read from change.
type Builder struct {
	mu        sync.RWMutex
	templates Templates
	metrics   []string
}

// NewBuilder validates the templates and metric names.
func NewBuilder(t Templates, metrics []string) (*Builder, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	for _, m := range metrics {
		if !identRe.MatchString(m) {
			return nil, fmt.Errorf("metric %q is not a plain column identifier", m)
		}
	}
	return &Builder{templates: t, metrics: slices.Clone(metrics)}, nil
}

// Templates returns the active templates.
func (b *Builder) Templates() Templates {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.templates
}

// SetTemplates replaces both templates after validating them.
func (b *Builder) SetTemplates(t Templates) error {
	if err := t.Validate(); err != nil {
		return err
	}
	b.mu.Lock()
	b.templates = t
	b.mu.Unlock()
	return nil
}

// Build expands the template matching sel.Mode.
func (b *Builder) Build(sel panel.Selection) (Query, error) {
	if !slices.Contains(b.metrics, sel.Metric) {
		return Query{}, fmt.Errorf("metric %q is not configured", sel.Metric)
	}

	t := b.Templates()
	var (
		tmpl   string
		params map[string]int
	)
	switch sel.Mode {
	case panel.CountMode:
		tmpl = t.Count
		params = map[string]int{"q": sel.Period.Quarter, "y": sel.Period.Year}
	case panel.ChangeMode:
		tmpl = t.Change
		params = map[string]int{
			"q0": sel.Range.Start.Quarter,
			"y0": sel.Range.Start.Year,
			"q1": sel.Range.End.Quarter,
			"y1": sel.Range.End.Year,
		}
	default:
		return Query{}, fmt.Errorf("unsupported mode %s", sel.Mode)
	}

	sql := placeholderRe.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := m[1 : len(m)-1]
		if name == "metric" {
			return sel.Metric
		}
		// Templates are validated on the way in, so every name has a value.
		return strconv.Itoa(params[name])
	})

	return Query{SQL: sql, Mode: sel.Mode, Params: params}, nil
}

// ValueColumn returns the result column the map is coloured by.
func ValueColumn(mode panel.Mode, metric string) string {
	if mode == panel.ChangeMode {
		return "change_in_" + metric + "_pct"
	}
	return metric
}
