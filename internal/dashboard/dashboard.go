// Package dashboard ties the control panel to the map generator: one
// dashboard instance owns the panel, the query builder, the data source,
// the county geometry set and the output surface.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/leapstack-labs/countymap/internal/choropleth"
	"github.com/leapstack-labs/countymap/internal/geo"
	"github.com/leapstack-labs/countymap/internal/history"
	"github.com/leapstack-labs/countymap/internal/panel"
	"github.com/leapstack-labs/countymap/internal/query"
)

// ErrNoRender is returned when the output surface holds no render.
var ErrNoRender = errors.New("no map has been generated yet")

// Recorder stores a log entry for every render attempt.
type Recorder interface {
	Record(ctx context.Context, e history.Entry) (history.Entry, error)
}

// Config holds the parts of a dashboard.
type Config struct {
	Panel     *panel.Panel
	Builder   *query.Builder
	Generator *choropleth.Generator
	// Recorder is optional.
	Recorder Recorder
	Logger   *slog.Logger
}

// Dashboard is one running dashboard instance.
type Dashboard struct {
	panel   *panel.Panel
	builder *query.Builder
	gen     *choropleth.Generator
	rec     Recorder
	out     *Output
	logger  *slog.Logger
	closers []func() error

	// renderMu serialises renders; a trigger runs to completion before the
	// next one starts.
	renderMu sync.Mutex
}

// New assembles a dashboard.
func New(cfg Config) (*Dashboard, error) {
	if cfg.Panel == nil || cfg.Builder == nil || cfg.Generator == nil {
		return nil, fmt.Errorf("dashboard needs a panel, a query builder and a generator")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	d := &Dashboard{
		panel:   cfg.Panel,
		builder: cfg.Builder,
		gen:     cfg.Generator,
		rec:     cfg.Recorder,
		out:     NewOutput(),
		logger:  logger,
	}
	d.panel.OnModeChange(func(m panel.Mode) {
		v := panel.VisibilityFor(m)
		d.logger.Debug("mode changed", slog.String("mode", m.String()),
			slog.Bool("period_visible", v.Period), slog.Bool("range_visible", v.Range))
	})
	return d, nil
}

// Panel returns the control panel.
func (d *Dashboard) Panel() *panel.Panel { return d.panel }

// Builder returns the query builder.
func (d *Dashboard) Builder() *query.Builder { return d.builder }

// Counties returns the county geometry set.
func (d *Dashboard) Counties() *geo.Set { return d.gen.Set() }

// Output returns the output surface.
func (d *Dashboard) Output() *Output { return d.out }

// Generate renders the map for the current panel selection and replaces the
// output surface with the render or the error.
func (d *Dashboard) Generate(ctx context.Context) (*choropleth.Render, error) {
	return d.GenerateFor(ctx, d.panel.Selection())
}

// GenerateFor renders sel without touching the panel.
func (d *Dashboard) GenerateFor(ctx context.Context, sel panel.Selection) (*choropleth.Render, error) {
	d.renderMu.Lock()
	defer d.renderMu.Unlock()

	start := time.Now()
	r, err := d.gen.Generate(ctx, sel)
	if err != nil {
		d.logger.Error("render failed", slog.String("mode", sel.Mode.String()),
			slog.String("metric", sel.Metric), slog.String("error", err.Error()))
	}
	d.out.replace(r, err)

	if d.rec != nil {
		entry := history.NewEntry(sel, r, start, time.Since(start), err)
		if _, recErr := d.rec.Record(ctx, entry); recErr != nil {
			d.logger.Warn("failed to record render", slog.String("error", recErr.Error()))
		}
	}
	return r, err
}

// Image returns the current render encoded as f.
func (d *Dashboard) Image(f choropleth.Format) ([]byte, error) {
	snap := d.out.Current()
	if snap.Render == nil {
		if snap.Err != nil {
			return nil, snap.Err
		}
		return nil, ErrNoRender
	}
	if b, ok := d.out.encodedAs(snap.Version, f); ok {
		return b, nil
	}
	b, err := d.gen.Encode(snap.Render, f)
	if err != nil {
		return nil, err
	}
	d.out.cache(snap.Version, f, b)
	return b, nil
}

// Values returns the coloured value per county of the current render.
func (d *Dashboard) Values() (column string, values map[string]float64) {
	snap := d.out.Current()
	if snap.Render == nil {
		return "", nil
	}
	values = make(map[string]float64, len(snap.Render.Data))
	for _, dt := range snap.Render.Data {
		values[dt.County.ID] = dt.Value
	}
	return snap.Render.Column, values
}
