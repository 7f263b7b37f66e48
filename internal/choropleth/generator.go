// Package choropleth turns a panel selection into a rendered county map:
// query, join, filter, colour scale and draw.
package choropleth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/countymap/internal/geo"
	"github.com/leapstack-labs/countymap/internal/panel"
	"github.com/leapstack-labs/countymap/internal/query"
	"github.com/leapstack-labs/countymap/internal/source"
)

// Runner executes a built query.
type Runner interface {
	Results(ctx context.Context, sql string) (*source.Result, error)
}

// Render is one finished map and what it was drawn from.
type Render struct {
	Selection panel.Selection
	Query     string
	// Column is the result column the map is coloured by.
	Column string
	// Data holds the coloured counties; empty when only the base layer
	// was drawn.
	Data []Datum
	// Scale is nil when only the base layer was drawn.
	Scale *Scale
	// ResultRows is the number of rows the query returned.
	ResultRows int

	Format Format
	Image  []byte

	At       time.Time
	Duration time.Duration
}

// Empty reports whether only the base layer was drawn.
func (r *Render) Empty() bool { return r.Scale == nil }

// Generator renders maps for one county set.
type Generator struct {
	set     *geo.Set
	builder *query.Builder
	runner  Runner
	opts    Options
	logger  *slog.Logger
}

// NewGenerator creates a Generator. If logger is nil, a discard logger is
// used.
func NewGenerator(set *geo.Set, builder *query.Builder, runner Runner, opts Options, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Generator{
		set:     set,
		builder: builder,
		runner:  runner,
		opts:    opts.withDefaults(),
		logger:  logger,
	}
}

// Set returns the county geometry set.
func (g *Generator) Set() *geo.Set { return g.set }

// Options returns the figure options.
func (g *Generator) Options() Options { return g.opts }

// Generate runs one render to completion for sel.
func (g *Generator) Generate(ctx context.Context, sel panel.Selection) (*Render, error) {
	start := time.Now()

	q, err := g.builder.Build(sel)
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	g.logger.Debug("running query", slog.String("mode", sel.Mode.String()), slog.String("metric", sel.Metric))

	res, err := g.runner.Results(ctx, q.SQL)
	if err != nil {
		return nil, fmt.Errorf("run %s query: %w", sel.Mode, err)
	}

	column := query.ValueColumn(sel.Mode, sel.Metric)
	data, err := Join(g.set, res, column, sel.Mode)
	if err != nil {
		return nil, fmt.Errorf("join results: %w", err)
	}

	r := &Render{
		Selection:  sel,
		Query:      q.SQL,
		Column:     column,
		Data:       data,
		Scale:      ScaleFor(sel.Mode, data),
		ResultRows: len(res.Rows),
		Format:     g.opts.Format,
		At:         start,
	}

	r.Image, err = Draw(g.set, r.Data, r.Scale, r.Column, g.opts)
	if err != nil {
		return nil, fmt.Errorf("draw map: %w", err)
	}
	r.Duration = time.Since(start)

	attrs := []any{
		slog.String("mode", sel.Mode.String()),
		slog.String("column", column),
		slog.Int("rows", r.ResultRows),
		slog.Int("coloured", len(data)),
		slog.Duration("duration", r.Duration),
	}
	if r.Scale != nil {
		attrs = append(attrs, slog.Float64("min", r.Scale.Min), slog.Float64("max", r.Scale.Max))
	}
	g.logger.Info("rendered map", attrs...)
	return r, nil
}

// Encode draws r again in another format.
func (g *Generator) Encode(r *Render, f Format) ([]byte, error) {
	if f == r.Format {
		return r.Image, nil
	}
	opts := g.opts
	opts.Format = f
	return Draw(g.set, r.Data, r.Scale, r.Column, opts)
}
