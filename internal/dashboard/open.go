package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/countymap/internal/choropleth"
	"github.com/leapstack-labs/countymap/internal/history"
	"github.com/leapstack-labs/countymap/internal/panel"
	"github.com/leapstack-labs/countymap/internal/period"
	"github.com/leapstack-labs/countymap/internal/query"
	"github.com/leapstack-labs/countymap/internal/source"
	"github.com/leapstack-labs/countymap/pkg/adapter"
)

// Setup describes everything needed to open a dashboard from config.
type Setup struct {
	Database  adapter.Config
	KeyColumn string
	Geometry  source.GeometryOptions
	Metrics   []string
	Calendar  period.Calendar
	Templates query.Source
	Figure    choropleth.Options
	// HistoryPath enables the render log when set.
	HistoryPath string
}

// Open connects to the database, loads the county geometry set once and
// assembles the dashboard. Close releases the connection and the log.
func Open(ctx context.Context, s Setup, logger *slog.Logger) (*Dashboard, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	tmpl, err := s.Templates.Load()
	if err != nil {
		return nil, err
	}
	builder, err := query.NewBuilder(tmpl, s.Metrics)
	if err != nil {
		return nil, err
	}
	p, err := panel.New(s.Metrics, s.Calendar)
	if err != nil {
		return nil, err
	}

	src, err := source.Open(ctx, s.Database, logger, source.WithKeyColumn(s.KeyColumn))
	if err != nil {
		return nil, err
	}
	set, err := src.LoadCounties(ctx, s.Geometry)
	if err != nil {
		_ = src.Close()
		return nil, err
	}

	var hist *history.Store
	if s.HistoryPath != "" {
		hist, err = history.Open(s.HistoryPath, logger)
		if err != nil {
			_ = src.Close()
			return nil, fmt.Errorf("open render history: %w", err)
		}
	}

	cfg := Config{
		Panel:     p,
		Builder:   builder,
		Generator: choropleth.NewGenerator(set, builder, src, s.Figure, logger),
		Logger:    logger,
	}
	if hist != nil {
		cfg.Recorder = hist
	}
	d, err := New(cfg)
	if err != nil {
		_ = src.Close()
		if hist != nil {
			_ = hist.Close()
		}
		return nil, err
	}
	d.closers = append(d.closers, src.Close)
	if hist != nil {
		d.closers = append(d.closers, hist.Close)
	}
	return d, nil
}

// Close releases resources opened by Open.
func (d *Dashboard) Close() error {
	var errs []error
	for _, c := range d.closers {
		errs = append(errs, c())
	}
	d.closers = nil
	return errors.Join(errs...)
}
