package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/leapstack-labs/countymap/internal/choropleth"
	"github.com/leapstack-labs/countymap/pkg/adapter"
)

var (
	identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	fipsRe  = regexp.MustCompile(`^[0-9]{2}$`)
)

// Validate checks everything a dashboard needs. All problems are reported
// together.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if c.Database.Type == "" {
		add("database.type is required")
	} else if !adapter.IsRegistered(c.Database.Type) {
		errs = append(errs, &adapter.UnknownAdapterError{Type: c.Database.Type, Available: adapter.ListAdapters()})
	}

	if !fipsRe.MatchString(c.Geometry.State) {
		add("geometry.state must be a two digit state FIPS code, got %q", c.Geometry.State)
	}
	if c.Geometry.SRID < 0 || c.Geometry.SourceSRID < 0 {
		add("geometry.srid must not be negative")
	}

	if len(c.Metrics) == 0 {
		add("metrics: at least one metric is required")
	}
	seen := map[string]bool{}
	for _, m := range c.Metrics {
		if !identRe.MatchString(m) {
			add("metrics: %q is not a plain column name", m)
		}
		if seen[m] {
			add("metrics: %q is listed twice", m)
		}
		seen[m] = true
	}
	if c.KeyColumn != "" && !identRe.MatchString(c.KeyColumn) {
		add("key_column: %q is not a plain column name", c.KeyColumn)
	}

	if c.Calendar.FirstYear <= 0 || c.Calendar.LastYear < c.Calendar.FirstYear {
		add("calendar: invalid year span %d-%d", c.Calendar.FirstYear, c.Calendar.LastYear)
	}

	if c.Queries.Count == "" && c.Queries.CountFile == "" {
		add("queries: count or count_file is required")
	}
	if c.Queries.Change == "" && c.Queries.ChangeFile == "" {
		add("queries: change or change_file is required")
	}

	if _, err := choropleth.ParseFormat(c.Figure.Format); err != nil {
		add("figure.format: %w", err)
	}
	if c.Figure.Width <= 0 || c.Figure.Height <= 0 {
		add("figure: width and height must be positive")
	}

	if c.UI.Port < 0 || c.UI.Port > 65535 {
		add("ui.port %d out of range", c.UI.Port)
	}

	if _, err := ParseLevel(c.LogLevel); err != nil {
		add("log_level: %w", err)
	}

	return errors.Join(errs...)
}

// ParseLevel parses debug, info, warn or error. Empty means warn.
func ParseLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelWarn, nil
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return lvl, nil
}

// NewLogger builds the CLI logger: a text handler on w at the configured
// level, debug when verbose.
func (c *Config) NewLogger(w io.Writer) (*slog.Logger, error) {
	lvl, err := ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	if c.Verbose {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}
