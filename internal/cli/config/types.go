// Package config provides configuration management for the countymap CLI.
//
// Values are layered defaults < countymap.yaml < COUNTYMAP_ environment
// variables < command-line flags.
package config

import (
	"fmt"

	"github.com/leapstack-labs/countymap/internal/choropleth"
	"github.com/leapstack-labs/countymap/internal/dashboard"
	"github.com/leapstack-labs/countymap/internal/period"
	"github.com/leapstack-labs/countymap/internal/query"
	"github.com/leapstack-labs/countymap/internal/source"
	"github.com/leapstack-labs/countymap/pkg/adapter"
	"gonum.org/v1/plot/vg"
)

// Default configuration values.
const (
	DefaultDatabaseType = "postgres"
	DefaultHost         = "localhost"
	DefaultPort         = 5432
	DefaultTable        = "tl_2016_us_county"
	DefaultSRID         = 102698
	DefaultUIPort       = 8765
	DefaultHistoryFile  = ".countymap/history.db"
	DefaultLogLevel     = "warn"
	DefaultTitle        = "County Map"
)

// DatabaseConfig holds the connection settings of the data source.
type DatabaseConfig struct {
	Type     string            `koanf:"type" yaml:"type"`
	Path     string            `koanf:"path" yaml:"path,omitempty"`
	Host     string            `koanf:"host" yaml:"host,omitempty"`
	Port     int               `koanf:"port" yaml:"port,omitempty"`
	Database string            `koanf:"database" yaml:"database,omitempty"`
	User     string            `koanf:"user" yaml:"user,omitempty"`
	Password string            `koanf:"password" yaml:"password,omitempty"`
	Options  map[string]string `koanf:"options" yaml:"options,omitempty"`
	Params   map[string]any    `koanf:"params" yaml:"params,omitempty"`
}

// GeometryConfig selects the county boundaries.
type GeometryConfig struct {
	// State is the state FIPS code the boundary table is filtered by.
	State       string `koanf:"state" yaml:"state"`
	Table       string `koanf:"table" yaml:"table,omitempty"`
	IDColumn    string `koanf:"id_column" yaml:"id_column,omitempty"`
	NameColumn  string `koanf:"name_column" yaml:"name_column,omitempty"`
	StateColumn string `koanf:"state_column" yaml:"state_column,omitempty"`
	GeomColumn  string `koanf:"geom_column" yaml:"geom_column,omitempty"`
	SRID        int    `koanf:"srid" yaml:"srid,omitempty"`
	SourceSRID  int    `koanf:"source_srid" yaml:"source_srid,omitempty"`
	// SQL replaces the generated boundary query.
	SQL string `koanf:"sql" yaml:"sql,omitempty"`
}

// CalendarConfig bounds the selectable quarters.
type CalendarConfig struct {
	FirstYear int `koanf:"first_year" yaml:"first_year"`
	LastYear  int `koanf:"last_year" yaml:"last_year"`
}

// QueriesConfig holds the count and change templates, inline or as files.
type QueriesConfig struct {
	Count      string `koanf:"count" yaml:"count,omitempty"`
	CountFile  string `koanf:"count_file" yaml:"count_file,omitempty"`
	Change     string `koanf:"change" yaml:"change,omitempty"`
	ChangeFile string `koanf:"change_file" yaml:"change_file,omitempty"`
}

// FigureConfig controls the rendered map. Sizes are in inches.
type FigureConfig struct {
	Width      float64 `koanf:"width" yaml:"width"`
	Height     float64 `koanf:"height" yaml:"height"`
	Format     string  `koanf:"format" yaml:"format"`
	DPI        int     `koanf:"dpi" yaml:"dpi"`
	Labels     bool    `koanf:"labels" yaml:"labels"`
	HatchLines int     `koanf:"hatch_lines" yaml:"hatch_lines,omitempty"`
}

// UIConfig holds configuration for the web dashboard.
type UIConfig struct {
	Port          int    `koanf:"port" yaml:"port"`
	Watch         bool   `koanf:"watch" yaml:"watch"`
	SessionSecret string `koanf:"session_secret" yaml:"session_secret,omitempty"`
	Title         string `koanf:"title" yaml:"title,omitempty"`
	Dev           bool   `koanf:"dev" yaml:"dev,omitempty"`
}

// HistoryConfig controls the render log.
type HistoryConfig struct {
	Enabled bool   `koanf:"enabled" yaml:"enabled"`
	Path    string `koanf:"path" yaml:"path,omitempty"`
}

// Config holds all CLI configuration options.
type Config struct {
	Database  DatabaseConfig `koanf:"database" yaml:"database"`
	Geometry  GeometryConfig `koanf:"geometry" yaml:"geometry"`
	KeyColumn string         `koanf:"key_column" yaml:"key_column,omitempty"`
	Metrics   []string       `koanf:"metrics" yaml:"metrics"`
	Calendar  CalendarConfig `koanf:"calendar" yaml:"calendar"`
	Queries   QueriesConfig  `koanf:"queries" yaml:"queries"`
	Figure    FigureConfig   `koanf:"figure" yaml:"figure"`
	UI        UIConfig       `koanf:"ui" yaml:"ui"`
	History   HistoryConfig  `koanf:"history" yaml:"history"`
	LogLevel  string         `koanf:"log_level" yaml:"log_level,omitempty"`
	Verbose   bool           `koanf:"verbose" yaml:"-"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-" yaml:"-"`
	// File is the config file that was loaded, if any.
	File string `koanf:"-" yaml:"-"`
}

// Defaults returns the default values as a flat koanf map.
func Defaults() map[string]any {
	return map[string]any{
		"database.type":       DefaultDatabaseType,
		"database.host":       DefaultHost,
		"database.port":       DefaultPort,
		"geometry.table":      DefaultTable,
		"geometry.srid":       DefaultSRID,
		"key_column":          source.DefaultKeyColumn,
		"calendar.first_year": period.DefaultFirstYear,
		"calendar.last_year":  period.DefaultLastYear,
		"figure.width":        6.0,
		"figure.height":       8.0,
		"figure.format":       string(choropleth.SVG),
		"figure.dpi":          96,
		"figure.labels":       false,
		"figure.hatch_lines":  60,
		"ui.port":             DefaultUIPort,
		"ui.watch":            true,
		"ui.title":            DefaultTitle,
		"history.enabled":     true,
		"history.path":        DefaultHistoryFile,
		"log_level":           DefaultLogLevel,
		"verbose":             false,
	}
}

// AdapterConfig converts the database section for the adapter registry.
func (c *Config) AdapterConfig() adapter.Config {
	return adapter.Config{
		Type:     c.Database.Type,
		Path:     c.Database.Path,
		Host:     c.Database.Host,
		Port:     c.Database.Port,
		Database: c.Database.Database,
		Username: c.Database.User,
		Password: c.Database.Password,
		Options:  c.Database.Options,
		Params:   c.Database.Params,
	}
}

// GeometryOptions converts the geometry section.
func (c *Config) GeometryOptions() source.GeometryOptions {
	g := c.Geometry
	return source.GeometryOptions{
		StateFP: g.State,
		SQL:     g.SQL,
		Query: adapter.GeometryQuery{
			Table:       g.Table,
			IDColumn:    g.IDColumn,
			NameColumn:  g.NameColumn,
			StateColumn: g.StateColumn,
			GeomColumn:  g.GeomColumn,
			SRID:        g.SRID,
			SourceSRID:  g.SourceSRID,
		},
	}
}

// PeriodCalendar returns the configured calendar.
func (c *Config) PeriodCalendar() period.Calendar {
	return period.Calendar{FirstYear: c.Calendar.FirstYear, LastYear: c.Calendar.LastYear}
}

// QuerySource returns where the query templates come from.
func (c *Config) QuerySource() query.Source {
	return query.Source{
		Count:      c.Queries.Count,
		CountFile:  c.Queries.CountFile,
		Change:     c.Queries.Change,
		ChangeFile: c.Queries.ChangeFile,
	}
}

// FigureOptions converts the figure section.
func (c *Config) FigureOptions() (choropleth.Options, error) {
	f, err := choropleth.ParseFormat(c.Figure.Format)
	if err != nil {
		return choropleth.Options{}, err
	}
	return choropleth.Options{
		Width:      vg.Length(c.Figure.Width) * vg.Inch,
		Height:     vg.Length(c.Figure.Height) * vg.Inch,
		Format:     f,
		DPI:        c.Figure.DPI,
		HatchLines: c.Figure.HatchLines,
		Labels:     c.Figure.Labels,
	}, nil
}

// HistoryPath returns the render log path, empty when disabled.
func (c *Config) HistoryPath() string {
	if !c.History.Enabled {
		return ""
	}
	return c.History.Path
}

// Setup assembles the dashboard setup.
func (c *Config) Setup() (dashboard.Setup, error) {
	fig, err := c.FigureOptions()
	if err != nil {
		return dashboard.Setup{}, fmt.Errorf("figure: %w", err)
	}
	return dashboard.Setup{
		Database:    c.AdapterConfig(),
		KeyColumn:   c.KeyColumn,
		Geometry:    c.GeometryOptions(),
		Metrics:     c.Metrics,
		Calendar:    c.PeriodCalendar(),
		Templates:   c.QuerySource(),
		Figure:      fig,
		HistoryPath: c.HistoryPath(),
	}, nil
}
