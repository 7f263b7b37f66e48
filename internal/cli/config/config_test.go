package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot/vg"

	"github.com/leapstack-labs/countymap/internal/choropleth"

	// Import adapter packages to ensure adapters are registered via init()
	_ "github.com/leapstack-labs/countymap/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/countymap/pkg/adapters/postgres"
)

const testYAML = `
database:
  type: duckdb
  path: data/qcew.duckdb
  params:
    extensions: [httpfs]
geometry:
  state: "17"
  table: counties
metrics: [jobs, wages]
calendar:
  first_year: 2010
  last_year: 2012
queries:
  count: "SELECT cnty, {metric} FROM q WHERE qtr = {q} AND year = {y}"
  change_file: queries/change.sql
figure:
  format: png
  width: 4
history:
  path: state/history.db
`

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "countymap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func newFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("config", "", "")
	fs.BoolP("verbose", "v", false, "")
	fs.String("log-level", "", "")
	fs.String("state", "", "")
	fs.String("db-type", "", "")
	fs.String("db-path", "", "")
	fs.String("history", "", "")
	return fs
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, testYAML)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.File)
	assert.Equal(t, dir, cfg.ProjectRoot)
	assert.Equal(t, "duckdb", cfg.Database.Type)
	assert.Equal(t, filepath.Join(dir, "data/qcew.duckdb"), cfg.Database.Path)
	assert.Equal(t, []any{"httpfs"}, cfg.Database.Params["extensions"])
	assert.Equal(t, []string{"jobs", "wages"}, cfg.Metrics)
	assert.Equal(t, 2010, cfg.Calendar.FirstYear)
	assert.Equal(t, filepath.Join(dir, "queries/change.sql"), cfg.Queries.ChangeFile)
	assert.Equal(t, filepath.Join(dir, "state/history.db"), cfg.History.Path)

	// Defaults survive where the file is silent.
	assert.Equal(t, DefaultSRID, cfg.Geometry.SRID)
	assert.Equal(t, "cnty", cfg.KeyColumn)
	assert.Equal(t, 8.0, cfg.Figure.Height)
	assert.Equal(t, DefaultUIPort, cfg.UI.Port)
	assert.True(t, cfg.History.Enabled)
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, testYAML)

	t.Setenv("COUNTYMAP_GEOMETRY__STATE", "18")
	t.Setenv("COUNTYMAP_LOG_LEVEL", "info")
	t.Setenv("COUNTYMAP_UI__PORT", "9000")

	fs := newFlags()
	require.NoError(t, fs.Parse([]string{"--log-level", "debug", "--db-type", "postgres"}))

	cfg, err := Load(path, fs)
	require.NoError(t, err)

	assert.Equal(t, "18", cfg.Geometry.State, "env beats file")
	assert.Equal(t, 9000, cfg.UI.Port, "env values are converted")
	assert.Equal(t, "debug", cfg.LogLevel, "flag beats env")
	assert.Equal(t, "postgres", cfg.Database.Type, "flag beats file")
}

func TestLoad_UpwardSearch(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, testYAML)
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o750))
	t.Chdir(nested)

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, root, cfg.ProjectRoot)
	assert.Equal(t, "duckdb", cfg.Database.Type)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)

	path := writeConfig(t, t.TempDir(), "metrics: [unclosed\n")
	_, err = Load(path, nil)
	assert.ErrorContains(t, err, "error reading config file")
}

func TestLoad_ExpandsDatabaseEnvVars(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
database:
  type: postgres
  user: ${COUNTYMAP_TEST_USER}
  password: ${COUNTYMAP_TEST_UNSET}
`)
	t.Setenv("COUNTYMAP_TEST_USER", "analyst")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "analyst", cfg.Database.User)
	assert.Equal(t, "${COUNTYMAP_TEST_UNSET}", cfg.Database.Password)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := Starter()
		c.LogLevel = "info"
		return c
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "starter is valid", mutate: func(*Config) {}},
		{name: "unknown adapter", mutate: func(c *Config) { c.Database.Type = "mysql" }, wantErr: "unknown adapter type"},
		{name: "missing adapter", mutate: func(c *Config) { c.Database.Type = "" }, wantErr: "database.type is required"},
		{name: "state not fips", mutate: func(c *Config) { c.Geometry.State = "IL" }, wantErr: "geometry.state"},
		{name: "no metrics", mutate: func(c *Config) { c.Metrics = nil }, wantErr: "at least one metric"},
		{name: "metric not identifier", mutate: func(c *Config) { c.Metrics = []string{"jobs; drop"} }, wantErr: "not a plain column name"},
		{name: "duplicate metric", mutate: func(c *Config) { c.Metrics = []string{"jobs", "jobs"} }, wantErr: "listed twice"},
		{name: "inverted calendar", mutate: func(c *Config) { c.Calendar.LastYear = 2000 }, wantErr: "invalid year span"},
		{name: "no count query", mutate: func(c *Config) { c.Queries.CountFile = "" }, wantErr: "count or count_file"},
		{name: "no change query", mutate: func(c *Config) { c.Queries.ChangeFile = "" }, wantErr: "change or change_file"},
		{name: "bad format", mutate: func(c *Config) { c.Figure.Format = "gif" }, wantErr: "figure.format"},
		{name: "bad size", mutate: func(c *Config) { c.Figure.Width = 0 }, wantErr: "width and height"},
		{name: "bad port", mutate: func(c *Config) { c.UI.Port = 70000 }, wantErr: "ui.port"},
		{name: "bad log level", mutate: func(c *Config) { c.LogLevel = "loud" }, wantErr: "unknown log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	c := Starter()
	c.Metrics = nil
	c.Geometry.State = ""
	err := c.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "geometry.state")
	assert.ErrorContains(t, err, "at least one metric")
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, lvl)

	lvl, err = ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)

	_, err = ParseLevel("chatty")
	assert.Error(t, err)
}

func TestConversions(t *testing.T) {
	c := Starter()
	c.Figure.Format = "png"
	c.Figure.Labels = true

	setup, err := c.Setup()
	require.NoError(t, err)

	assert.Equal(t, "postgres", setup.Database.Type)
	assert.Equal(t, "${PGUSER}", setup.Database.Username)
	assert.Equal(t, "17", setup.Geometry.StateFP)
	assert.Equal(t, DefaultTable, setup.Geometry.Query.Table)
	assert.Equal(t, DefaultSRID, setup.Geometry.Query.SRID)
	assert.Equal(t, 2005, setup.Calendar.FirstYear)
	assert.Equal(t, "queries/count.sql", setup.Templates.CountFile)
	assert.Equal(t, choropleth.PNG, setup.Figure.Format)
	assert.Equal(t, 6*vg.Inch, setup.Figure.Width)
	assert.True(t, setup.Figure.Labels)
	assert.Equal(t, DefaultHistoryFile, setup.HistoryPath)

	c.History.Enabled = false
	assert.Empty(t, c.HistoryPath())

	c.Figure.Format = "bmp"
	_, err = c.Setup()
	assert.Error(t, err)
}

func TestMarshalYAML_RoundTrip(t *testing.T) {
	b, err := MarshalYAML(Starter())
	require.NoError(t, err)
	assert.Contains(t, string(b), "COUNTYMAP_")
	assert.Contains(t, string(b), "tl_2016_us_county")

	dir := t.TempDir()
	path := writeConfig(t, dir, string(b))
	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, Starter().Metrics, cfg.Metrics)
	assert.Equal(t, "17", cfg.Geometry.State)
	assert.Equal(t, filepath.Join(dir, "queries/count.sql"), cfg.Queries.CountFile)
}
