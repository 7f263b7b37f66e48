package config

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Starter query templates written by `countymap init`.
const (
	StarterCountQuery = `-- Count mode: one row per county for quarter {q} of {y}.
SELECT cnty, {metric}
FROM qcew_county
WHERE qtr = {q} AND year = {y}
`
	StarterChangeQuery = `-- Change mode: percent change from Q{q0} {y0} to Q{q1} {y1}.
SELECT a.cnty,
       100.0 * (b.{metric} - a.{metric}) / NULLIF(a.{metric}, 0) AS change_in_{metric}_pct
FROM qcew_county a
JOIN qcew_county b ON b.cnty = a.cnty AND b.qtr = {q1} AND b.year = {y1}
WHERE a.qtr = {q0} AND a.year = {y0}
`
)

// Starter returns the configuration `countymap init` writes.
func Starter() *Config {
	return &Config{
		Database: DatabaseConfig{
			Type:     DefaultDatabaseType,
			Host:     DefaultHost,
			Port:     DefaultPort,
			Database: "census",
			User:     "${PGUSER}",
			Password: "${PGPASSWORD}",
			Options:  map[string]string{"sslmode": "disable"},
		},
		Geometry: GeometryConfig{
			State: "17",
			Table: DefaultTable,
			SRID:  DefaultSRID,
		},
		Metrics:  []string{"qtrly_estabs_count", "month3_emplvl", "avg_wkly_wage"},
		Calendar: CalendarConfig{FirstYear: 2005, LastYear: 2015},
		Queries: QueriesConfig{
			CountFile:  "queries/count.sql",
			ChangeFile: "queries/change.sql",
		},
		Figure: FigureConfig{Width: 6, Height: 8, Format: "svg", DPI: 96},
		UI:     UIConfig{Port: DefaultUIPort, Watch: true, Title: DefaultTitle},
		History: HistoryConfig{
			Enabled: true,
			Path:    DefaultHistoryFile,
		},
	}
}

// MarshalYAML encodes cfg with a two space indent.
func MarshalYAML(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("# countymap configuration. Environment overrides use COUNTYMAP_,\n")
	buf.WriteString("# e.g. COUNTYMAP_DATABASE__HOST=db.internal.\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
