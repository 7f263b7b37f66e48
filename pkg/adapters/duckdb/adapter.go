// Package duckdb provides a DuckDB database adapter with the spatial
// extension loaded.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
	"sort"

	"github.com/leapstack-labs/countymap/pkg/adapter"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

var settingNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Adapter implements the adapter.Adapter interface for DuckDB.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new DuckDB adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger},
	}
}

// DialectName returns the SQL dialect for this adapter.
func (a *Adapter) DialectName() string {
	return "duckdb"
}

// Connect establishes a connection to DuckDB.
// Use ":memory:" as the path for an in-memory database.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	params, err := ParseParams(cfg.Params)
	if err != nil {
		return err
	}

	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	a.Logger.Debug("connecting to duckdb", slog.String("path", path))

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return fmt.Errorf("failed to open duckdb connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}

	// Settings and loaded extensions are per connection.
	db.SetMaxOpenConns(1)

	if err := a.setup(ctx, db, params); err != nil {
		_ = db.Close()
		return err
	}

	a.DB = db
	a.Cfg = cfg
	return nil
}

func (a *Adapter) setup(ctx context.Context, db *sql.DB, p *Params) error {
	for _, ext := range p.extensions() {
		if !settingNameRe.MatchString(ext) {
			return fmt.Errorf("invalid extension name %q", ext)
		}
		if _, err := db.ExecContext(ctx, fmt.Sprintf("INSTALL %s; LOAD %s;", ext, ext)); err != nil {
			return fmt.Errorf("failed to load extension %s: %w", ext, err)
		}
		a.Logger.Debug("loaded extension", slog.String("extension", ext))
	}

	names := make([]string, 0, len(p.Settings))
	for k := range p.Settings {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		if !settingNameRe.MatchString(k) {
			return fmt.Errorf("invalid setting name %q", k)
		}
		if _, err := db.ExecContext(ctx, fmt.Sprintf("SET %s = '%s'", k, escapeLiteral(p.Settings[k]))); err != nil {
			return fmt.Errorf("failed to apply setting %s: %w", k, err)
		}
	}
	return nil
}

// CountyGeometrySQL selects id, name and WKB geometry of every county in
// the state bound to the first parameter. DuckDB geometries carry no SRID,
// so a transform needs SourceSRID.
func (a *Adapter) CountyGeometrySQL(q adapter.GeometryQuery) string {
	q = q.WithDefaults()
	geom := q.GeomColumn
	if q.SRID != 0 && q.SourceSRID != 0 && q.SRID != q.SourceSRID {
		geom = fmt.Sprintf("ST_Transform(%s, 'EPSG:%d', 'EPSG:%d', always_xy := true)", geom, q.SourceSRID, q.SRID)
	}
	return fmt.Sprintf("SELECT %s, %s, ST_AsWKB(%s) FROM %s WHERE %s = ? ORDER BY %s",
		q.IDColumn, q.NameColumn, geom, q.Table, q.StateColumn, q.IDColumn)
}

func escapeLiteral(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			out = append(out, '\'')
		}
		out = append(out, s[i])
	}
	return string(out)
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
