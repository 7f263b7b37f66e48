// Package postgres provides a PostgreSQL/PostGIS database adapter.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/countymap/pkg/adapter"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
)

// Adapter implements the adapter.Adapter interface for PostgreSQL.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new PostgreSQL adapter instance.
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
	return "postgres"
}

// Connect establishes a connection to PostgreSQL.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	dsn := buildPostgresDSN(cfg)

	a.Logger.Debug("connecting to postgres", slog.String("host", cfg.Host), slog.String("database", cfg.Database))

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping postgres: %w", err)
	}

	// The dashboard shares one connection between every render.
	db.SetMaxOpenConns(1)

	a.DB = db
	a.Cfg = cfg
	return nil
}

// CountyGeometrySQL selects id, name and WKB geometry of every county in
// the state bound to $1, transformed with PostGIS when an SRID is set.
func (a *Adapter) CountyGeometrySQL(q adapter.GeometryQuery) string {
	q = q.WithDefaults()
	geom := q.GeomColumn
	if q.SRID != 0 {
		geom = fmt.Sprintf("ST_Transform(%s, %d)", geom, q.SRID)
	}
	return fmt.Sprintf("SELECT %s, %s, ST_AsBinary(%s) FROM %s WHERE %s = $1 ORDER BY %s",
		q.IDColumn, q.NameColumn, geom, q.Table, q.StateColumn, q.IDColumn)
}

// buildPostgresDSN constructs a PostgreSQL connection string.
func buildPostgresDSN(cfg adapter.Config) string {
	// Build key=value format: host=localhost port=5432 user=postgres ...
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}

	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	sslmode := "disable"
	if mode, ok := cfg.Options["sslmode"]; ok {
		sslmode = mode
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s",
		host, port, cfg.Database, sslmode)

	if cfg.Username != "" {
		dsn += fmt.Sprintf(" user=%s", cfg.Username)
	}
	if cfg.Password != "" {
		dsn += fmt.Sprintf(" password=%s", cfg.Password)
	}
	if app, ok := cfg.Options["application_name"]; ok {
		dsn += fmt.Sprintf(" application_name=%s", app)
	}

	return dsn
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
