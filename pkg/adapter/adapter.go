// Package adapter provides the database adapter contract the dashboard reads
// county statistics and boundaries through.
//
// Concrete adapter implementations are in pkg/adapters/ subdirectories and
// register themselves by type name.
package adapter

import (
	"context"
	"database/sql"
)

// Config holds the configuration for connecting to a database.
type Config struct {
	// Type selects the adapter ("postgres", "duckdb").
	Type string

	// Path is the file path for file-based databases. Use ":memory:" for an
	// in-memory database.
	Path string

	Host     string
	Port     int
	Database string
	Username string
	Password string

	// Options contains driver-specific string options such as sslmode.
	Options map[string]string

	// Params contains structured adapter settings decoded by the adapter.
	Params map[string]any
}

// GeometryQuery describes the boundary table the county geometry set is read
// from. Empty column names fall back to the TIGER/Line names.
type GeometryQuery struct {
	Table       string
	IDColumn    string
	NameColumn  string
	StateColumn string
	GeomColumn  string

	// SRID is the projection the geometry is transformed to. Zero keeps the
	// stored projection.
	SRID int

	// SourceSRID is the stored projection, for engines that cannot read it
	// from the geometry.
	SourceSRID int
}

// WithDefaults returns q with empty column names filled in.
func (q GeometryQuery) WithDefaults() GeometryQuery {
	if q.Table == "" {
		q.Table = "counties"
	}
	if q.IDColumn == "" {
		q.IDColumn = "countyfp"
	}
	if q.NameColumn == "" {
		q.NameColumn = "name"
	}
	if q.StateColumn == "" {
		q.StateColumn = "statefp"
	}
	if q.GeomColumn == "" {
		q.GeomColumn = "geom"
	}
	return q
}

// Adapter defines the interface database adapters implement. One adapter
// holds the single shared connection of a dashboard instance.
type Adapter interface {
	// Connect establishes a connection to the database using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// Close closes the database connection and releases resources.
	Close() error

	// Query executes a SQL statement that returns rows. The caller closes
	// the rows and checks rows.Err.
	Query(ctx context.Context, sql string, args ...any) (*sql.Rows, error)

	// DialectName returns the SQL dialect of the adapter.
	DialectName() string

	// CountyGeometrySQL returns a query selecting id, name and WKB geometry
	// for every county of the state bound to the first placeholder.
	CountyGeometrySQL(q GeometryQuery) string
}
