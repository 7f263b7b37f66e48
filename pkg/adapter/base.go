package adapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
)

// ErrNotConnected is returned by operations on an adapter with no open
// connection.
var ErrNotConnected = errors.New("database connection not established")

// BaseSQLAdapter provides common database/sql functionality for adapters.
// Embed this struct in concrete adapter implementations to get standard
// Close and Query implementations.
type BaseSQLAdapter struct {
	DB     *sql.DB
	Cfg    Config
	Logger *slog.Logger
}

// Close closes the database connection.
func (b *BaseSQLAdapter) Close() error {
	if b.DB == nil {
		return nil
	}
	if b.Logger != nil {
		b.Logger.Debug("closing database connection")
	}
	err := b.DB.Close()
	b.DB = nil
	return err
}

// Query executes a SQL statement that returns rows.
func (b *BaseSQLAdapter) Query(ctx context.Context, sqlStr string, args ...any) (*sql.Rows, error) {
	if b.DB == nil {
		return nil, ErrNotConnected
	}
	if b.Logger != nil {
		b.Logger.Debug("executing query", slog.String("sql", sqlStr), slog.Int("args", len(args)))
	}
	//nolint:rowserrcheck // rows.Err() must be checked by caller after iteration completes
	rows, err := b.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return rows, nil
}

// IsConnected returns true if the database connection is established.
func (b *BaseSQLAdapter) IsConnected() bool {
	return b.DB != nil
}

// Attach adopts an already open connection. Used by tests and callers that
// manage the *sql.DB themselves.
func (b *BaseSQLAdapter) Attach(db *sql.DB) {
	b.DB = db
}
