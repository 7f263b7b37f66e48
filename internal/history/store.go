// Package history keeps a log of rendered maps in a local SQLite file.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/leapstack-labs/countymap/internal/choropleth"
	"github.com/leapstack-labs/countymap/internal/panel"

	_ "modernc.org/sqlite" // SQLite driver (pure Go)
)

// Entry is one logged render attempt.
type Entry struct {
	ID         string
	At         time.Time
	Mode       string
	Metric     string
	Period     string
	RangeStart string
	RangeEnd   string
	Column     string
	ResultRows int
	Coloured   int
	ScaleMin   *float64
	ScaleMax   *float64
	Duration   time.Duration
	Error      string
}

// Failed reports whether the render returned an error.
func (e Entry) Failed() bool { return e.Error != "" }

// NewEntry describes a render attempt. r is nil when the render failed.
func NewEntry(sel panel.Selection, r *choropleth.Render, at time.Time, took time.Duration, renderErr error) Entry {
	e := Entry{
		At:       at.UTC(),
		Mode:     sel.Mode.String(),
		Metric:   sel.Metric,
		Duration: took,
	}
	if sel.Mode == panel.ChangeMode {
		e.RangeStart = sel.Range.Start.String()
		e.RangeEnd = sel.Range.End.String()
	} else {
		e.Period = sel.Period.String()
	}
	if renderErr != nil {
		e.Error = renderErr.Error()
	}
	if r != nil {
		e.Column = r.Column
		e.ResultRows = r.ResultRows
		e.Coloured = len(r.Data)
		if r.Scale != nil {
			lo, hi := r.Scale.Min, r.Scale.Max
			e.ScaleMin, e.ScaleMax = &lo, &hi
		}
	}
	return e
}

// Store is the SQLite render log.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open opens or creates the log at path and runs migrations.
// Use ":memory:" for an in-memory log.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	dsn := path
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return nil, fmt.Errorf("failed to create history directory: %w", err)
			}
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// One connection keeps ":memory:" a single database.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Debug("opened render history", slog.String("path", path))
	return &Store{db: db, path: path, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Record stores e, assigning an ID when it has none.
func (s *Store) Record(ctx context.Context, e Entry) (Entry, error) {
	if s.db == nil {
		return e, fmt.Errorf("database not opened")
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO renders (id, rendered_at, mode, metric, period, range_start, range_end, column_name,
			result_rows, coloured, scale_min, scale_max, duration_ms, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.At, e.Mode, e.Metric, nullString(e.Period), nullString(e.RangeStart), nullString(e.RangeEnd),
		nullString(e.Column), e.ResultRows, e.Coloured, e.ScaleMin, e.ScaleMax, e.Duration.Milliseconds(),
		nullString(e.Error),
	)
	if err != nil {
		return e, fmt.Errorf("failed to record render: %w", err)
	}
	return e, nil
}

// List returns the most recent entries first. limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, rendered_at, mode, metric, period, range_start, range_end, column_name,
			result_rows, coloured, scale_min, scale_max, duration_ms, error
		FROM renders ORDER BY rendered_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list renders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		var (
			e                                    Entry
			period, start, end, column, errorMsg sql.NullString
			lo, hi                               sql.NullFloat64
			ms                                   int64
		)
		if err := rows.Scan(&e.ID, &e.At, &e.Mode, &e.Metric, &period, &start, &end, &column,
			&e.ResultRows, &e.Coloured, &lo, &hi, &ms, &errorMsg); err != nil {
			return nil, fmt.Errorf("failed to scan render: %w", err)
		}
		e.Period, e.RangeStart, e.RangeEnd = period.String, start.String, end.String
		e.Column, e.Error = column.String, errorMsg.String
		e.Duration = time.Duration(ms) * time.Millisecond
		if lo.Valid {
			e.ScaleMin = &lo.Float64
		}
		if hi.Valid {
			e.ScaleMax = &hi.Float64
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating renders: %w", err)
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
