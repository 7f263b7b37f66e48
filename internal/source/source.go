// Package source is the dashboard's data source: one shared database
// connection, the result reader and the county boundary loader.
package source

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/leapstack-labs/countymap/internal/geo"
	"github.com/leapstack-labs/countymap/pkg/adapter"
	"github.com/paulmach/orb/encoding/wkb"
)

// DefaultKeyColumn is the result column holding the county identifier.
const DefaultKeyColumn = "cnty"

// Row is one result row: the county identifier and every numeric column.
// NULL values are absent from Values.
type Row struct {
	County string
	Values map[string]float64
}

// Value returns the named column and whether it was present and non-NULL.
func (r Row) Value(column string) (float64, bool) {
	v, ok := r.Values[column]
	return v, ok
}

// Result is the decoded output of one query.
type Result struct {
	Columns []string
	Rows    []Row
}

// HasColumn reports whether the query returned the named column.
func (r *Result) HasColumn(name string) bool {
	for _, c := range r.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Source wraps the shared adapter connection.
type Source struct {
	adp       adapter.Adapter
	keyColumn string
	logger    *slog.Logger
}

// Option configures a Source.
type Option func(*Source)

// WithKeyColumn overrides the county identifier column of result rows.
func WithKeyColumn(name string) Option {
	return func(s *Source) {
		if name != "" {
			s.keyColumn = name
		}
	}
}

// New wraps an already connected adapter.
func New(adp adapter.Adapter, logger *slog.Logger, opts ...Option) *Source {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Source{adp: adp, keyColumn: DefaultKeyColumn, logger: logger}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Open creates the adapter named by cfg.Type from the registry and connects
// it.
func Open(ctx context.Context, cfg adapter.Config, logger *slog.Logger, opts ...Option) (*Source, error) {
	adp, err := adapter.Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return New(adp, logger, opts...), nil
}

// Close closes the shared connection.
func (s *Source) Close() error {
	return s.adp.Close()
}

// Adapter returns the underlying adapter.
func (s *Source) Adapter() adapter.Adapter { return s.adp }

// KeyColumn returns the county identifier column name.
func (s *Source) KeyColumn() string { return s.keyColumn }

// Results executes sqlStr and decodes the rows.
func (s *Source) Results(ctx context.Context, sqlStr string) (*Result, error) {
	rows, err := s.adp.Query(ctx, sqlStr)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	res, err := ReadResults(rows, s.keyColumn)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("query results", slog.Int("rows", len(res.Rows)), slog.Any("columns", res.Columns))
	return res, nil
}

// ReadResults decodes rows into Result Rows keyed by keyColumn. The key
// column is matched case-insensitively; every other column that holds a
// number is kept under its reported name.
func ReadResults(rows *sql.Rows, keyColumn string) (*Result, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}
	key := -1
	for i, c := range cols {
		if strings.EqualFold(c, keyColumn) {
			key = i
			break
		}
	}
	if key < 0 {
		return nil, fmt.Errorf("result has no %q column (got %s)", keyColumn, strings.Join(cols, ", "))
	}

	res := &Result{Columns: cols}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan result row: %w", err)
		}
		id, ok := countyKey(vals[key])
		if !ok {
			continue
		}
		row := Row{County: id, Values: make(map[string]float64, len(cols)-1)}
		for i, v := range vals {
			if i == key {
				continue
			}
			if f, ok := toFloat(v); ok {
				row.Values[cols[i]] = f
			}
		}
		res.Rows = append(res.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return res, nil
}

// countyKey normalises a county identifier. Integer identifiers are
// zero-padded to the three digits of a county FIPS code.
func countyKey(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return strings.TrimSpace(x), x != ""
	case []byte:
		s := strings.TrimSpace(string(x))
		return s, s != ""
	case int64:
		return fmt.Sprintf("%03d", x), true
	case int32:
		return fmt.Sprintf("%03d", x), true
	case int:
		return fmt.Sprintf("%03d", x), true
	case float64:
		if x == math.Trunc(x) {
			return fmt.Sprintf("%03d", int64(x)), true
		}
		return strconv.FormatFloat(x, 'f', -1, 64), true
	default:
		return fmt.Sprint(x), true
	}
}

type float64er interface{ Float64() float64 }

// toFloat converts a scanned value to a float. NaN and infinities count as
// missing values.
func toFloat(v any) (float64, bool) {
	f, ok := rawFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func rawFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case nil:
		return 0, false
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case int16:
		return float64(x), true
	case int8:
		return float64(x), true
	case int:
		return float64(x), true
	case uint64:
		return float64(x), true
	case uint32:
		return float64(x), true
	case []byte:
		f, err := strconv.ParseFloat(string(x), 64)
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	case float64er:
		return x.Float64(), true
	default:
		return 0, false
	}
}

// GeometryOptions selects the county boundaries to load.
type GeometryOptions struct {
	// StateFP filters the boundary table.
	StateFP string
	// Query describes the boundary table; ignored when SQL is set.
	Query adapter.GeometryQuery
	// SQL overrides the generated query. It must select id, name and WKB
	// geometry and take the state identifier as its only parameter.
	SQL string
}

// LoadCounties runs the boundary query once and builds the geometry set.
func (s *Source) LoadCounties(ctx context.Context, opts GeometryOptions) (*geo.Set, error) {
	if opts.StateFP == "" {
		return nil, fmt.Errorf("state identifier is required to load counties")
	}
	q := opts.SQL
	if q == "" {
		q = s.adp.CountyGeometrySQL(opts.Query)
	}

	rows, err := s.adp.Query(ctx, q, opts.StateFP)
	if err != nil {
		return nil, fmt.Errorf("load counties: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var counties []geo.County
	for rows.Next() {
		var (
			id   any
			name sql.NullString
		)
		gs := wkb.Scanner(nil)
		if err := rows.Scan(&id, &name, gs); err != nil {
			return nil, fmt.Errorf("scan county: %w", err)
		}
		key, ok := countyKey(id)
		if !ok {
			return nil, fmt.Errorf("county row with NULL id")
		}
		if !gs.Valid {
			s.logger.Warn("county has no geometry, skipping", slog.String("county", key))
			continue
		}
		mp, err := geo.ToMultiPolygon(gs.Geometry)
		if err != nil {
			return nil, fmt.Errorf("county %s: %w", key, err)
		}
		counties = append(counties, geo.County{ID: key, Name: name.String, Geometry: mp})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counties: %w", err)
	}

	set, err := geo.NewSet(opts.StateFP, counties)
	if err != nil {
		return nil, err
	}
	s.logger.Info("loaded county geometry", slog.String("state", opts.StateFP), slog.Int("counties", set.Len()))
	return set, nil
}
