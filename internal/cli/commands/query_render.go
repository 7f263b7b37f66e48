package commands

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// querier runs SQL against the data source. adapter.Adapter satisfies it.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (*sql.Rows, error)
}

// resultSet is a fully read query result.
type resultSet struct {
	cols []string
	rows [][]any
}

// executeAndRender runs query and writes its rows in format.
func executeAndRender(ctx context.Context, w io.Writer, q querier, query, format string) error {
	rows, err := q.Query(ctx, query)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	return renderResults(w, rows, format)
}

func renderResults(w io.Writer, rows *sql.Rows, format string) error {
	rs, err := readResultSet(rows)
	if err != nil {
		return err
	}

	switch format {
	case "table", "":
		return rs.writeTable(w)
	case "json":
		return rs.writeJSON(w)
	case "csv":
		return rs.writeCSV(w)
	case "md", "markdown":
		return rs.writeMarkdown(w)
	default:
		return fmt.Errorf("unknown format %q (want table, json, csv or md)", format)
	}
}

func readResultSet(rows *sql.Rows) (*resultSet, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	rs := &resultSet{cols: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		rs.rows = append(rs.rows, vals)
	}
	return rs, rows.Err()
}

// numericColumns reports which columns hold only numbers, for alignment.
func (rs *resultSet) numericColumns() []bool {
	numeric := make([]bool, len(rs.cols))
	for i := range rs.cols {
		numeric[i] = len(rs.rows) > 0
		for _, row := range rs.rows {
			if row[i] == nil {
				continue
			}
			if !isNumber(row[i]) {
				numeric[i] = false
				break
			}
		}
	}
	return numeric
}

func (rs *resultSet) writeTable(w io.Writer) error {
	if len(rs.rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(rs.cols))
	configs := make([]table.ColumnConfig, 0, len(rs.cols))
	for i, col := range rs.cols {
		header[i] = col
	}
	for i, numeric := range rs.numericColumns() {
		if numeric {
			configs = append(configs, table.ColumnConfig{Number: i + 1, Align: text.AlignRight})
		}
	}
	t.AppendHeader(header)
	t.SetColumnConfigs(configs)

	for _, row := range rs.rows {
		out := make(table.Row, len(row))
		for i, v := range row {
			out[i] = formatValue(v)
		}
		t.AppendRow(out)
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d rows)\n", len(rs.rows))
	return nil
}

func (rs *resultSet) writeJSON(w io.Writer) error {
	objs := make([]map[string]any, 0, len(rs.rows))
	for _, row := range rs.rows {
		obj := make(map[string]any, len(rs.cols))
		for i, col := range rs.cols {
			obj[col] = row[i]
		}
		objs = append(objs, obj)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(objs)
}

func (rs *resultSet) writeCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(rs.cols); err != nil {
		return err
	}
	rec := make([]string, len(rs.cols))
	for _, row := range rs.rows {
		for i, v := range row {
			rec[i] = formatValue(v)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (rs *resultSet) writeMarkdown(w io.Writer) error {
	if len(rs.rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}
	line := func(cells []string) {
		_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(cells, " | "))
	}

	line(rs.cols)
	seps := make([]string, len(rs.cols))
	for i, numeric := range rs.numericColumns() {
		seps[i] = "---"
		if numeric {
			seps[i] = "--:"
		}
	}
	line(seps)

	cells := make([]string, len(rs.cols))
	for _, row := range rs.rows {
		for i, v := range row {
			cells[i] = strings.ReplaceAll(formatValue(v), "|", `\|`)
		}
		line(cells)
	}
	return nil
}

// formatValue prints NULL for missing values and floats without trailing
// zeros.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	}
	return fmt.Sprint(v)
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int32, int64, float32, float64:
		return true
	}
	return false
}
