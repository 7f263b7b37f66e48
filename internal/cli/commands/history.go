package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/countymap/internal/history"
	"github.com/spf13/cobra"
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	var (
		limit  int
		format string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent renders",
		Long: `Show the render log: every map generated by serve, render or tui,
newest first, including failed attempts and their errors.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := NewCommandContext(cmd)
			path := cc.Cfg.History.Path
			if _, err := os.Stat(path); os.IsNotExist(err) {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("No renders recorded yet."))
				return nil
			}

			store, err := history.Open(path, cc.Logger)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			entries, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return renderHistory(cmd.OutOrStdout(), entries, format)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of renders to show")
	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: table, json")
	return cmd
}

func renderHistory(w io.Writer, entries []history.Entry, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	case "table", "":
	default:
		return fmt.Errorf("unknown format %q (want table or json)", format)
	}

	if len(entries) == 0 {
		_, _ = fmt.Fprintln(w, "(0 renders)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"When", "Mode", "Metric", "Period", "Rows", "Coloured", "Scale", "Took", "Status"})
	for _, e := range entries {
		when := e.Period
		if e.RangeStart != "" {
			when = e.RangeStart + " to " + e.RangeEnd
		}
		scale := "-"
		if e.ScaleMin != nil && e.ScaleMax != nil {
			scale = strconv.FormatFloat(*e.ScaleMin, 'g', 4, 64) + " .. " + strconv.FormatFloat(*e.ScaleMax, 'g', 4, 64)
		}
		status := successStyle.Render("ok")
		if e.Failed() {
			status = errorStyle.Render(e.Error)
		}
		t.AppendRow(table.Row{
			e.At.Local().Format(time.DateTime),
			e.Mode,
			e.Metric,
			when,
			e.ResultRows,
			e.Coloured,
			scale,
			e.Duration.Round(time.Millisecond).String(),
			status,
		})
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d renders)\n", len(entries))
	return nil
}
