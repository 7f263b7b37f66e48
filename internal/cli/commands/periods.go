package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/countymap/internal/period"
	"github.com/spf13/cobra"
)

// NewPeriodsCommand creates the periods command.
func NewPeriodsCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "periods",
		Short: "List the selectable quarters",
		Long: `List the quarters of the configured calendar in selector order, with
the slider position the web dashboard uses for each.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := NewCommandContext(cmd)
			return renderPeriods(cmd.OutOrStdout(), cc.Cfg.PeriodCalendar(), format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: table, json")
	return cmd
}

type periodRow struct {
	Index   int    `json:"index"`
	Quarter int    `json:"quarter"`
	Year    int    `json:"year"`
	Label   string `json:"label"`
}

func renderPeriods(w io.Writer, cal period.Calendar, format string) error {
	opts := cal.Options()
	if len(opts) == 0 {
		return fmt.Errorf("calendar %d-%d has no periods", cal.FirstYear, cal.LastYear)
	}
	rows := make([]periodRow, len(opts))
	for i, p := range opts {
		rows[i] = periodRow{Index: i, Quarter: p.Quarter, Year: p.Year, Label: p.String()}
	}

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case "table", "":
	default:
		return fmt.Errorf("unknown format %q (want table or json)", format)
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Quarter", "Year", "Label"})
	for _, r := range rows {
		t.AppendRow(table.Row{r.Index, r.Quarter, r.Year, r.Label})
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d periods, default range %s)\n", len(rows), cal.FullRange())
	return nil
}
