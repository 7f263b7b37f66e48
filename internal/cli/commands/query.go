package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/leapstack-labs/countymap/internal/query"
	"github.com/leapstack-labs/countymap/internal/source"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// QueryOptions holds options for the query command.
type QueryOptions struct {
	Format string
	Input  string
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query [SQL]",
		Short: "Query the statistics database",
		Long: `Run SQL against the configured statistics database over the same
connection settings the dashboard uses.

When invoked without arguments on a terminal, enters interactive REPL mode,
where .count and .change expand and run the configured query templates.`,
		Example: `  # Execute SQL directly
  countymap query "SELECT count(*) FROM tl_2016_us_county"

  # Output as CSV
  countymap query "SELECT * FROM qcew_county LIMIT 5" --format csv

  # Read SQL from a file
  countymap query --input queries/count.sql

  # Interactive mode
  countymap query`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "table", "Output format: table, json, csv, md")
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Read SQL from file")

	return cmd
}

func runQuery(cmd *cobra.Command, args []string, opts *QueryOptions) error {
	cc := NewCommandContext(cmd)

	// Determine SQL source
	var sqlQuery string
	switch {
	case len(args) > 0:
		sqlQuery = strings.Join(args, " ")
	case opts.Input != "":
		content, err := os.ReadFile(opts.Input)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		sqlQuery = string(content)
	case !term.IsTerminal(int(os.Stdin.Fd())):
		content, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		sqlQuery = string(content)
	}

	src, err := source.Open(cmd.Context(), cc.Cfg.AdapterConfig(), cc.Logger, source.WithKeyColumn(cc.Cfg.KeyColumn))
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	if sqlQuery == "" {
		// Templates are optional here; without them .count and .change are disabled.
		var builder *query.Builder
		if tmpl, err := cc.Cfg.QuerySource().Load(); err == nil {
			builder, _ = query.NewBuilder(tmpl, cc.Cfg.Metrics)
		}
		return runQueryREPL(cmd, &replEnv{
			q:       src.Adapter(),
			builder: builder,
			metrics: cc.Cfg.Metrics,
			format:  opts.Format,
			history: historyFileFor(cc.Cfg.History.Path),
		})
	}

	sqlQuery = strings.TrimSuffix(strings.TrimSpace(sqlQuery), ";")
	return executeAndRender(cmd.Context(), cmd.OutOrStdout(), src.Adapter(), sqlQuery, opts.Format)
}
