package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/leapstack-labs/countymap/internal/panel"
	"github.com/leapstack-labs/countymap/internal/period"
	"github.com/leapstack-labs/countymap/internal/query"
	"github.com/spf13/cobra"
)

const (
	replPrompt     = "countymap> "
	replContPrompt = "      ...> "
)

// replEnv is what the REPL runs against.
type replEnv struct {
	q       querier
	builder *query.Builder
	metrics []string
	format  string
	history string
}

// historyFileFor keeps the REPL history next to the render log.
func historyFileFor(historyDB string) string {
	if historyDB == "" {
		return ""
	}
	return filepath.Join(filepath.Dir(historyDB), "query_history")
}

func runQueryREPL(cmd *cobra.Command, env *replEnv) error {
	ctx := cmd.Context()
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     env.history,
		AutoComplete:    newCompleter(env.metrics),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	_, _ = fmt.Fprintln(out, "countymap query REPL")
	_, _ = fmt.Fprintln(out, "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(out)

	var buf strings.Builder
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			buf.Reset()
			rl.SetPrompt(replPrompt)
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if buf.Len() == 0 && strings.HasPrefix(line, ".") {
			if quit := handleDotCommand(ctx, out, errOut, env, line); quit {
				break
			}
			continue
		}

		// Accumulate multi-line SQL until semicolon
		buf.WriteString(line)
		if !strings.HasSuffix(line, ";") {
			buf.WriteString(" ")
			rl.SetPrompt(replContPrompt)
			continue
		}
		rl.SetPrompt(replPrompt)

		sqlStr := strings.TrimSuffix(buf.String(), ";")
		buf.Reset()
		if err := executeAndRender(ctx, out, env.q, sqlStr, env.format); err != nil {
			_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
		}
		_, _ = fmt.Fprintln(out)
	}
	return nil
}

// handleDotCommand runs one REPL command. It reports whether the REPL
// should exit.
func handleDotCommand(ctx context.Context, out, errOut io.Writer, env *replEnv, line string) bool {
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])

	switch command {
	case ".quit", ".exit":
		return true

	case ".help":
		printREPLHelp(out)

	case ".metrics":
		for _, m := range env.metrics {
			_, _ = fmt.Fprintf(out, "  %-24s %s\n", m, mutedStyle.Render(panel.DisplayName(m)))
		}

	case ".count", ".change", ".sql":
		q, err := templateQuery(env.builder, parts)
		if err != nil {
			_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
			return false
		}
		if command == ".sql" {
			_, _ = fmt.Fprintln(out, q.SQL)
			return false
		}
		_, _ = fmt.Fprintln(out, mutedStyle.Render(q.SQL))
		if err := executeAndRender(ctx, out, env.q, q.SQL, env.format); err != nil {
			_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
		}

	case ".clear":
		_, _ = fmt.Fprint(out, "\033[H\033[2J")

	default:
		_, _ = fmt.Fprintf(errOut, "Unknown command: %s (type .help for commands)\n", command)
	}
	return false
}

// templateQuery expands a template from REPL arguments:
//
//	.count  <metric> <period>
//	.change <metric> <from> <to>
//	.sql    count|change <metric> <periods...>
func templateQuery(b *query.Builder, parts []string) (query.Query, error) {
	if b == nil {
		return query.Query{}, errors.New("no query templates configured")
	}
	kind := strings.TrimPrefix(strings.ToLower(parts[0]), ".")
	args := parts[1:]
	if kind == "sql" {
		if len(args) == 0 {
			return query.Query{}, errors.New("usage: .sql count|change <metric> <periods>")
		}
		kind, args = strings.ToLower(args[0]), args[1:]
	}
	if len(args) < 2 {
		return query.Query{}, fmt.Errorf("usage: .%s <metric> <periods>", kind)
	}

	sel := panel.Selection{Metric: args[0]}
	periods, err := parsePeriods(args[1:])
	if err != nil {
		return query.Query{}, err
	}
	switch kind {
	case "count":
		if len(periods) != 1 {
			return query.Query{}, errors.New("count takes one period")
		}
		sel.Mode = panel.CountMode
		sel.Period = periods[0]
	case "change":
		if len(periods) != 2 {
			return query.Query{}, errors.New("change takes two periods")
		}
		sel.Mode = panel.ChangeMode
		sel.Range = period.Range{Start: periods[0], End: periods[1]}
	default:
		return query.Query{}, fmt.Errorf("unknown template %q (want count or change)", kind)
	}
	return b.Build(sel)
}

// parsePeriods accepts compact periods ("2010Q2") or spaced ones
// ("Q2 2010") split over two arguments.
func parsePeriods(args []string) ([]period.Period, error) {
	var out []period.Period
	for i := 0; i < len(args); i++ {
		tok := args[i]
		if strings.HasPrefix(strings.ToUpper(tok), "Q") && i+1 < len(args) {
			tok += " " + args[i+1]
			i++
		}
		p, err := period.ParsePeriod(tok)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help                            Show this help message
  .metrics                         List the configured metrics
  .count <metric> <period>         Run the count template, e.g. .count jobs Q2 2010
  .change <metric> <from> <to>     Run the change template, e.g. .change jobs 2005Q1 2015Q4
  .sql count|change <metric> ...   Print an expanded template without running it
  .clear                           Clear the screen
  .quit / .exit                    Exit the REPL

Tips:
  - SQL statements must end with a semicolon (;)
  - Use arrow keys to navigate history
  - Tab completion works for commands and metrics
`
	_, _ = fmt.Fprintln(w, help)
}

// newCompleter completes dot-commands and metric names.
func newCompleter(metrics []string) *readline.PrefixCompleter {
	metricItems := make([]readline.PrefixCompleterInterface, 0, len(metrics))
	for _, m := range metrics {
		metricItems = append(metricItems, readline.PcItem(m))
	}
	return readline.NewPrefixCompleter(
		readline.PcItem(".help"),
		readline.PcItem(".metrics"),
		readline.PcItem(".count", metricItems...),
		readline.PcItem(".change", metricItems...),
		readline.PcItem(".sql",
			readline.PcItem("count", metricItems...),
			readline.PcItem("change", metricItems...),
		),
		readline.PcItem(".clear"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
}
