package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/countymap/internal/choropleth"
	"github.com/leapstack-labs/countymap/internal/dashboard"
	"github.com/leapstack-labs/countymap/internal/panel"
	"github.com/leapstack-labs/countymap/internal/period"
	"github.com/spf13/cobra"
)

// RenderOptions holds options for the render command.
type RenderOptions struct {
	Metric string
	Mode   string
	Period string
	From   string
	To     string
	Out    string
	Format string
}

// NewRenderCommand creates the render command.
func NewRenderCommand() *cobra.Command {
	opts := &RenderOptions{}

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render one map to a file",
		Long: `Render one choropleth map without starting the dashboard.

Unset controls keep the panel defaults: the first metric, Count mode, the
first quarter and the full quarter range.`,
		Example: `  # Count of jobs in Q2 2010
  countymap render --metric jobs --period "Q2 2010" --out jobs.svg

  # Change in jobs over the whole calendar as PNG
  countymap render --metric jobs --mode change --from 2005Q1 --to 2015Q4 --format png

  # Write the image to stdout
  countymap render --out - > map.svg`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := NewCommandContext(cmd)
			dash, err := cc.OpenDashboard(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = dash.Close() }()

			return runRender(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), dash, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Metric, "metric", "m", "", "Metric to map")
	cmd.Flags().StringVar(&opts.Mode, "mode", "", "Display mode: count or change")
	cmd.Flags().StringVarP(&opts.Period, "period", "p", "", `Quarter for count mode, e.g. "Q2 2010"`)
	cmd.Flags().StringVar(&opts.From, "from", "", "Range start for change mode")
	cmd.Flags().StringVar(&opts.To, "to", "", "Range end for change mode")
	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", `Output file, "-" for stdout (default: countymap.<format>)`)
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Image format: svg or png (default: figure.format)")

	_ = cmd.RegisterFlagCompletionFunc("mode", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"count", "change"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"svg", "png"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

// applyRenderFlags moves the panel controls named by opts. Range ends left
// unset keep the panel's range.
func applyRenderFlags(p *panel.Panel, opts *RenderOptions) error {
	if opts.Metric != "" {
		if err := p.SetMetric(opts.Metric); err != nil {
			return err
		}
	}
	if opts.Period != "" {
		per, err := period.ParsePeriod(opts.Period)
		if err != nil {
			return err
		}
		if err := p.SetPeriod(per); err != nil {
			return err
		}
	}
	if opts.From != "" || opts.To != "" {
		r := p.Selection().Range
		if opts.From != "" {
			per, err := period.ParsePeriod(opts.From)
			if err != nil {
				return err
			}
			r.Start = per
		}
		if opts.To != "" {
			per, err := period.ParsePeriod(opts.To)
			if err != nil {
				return err
			}
			r.End = per
		}
		if err := p.SetRange(r); err != nil {
			return err
		}
	}
	if opts.Mode != "" {
		m, err := panel.ParseMode(opts.Mode)
		if err != nil {
			return err
		}
		return p.SetMode(m)
	}
	return nil
}

func runRender(ctx context.Context, out, errOut io.Writer, dash *dashboard.Dashboard, opts *RenderOptions) error {
	if err := applyRenderFlags(dash.Panel(), opts); err != nil {
		return err
	}

	r, err := dash.Generate(ctx)
	if err != nil {
		return err
	}

	format := r.Format
	if opts.Format != "" {
		if format, err = choropleth.ParseFormat(opts.Format); err != nil {
			return err
		}
	}
	img, err := dash.Image(format)
	if err != nil {
		return err
	}

	path := opts.Out
	if path == "" {
		path = "countymap." + string(format)
	}

	summary := out
	if path == "-" {
		if _, err := out.Write(img); err != nil {
			return err
		}
		summary = errOut
	} else if err := os.WriteFile(path, img, 0o644); err != nil { //nolint:gosec // images are not secret
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	renderSummary(summary, r, path)
	return nil
}

// renderSummary prints what was drawn.
func renderSummary(w io.Writer, r *choropleth.Render, path string) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	sel := r.Selection
	when := sel.Period.String()
	if sel.Mode == panel.ChangeMode {
		when = sel.Range.String()
	}
	t.AppendRow(table.Row{"Mode", sel.Mode.String()})
	t.AppendRow(table.Row{"Metric", panel.DisplayName(sel.Metric)})
	t.AppendRow(table.Row{"Period", when})
	t.AppendRow(table.Row{"Column", r.Column})
	t.AppendRow(table.Row{"Rows", r.ResultRows})
	t.AppendRow(table.Row{"Coloured", len(r.Data)})
	t.AppendRow(table.Row{"Scale", formatScale(r)})
	t.AppendRow(table.Row{"Duration", r.Duration.Round(time.Millisecond).String()})
	if path != "-" {
		t.AppendRow(table.Row{"Output", path})
	}
	t.Render()

	if r.Empty() {
		_, _ = fmt.Fprintln(w, mutedStyle.Render("No county had data; only the base map was drawn."))
	} else {
		_, _ = fmt.Fprintln(w, successStyle.Render("✓ map rendered"))
	}
}

func formatScale(r *choropleth.Render) string {
	if r.Scale == nil {
		return "-"
	}
	return strings.Join([]string{
		strconv.FormatFloat(r.Scale.Min, 'g', 6, 64),
		strconv.FormatFloat(r.Scale.Max, 'g', 6, 64),
	}, " .. ")
}
