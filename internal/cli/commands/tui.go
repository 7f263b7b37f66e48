package commands

import (
	"github.com/leapstack-labs/countymap/internal/choropleth"
	"github.com/leapstack-labs/countymap/internal/tui"
	"github.com/spf13/cobra"
)

// TUIOptions holds options for the tui command.
type TUIOptions struct {
	Out    string
	Format string
}

// NewTUICommand creates the tui command.
func NewTUICommand() *cobra.Command {
	opts := &TUIOptions{}

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Run the dashboard in the terminal",
		Long: `Run the control panel in the terminal. Each generated map is written
to the output file, replacing the previous one.`,
		Example: `  countymap tui --out map.png --format png`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := NewCommandContext(cmd)

			var format choropleth.Format
			if opts.Format != "" {
				f, err := choropleth.ParseFormat(opts.Format)
				if err != nil {
					return err
				}
				format = f
			}

			dash, err := cc.OpenDashboard(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = dash.Close() }()

			return tui.Run(cmd.Context(), dash, tui.Options{
				Out:    opts.Out,
				Format: format,
				Title:  cc.Cfg.UI.Title,
			})
		},
	}

	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "Image file (default: countymap.<format>)")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Image format: svg or png (default: figure.format)")

	return cmd
}
