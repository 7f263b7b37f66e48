package commands

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/gorilla/securecookie"
	"github.com/leapstack-labs/countymap/internal/ui"
	"github.com/spf13/cobra"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	Port  int
	Watch bool
	Dev   bool
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web dashboard",
		Long: `Start a local web server with the county map dashboard.

The page has the metric dropdown, the Count/Change toggle, the quarter and
quarter range selectors and the Generate Plot button. Every open tab sees
the latest map.`,
		Example: `  # Start on the configured port (default 8765)
  countymap serve

  # Start on a custom port without reloading query files
  countymap serve --port 3000 --watch=false`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Port, "port", 0, "Port to serve on (default: ui.port)")
	cmd.Flags().BoolVar(&opts.Watch, "watch", true, "Reload query template files when they change")
	cmd.Flags().BoolVar(&opts.Dev, "dev", false, "Enable the browser hot-reload endpoint")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cc := NewCommandContext(cmd)
	cfg := cc.Cfg

	// CLI flags override config file
	port := cfg.UI.Port
	if opts.Port != 0 {
		port = opts.Port
	}
	watch := cfg.UI.Watch
	if cmd.Flags().Changed("watch") {
		watch = opts.Watch
	}
	dev := cfg.UI.Dev || opts.Dev

	secret := cfg.UI.SessionSecret
	if secret == "" {
		var err error
		if secret, err = randomSecret(); err != nil {
			return err
		}
		cc.Logger.Warn("ui.session_secret not set, browser sessions reset on restart")
	}

	dash, err := cc.OpenDashboard(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = dash.Close() }()

	server := ui.NewServer(ui.Config{
		Dashboard:     dash,
		Port:          port,
		Watch:         watch,
		Templates:     cfg.QuerySource(),
		SessionSecret: secret,
		Title:         cfg.UI.Title,
		Dev:           dev,
		Logger:        cc.Logger,
	})

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Serving %d counties on http://localhost:%d\n", dash.Counties().Len(), port)
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("Press Ctrl+C to stop"))

	return server.Serve(cmd.Context())
}

func randomSecret() (string, error) {
	key := securecookie.GenerateRandomKey(32)
	if key == nil {
		return "", errors.New("failed to generate session secret")
	}
	return hex.EncodeToString(key), nil
}
