package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/countymap/internal/cli/config"
	"github.com/leapstack-labs/countymap/internal/dashboard"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg    *config.Config
	Logger *slog.Logger
}

// NewCommandContext reads the config and logger set up by the root command.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	return &CommandContext{
		Cfg:    config.GetConfig(cmd.Context()),
		Logger: config.GetLogger(cmd.Context()),
	}
}

// OpenDashboard validates the config and opens a dashboard: database
// connection, county geometry set and render history.
func (c *CommandContext) OpenDashboard(ctx context.Context) (*dashboard.Dashboard, error) {
	if err := c.Cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}
	setup, err := c.Cfg.Setup()
	if err != nil {
		return nil, err
	}
	d, err := dashboard.Open(ctx, setup, c.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open dashboard: %w", err)
	}
	c.Logger.Info("dashboard ready",
		slog.String("adapter", c.Cfg.Database.Type),
		slog.String("state", c.Cfg.Geometry.State),
		slog.Int("counties", d.Counties().Len()))
	return d, nil
}
