package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/countymap/internal/cli/config"
	"github.com/spf13/cobra"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Create a starter configuration",
		Long: `Create a countymap.yaml with the default connection, boundary table and
calendar, plus example count and change query templates under queries/.`,
		Example: `  # Initialize in current directory
  countymap init

  # Initialize in a new directory
  countymap init illinois

  # Force overwrite existing files
  countymap init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runInit(cmd.OutOrStdout(), dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")
	return cmd
}

func runInit(w io.Writer, dir string, force bool) error {
	configPath := filepath.Join(dir, config.FileNames[0])
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists. Use --force to overwrite", configPath)
	}

	body, err := config.MarshalYAML(config.Starter())
	if err != nil {
		return err
	}

	files := []struct {
		path string
		body []byte
	}{
		{configPath, body},
		{filepath.Join(dir, "queries", "count.sql"), []byte(config.StarterCountQuery)},
		{filepath.Join(dir, "queries", "change.sql"), []byte(config.StarterChangeQuery)},
	}

	for _, f := range files {
		if _, err := os.Stat(f.path); err == nil && !force {
			_, _ = fmt.Fprintf(w, "%s %s\n", mutedStyle.Render("-"), mutedStyle.Render(f.path+" (exists)"))
			continue
		}
		if err := os.MkdirAll(filepath.Dir(f.path), 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", filepath.Dir(f.path), err)
		}
		if err := os.WriteFile(f.path, f.body, 0o600); err != nil {
			return fmt.Errorf("failed to write %s: %w", f.path, err)
		}
		_, _ = fmt.Fprintf(w, "%s %s\n", successStyle.Render("✓"), f.path)
	}

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, boldStyle.Render("Next steps:"))
	_, _ = fmt.Fprintln(w, "  1. Point database and geometry at your PostGIS tables")
	_, _ = fmt.Fprintln(w, "  2. Edit the metrics list and the queries/ templates")
	_, _ = fmt.Fprintln(w, "  3. Run 'countymap serve' and open the dashboard")
	return nil
}
