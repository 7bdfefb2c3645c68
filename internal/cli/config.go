package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/whenitworks/backend/internal/config"
	"github.com/whenitworks/backend/internal/intake"
)

func init() {
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long:  `Loads the config file (creating it on first run), applies .env and environment overrides and prints the result.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Config file: %s\n", path)
		renderConfig(cmd.OutOrStdout(), cfg)
		return nil
	},
}

// renderConfig writes the settings as a table.
func renderConfig(w io.Writer, cfg *config.AppConfig) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Section", "Setting", "Value"})
	table.SetAutoWrapText(false)

	rows := [][]string{
		{"app", "name", cfg.App.Name},
		{"app", "version", cfg.App.Version},
		{"server", "listen", cfg.GetServerAddr()},
		{"server", "body_limit", cfg.Server.BodyLimit},
		{"server", "allow_origins", strings.Join(cfg.Server.AllowOrigins, ", ")},
		{"upload", "accepted_file_types", strings.Join(cfg.Upload.AcceptedFileTypes, ", ")},
		{"upload", "max_file_size", fmt.Sprintf("%d (%s)", cfg.Upload.MaxFileSize, intake.FormatFileSize(cfg.Upload.MaxFileSize))},
		{"session", "timeout_minutes", strconv.Itoa(cfg.Session.TimeoutMinutes)},
		{"session", "max_sessions", strconv.Itoa(cfg.Session.MaxSessions)},
		{"session", "cookie_name", cfg.Session.CookieName},
		{"advanced", "log_level", cfg.Advanced.LogLevel},
		{"advanced", "enable_metrics", strconv.FormatBool(cfg.Advanced.EnableMetrics)},
	}
	table.AppendBulk(rows)
	table.Render()
}
