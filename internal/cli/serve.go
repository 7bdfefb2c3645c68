package cli

import (
	"github.com/spf13/cobra"
	"github.com/whenitworks/backend/internal/server"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 0, "Override the configured port")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web service",
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")
		return runServe(cmd, port)
	},
}

func runServe(cmd *cobra.Command, port int) error {
	cfg, path, err := loadConfig()
	if err != nil {
		return err
	}
	if port > 0 {
		cfg.Server.Port = port
	}

	srv, err := server.New(cfg)
	if err != nil {
		return err
	}

	server.PrintBanner(cfg, path)
	return srv.Run(commandContext(cmd))
}
