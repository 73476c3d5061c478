package cmd

import (
	"github.com/spf13/cobra"

	"github.com/AnyUserName/boundimg/internal/server"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP decode service",
	Long: `Serves POST /v1/decode and POST /v1/probe. The request body is the
encoded image; ?limit= or ?profile= sets the footprint ceiling.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen host (default from config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveHost != "" {
		cfg.Server.Host = serveHost
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}

	srv := server.New(cfg, newDecoder(cfg), nil)
	return srv.Start(cmd.Context())
}
