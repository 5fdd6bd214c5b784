package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/sitesmith/internal/config"
	"github.com/conneroisu/sitesmith/internal/services"
)

var devCmd = &cobra.Command{
	Use:     "dev",
	Aliases: []string{"d"},
	Short:   "Build in dev mode, preview with live reload and watch for changes",
	Long: `Clean and build the dev folder, serve it with a live-reload preview
server and re-run the matching stage whenever a source file changes.
Stops on Ctrl+C.

Examples:
  sitesmith dev                 # Preview on the configured port
  sitesmith dev --port 8080     # Preview on port 8080
  sitesmith dev --no-open       # Do not open a browser`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd, true)
	},
}

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s", "watch"},
	Short:   "Build in dev mode and watch for changes without a preview server",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd, false)
	},
}

var (
	servePort   int
	serveHost   string
	serveNoOpen bool
)

func init() {
	rootCmd.AddCommand(devCmd)
	rootCmd.AddCommand(serveCmd)

	devCmd.Flags().IntVarP(&servePort, "port", "p", 3000, "Port to serve on")
	devCmd.Flags().StringVar(&serveHost, "host", "localhost", "Host to bind to")
	devCmd.Flags().BoolVar(&serveNoOpen, "no-open", false, "Don't open the browser")
}

func runServe(cmd *cobra.Command, preview bool) error {
	container, err := loadContainer(cmd)
	if err != nil {
		return err
	}
	applyServerFlags(cmd, container.Config())

	out := cmd.OutOrStdout()
	return services.NewServeService(container).Serve(cmd.Context(), services.ServeOptions{
		Preview: preview,
		Ready: func(url string) {
			if url != "" {
				fmt.Fprintf(out, "Preview at %s\n", url)
			}
			fmt.Fprintln(out, "Watching for changes, press Ctrl+C to stop")
		},
	})
}

// applyServerFlags lets explicit flags win over the configuration.
func applyServerFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Server.Port = servePort
	}
	if flags.Changed("host") {
		cfg.Server.Host = serveHost
	}
	if flags.Changed("no-open") && serveNoOpen {
		cfg.Server.Open = false
	}
}
