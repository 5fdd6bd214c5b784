// Package cmd provides the sitesmith command-line interface.
//
// Configuration is read from .sitesmith.yml in the working directory, or the
// file given with --config or SITESMITH_CONFIG_FILE. Every key can be
// overridden with a SITESMITH_<SECTION>_<KEY> environment variable, and a
// .env file in the working directory is loaded before anything else.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/sitesmith/internal/config"
	"github.com/conneroisu/sitesmith/internal/logging"
	"github.com/conneroisu/sitesmith/internal/services"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sitesmith",
	Short: "Build, preview and publish static sites",
	Long: `sitesmith compiles templated HTML, Sass and JavaScript, optimizes images
and copies fonts, video and components from app/ into dist/ (dev) or prod/
(production). It can watch sources with live reload and publish prod/ over FTP.

Quick Start:
  sitesmith init          Scaffold app/ and .sitesmith.yml
  sitesmith dev           Build, preview with live reload and watch
  sitesmith build         Production build into prod/
  sitesmith deploy        Production build, then upload over FTP`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	ctx, stop := services.SignalContext(context.Background())
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .sitesmith.yml, can also use "+config.FileEnv+")")
	rootCmd.PersistentFlags().StringP("log-level", "l", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text, json)")
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// loadContainer reads the configuration and creates the services of one
// command run.
func loadContainer(cmd *cobra.Command) (*services.ServiceContainer, error) {
	used, err := config.Setup(cfgFile)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return nil, err
	}
	if used != "" {
		logger.Debug(cmd.Context(), "Using config file", "path", used)
	}

	return services.NewServiceContainer(cfg, logger), nil
}

func newLogger(cmd *cobra.Command, cfg *config.Config) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	}), nil
}
