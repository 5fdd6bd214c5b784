package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/sitesmith/internal/errors"
	"github.com/conneroisu/sitesmith/internal/services"
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Build for production and upload the result over FTP",
	Long: `Run a clean production build and upload prod/ to the FTP server named in
the credentials file (deploy.credentials, default ftp.json):

  {"address": "ftp.example.com", "username": "site", "password": "..."}

Files go below deploy.remote_dir over deploy.parallel connections. Any file
that fails to upload makes the command fail and is listed.`,
	Args: cobra.NoArgs,
	RunE: runDeploy,
}

func init() {
	rootCmd.AddCommand(deployCmd)
}

func runDeploy(cmd *cobra.Command, _ []string) error {
	container, err := loadContainer(cmd)
	if err != nil {
		return err
	}

	result, err := services.NewDeployService(container).Deploy(cmd.Context())
	out := cmd.OutOrStdout()
	if result != nil && result.Build != nil {
		printBuildSummary(out, result.Build)
	}
	if result != nil && result.Publish != nil {
		printPublishSummary(out, result.Publish)
	}
	if err != nil && errors.IsPublishError(err) {
		return fmt.Errorf("deploy failed: %w", err)
	}
	return err
}
