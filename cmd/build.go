package cmd

import (
	"github.com/spf13/cobra"

	"github.com/conneroisu/sitesmith/internal/build"
	"github.com/conneroisu/sitesmith/internal/services"
)

var buildCmd = &cobra.Command{
	Use:     "build",
	Aliases: []string{"b"},
	Short:   "Clean the output folder and build every asset class",
	Long: `Clean the output folder of the selected mode and run every stage
concurrently. Production output goes to prod/, dev output (--dev) to dist/.
Every failing stage is reported and the command exits non-zero.

Examples:
  sitesmith build          # Production build
  sitesmith build --dev    # Development build`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

var buildDev bool

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().BoolVar(&buildDev, "dev", false, "Build in dev mode into the dev folder")
}

func runBuild(cmd *cobra.Command, _ []string) error {
	container, err := loadContainer(cmd)
	if err != nil {
		return err
	}

	mode := build.ModeProd
	if buildDev {
		mode = build.ModeDev
	}

	result, err := services.NewBuildService(container).Build(cmd.Context(), mode)
	if result != nil {
		printBuildSummary(cmd.OutOrStdout(), result)
	}
	return err
}
