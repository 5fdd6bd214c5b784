package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/sitesmith/internal/services"
)

var initCmd = &cobra.Command{
	Use:     "init [directory]",
	Aliases: []string{"i"},
	Short:   "Scaffold the source folders and a default configuration",
	Long: `Create app/ with its scss, css, js, img, fonts, video, templates and
components folders, a default .sitesmith.yml and an ftp.example.json. Unless
--minimal is given a starter page, stylesheet and script are added.
Existing files are kept unless --force is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

var (
	initMinimal bool
	initForce   bool
)

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().BoolVar(&initMinimal, "minimal", false, "Only create folders and configuration")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing files")
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	result, err := services.NewInitService().InitProject(services.InitOptions{
		ProjectDir: dir,
		Minimal:    initMinimal,
		Force:      initForce,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, f := range result.Created {
		fmt.Fprintf(out, "created %s\n", f)
	}
	for _, f := range result.Skipped {
		fmt.Fprintf(out, "kept    %s\n", f)
	}
	fmt.Fprintln(out, "Run 'sitesmith dev' to start working")
	return nil
}
