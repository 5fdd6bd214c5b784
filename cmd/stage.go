package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/sitesmith/internal/build"
	"github.com/conneroisu/sitesmith/internal/services"
)

var stageCommands = []struct {
	use     string
	aliases []string
	class   build.Class
	short   string
}{
	{use: "html", class: build.ClassMarkup, short: "Resolve includes in the HTML pages"},
	{use: "css", aliases: []string{"sass"}, class: build.ClassStyles, short: "Compile the Sass stylesheets"},
	{use: "js", class: build.ClassScripts, short: "Build the scripts"},
	{use: "img", class: build.ClassImages, short: "Optimize images and convert them to WebP"},
	{use: "teleport", class: build.ClassVerbatim, short: "Copy fonts, video and components unchanged"},
}

var clearMode = build.ModeDev

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the generated files of a mode",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		container, err := loadContainer(cmd)
		if err != nil {
			return err
		}
		if err := services.NewBuildService(container).Clean(cmd.Context(), clearMode); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s output\n", clearMode)
		return nil
	},
}

func init() {
	for _, sc := range stageCommands {
		rootCmd.AddCommand(newStageCommand(sc.use, sc.aliases, sc.class, sc.short))
	}

	clearCmd.Flags().Var(&clearMode, "mode", "build mode (dev, prod)")
	rootCmd.AddCommand(clearCmd)
}

// newStageCommand runs the stage of one asset class without cleaning first.
func newStageCommand(use string, aliases []string, class build.Class, short string) *cobra.Command {
	mode := build.ModeDev

	cmd := &cobra.Command{
		Use:     use,
		Aliases: aliases,
		Short:   short,
		Long:    short + ".\n\nOnly the " + string(class) + " stage runs and the output folder is not cleaned first.",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			container, err := loadContainer(cmd)
			if err != nil {
				return err
			}
			if err := services.NewBuildService(container).RunStage(cmd.Context(), mode, class); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s stage finished (%s)\n", title.String(string(class)), mode)
			return nil
		},
	}
	cmd.Flags().Var(&mode, "mode", "build mode (dev, prod)")
	return cmd
}
