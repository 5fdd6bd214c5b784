package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/conneroisu/sitesmith/internal/build"
	"github.com/conneroisu/sitesmith/internal/deploy"
)

var title = cases.Title(language.English)

func printBuildSummary(w io.Writer, result *build.BuildResult) {
	id := result.ID
	if len(id) > 8 {
		id = id[:8]
	}
	fmt.Fprintf(w, "%s build %s finished in %s\n", title.String(result.Mode.String()), id, result.Duration.Round(time.Millisecond))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, stage := range result.Stages {
		status := "ok"
		if stage.Err != nil {
			status = "failed"
		}
		fmt.Fprintf(tw, "  %s\t%d files\t%s\t%s\n",
			title.String(string(stage.Class)), stage.Files, stage.Duration.Round(time.Millisecond), status)
	}
	_ = tw.Flush()
}

func printPublishSummary(w io.Writer, result *deploy.Result) {
	fmt.Fprintf(w, "Published %d files in %s\n", len(result.Uploaded), result.Duration.Round(time.Millisecond))
	if len(result.Failed) == 0 {
		return
	}
	fmt.Fprintf(w, "%d files failed:\n", len(result.Failed))
	for _, f := range result.Failed {
		fmt.Fprintf(w, "  %s\n", f)
	}
}
