package server

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/a-h/templ"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// StatusData is rendered by the status page.
type StatusData struct {
	Version      string
	Root         string
	Clients      int
	TotalBuilds  int64
	FailedBuilds int64
	StageRuns    int64
	FilesWritten int64
	LastBuildID  string
	LastMode     string
	LastBuildAt  time.Time
	LastError    string
	LastEvent    string
}

var title = cases.Title(language.English)

// StatusPage renders the preview server status.
func StatusPage(data StatusData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		state := "Healthy"
		if data.LastError != "" {
			state = "Failing"
		}

		rows := [][2]string{
			{"version", data.Version},
			{"serving", data.Root},
			{"live reload clients", fmt.Sprint(data.Clients)},
			{"builds", fmt.Sprintf("%d (%d failed)", data.TotalBuilds, data.FailedBuilds)},
			{"stage runs", fmt.Sprint(data.StageRuns)},
			{"files written", fmt.Sprint(data.FilesWritten)},
			{"last build", lastBuild(data)},
			{"last event", data.LastEvent},
		}

		if _, err := io.WriteString(w, `<!DOCTYPE html><html><head><meta charset="utf-8"><title>sitesmith status</title>`+
			`<style>body{font:15px/1.5 system-ui,sans-serif;margin:2em auto;max-width:48em;color:#222}`+
			`th{text-align:left;padding-right:2em;color:#555;font-weight:500}pre{background:#fee;padding:1em;white-space:pre-wrap}</style>`+
			`</head><body>`); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, `<h1>%s</h1><table>`, templ.EscapeString(state)); err != nil {
			return err
		}
		for _, row := range rows {
			if _, err := fmt.Fprintf(w, `<tr><th>%s</th><td>%s</td></tr>`,
				templ.EscapeString(title.String(row[0])), templ.EscapeString(row[1])); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, `</table>`); err != nil {
			return err
		}
		if data.LastError != "" {
			if _, err := fmt.Fprintf(w, `<h2>Last Error</h2><pre>%s</pre>`, templ.EscapeString(data.LastError)); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `<p><a href="/__sitesmith/metrics">metrics</a></p></body></html>`)
		return err
	})
}

func lastBuild(data StatusData) string {
	if data.LastBuildID == "" {
		return "none"
	}
	return fmt.Sprintf("%s %s at %s", title.String(data.LastMode), data.LastBuildID, data.LastBuildAt.Format(time.TimeOnly))
}
