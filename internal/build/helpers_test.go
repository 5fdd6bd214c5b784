package build

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sitesmith/internal/config"
	"github.com/conneroisu/sitesmith/internal/paths"
	"github.com/conneroisu/sitesmith/internal/testutils"
	"github.com/conneroisu/sitesmith/internal/transform"
)

var sassImport = []byte(`@import "vars";`)

// fakeSass inlines _vars.scss in place of its import and renames the output,
// standing in for the sass binary.
func fakeSass() transform.Transformer {
	return transform.PerFile("sass", func(_ context.Context, a *transform.Asset) (*transform.Asset, error) {
		if transform.IsPartial(a.Path) {
			return nil, nil
		}
		contents := a.Contents
		if bytes.Contains(contents, sassImport) {
			partial, err := os.ReadFile(filepath.Join(filepath.Dir(a.SourcePath), "_vars.scss"))
			if err != nil {
				return nil, err
			}
			contents = bytes.ReplaceAll(contents, sassImport, partial)
		}
		out := a.WithExt(".css")
		out.Contents = contents
		return out, nil
	})
}

// fakeOptimize shrinks raster images by one byte.
func fakeOptimize() transform.Transformer {
	return transform.PerFile("optimize", transform.NoInflate(func(_ context.Context, a *transform.Asset) (*transform.Asset, error) {
		switch a.Ext() {
		case ".jpg", ".jpeg", ".png", ".webp":
			if len(a.Contents) > 1 {
				return &transform.Asset{Path: a.Path, SourcePath: a.SourcePath, Contents: a.Contents[:len(a.Contents)-1]}, nil
			}
		}
		return a, nil
	}))
}

func fakeWebP() transform.Transformer {
	return transform.PerFile("webp", func(_ context.Context, a *transform.Asset) (*transform.Asset, error) {
		out := a.WithExt(".webp")
		out.Contents = append([]byte("RIFF"), a.Contents...)
		return out, nil
	})
}

func failing(name string) transform.Transformer {
	return transform.PerFile(name, func(_ context.Context, a *transform.Asset) (*transform.Asset, error) {
		return nil, fmt.Errorf("%s refused %s", name, a.Path)
	})
}

// testToolbox uses the in-process transforms and fakes for the external
// tools.
func testToolbox(t testing.TB, plan paths.Plan) *Toolbox {
	t.Helper()
	target, err := transform.ParseTarget("es2015")
	require.NoError(t, err)
	browsers, err := transform.ParseBrowsers([]string{"chrome58", "safari11"})
	require.NoError(t, err)

	return &Toolbox{
		Include:   transform.NewIncluder(plan.Source().Templates).Transformer(),
		Sass:      fakeSass(),
		Prefix:    transform.PrefixCSS(browsers),
		MinifyCSS: transform.MinifyCSS(),
		Transpile: transform.Transpile(target),
		MinifyJS:  transform.MinifyScript(target),
		Obfuscate: transform.Obfuscate(target, true),
		Optimize:  fakeOptimize(),
		WebP:      fakeWebP(),
	}
}

type fixture struct {
	dir      string
	plan     paths.Plan
	tools    *Toolbox
	pipeline *Pipeline
}

func newFixture(t testing.TB, opts Options) *fixture {
	t.Helper()
	dir := testutils.CreateTempProject(t)
	plan := testutils.CreateTestPlan(t, dir)
	tools := testToolbox(t, plan)
	if opts.ScriptsPolicy == "" {
		opts.ScriptsPolicy = config.ScriptsPerFile
	}
	if opts.BundleName == "" {
		opts.BundleName = "bundle.min.js"
	}

	return &fixture{
		dir:      dir,
		plan:     plan,
		tools:    tools,
		pipeline: NewPipeline(plan, NewSpecTable(tools, opts)),
	}
}

func (f *fixture) write(t testing.TB, rel, content string) {
	t.Helper()
	testutils.WriteFile(t, f.dir, rel, content)
}

func (f *fixture) read(t testing.TB, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.dir, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func (f *fixture) files(t testing.TB, root string) []string {
	t.Helper()
	return testutils.ListFiles(t, filepath.Join(f.dir, root))
}

// seed writes one source file of every asset class.
func (f *fixture) seed(t testing.TB) {
	t.Helper()
	f.write(t, "app/templates/header.html", `<header>@@title</header>`)
	f.write(t, "app/index.html", `<html>@@include('header.html', {"title": "Home"})</html>`)
	f.write(t, "app/scss/_vars.scss", ".brand { color: red; }\n")
	f.write(t, "app/scss/main.scss", "@import \"vars\";\n.panel {\n  backdrop-filter: blur(4px);\n}\n")
	f.write(t, "app/js/app.js", "function greet(personName) {\n  const fallbackName = personName ?? 'world';\n  return 'hi ' + fallbackName;\n}\ngreet();\n")
	f.write(t, "app/img/photo.jpg", "jpeg-bytes")
	f.write(t, "app/img/icon.ico", "ico")
	f.write(t, "app/fonts/sub/font.woff2", "font")
	f.write(t, "app/video/clip.mp4", "video")
	f.write(t, "app/components/card/card.html", "<div></div>")
}
