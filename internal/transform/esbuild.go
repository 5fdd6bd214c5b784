package transform

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

var targets = map[string]api.Target{
	"es5":    api.ES5,
	"es2015": api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
	"esnext": api.ESNext,
}

var engines = map[string]api.EngineName{
	"chrome":  api.EngineChrome,
	"edge":    api.EngineEdge,
	"firefox": api.EngineFirefox,
	"ie":      api.EngineIE,
	"ios":     api.EngineIOS,
	"opera":   api.EngineOpera,
	"safari":  api.EngineSafari,
}

var browserPattern = regexp.MustCompile(`^([a-z]+)(\d+(?:\.\d+)*)$`)

// ParseTarget maps a language level such as "es2015" to an esbuild target.
func ParseTarget(s string) (api.Target, error) {
	t, ok := targets[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return api.DefaultTarget, fmt.Errorf("unknown script target %q", s)
	}
	return t, nil
}

// ParseBrowsers maps entries such as "chrome58" or "safari11.1" to esbuild
// engines.
func ParseBrowsers(browsers []string) ([]api.Engine, error) {
	out := make([]api.Engine, 0, len(browsers))
	for _, b := range browsers {
		m := browserPattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(b)))
		if m == nil {
			return nil, fmt.Errorf("invalid browser %q, expected name followed by version (chrome58)", b)
		}
		name, ok := engines[m[1]]
		if !ok {
			return nil, fmt.Errorf("unsupported browser %q", m[1])
		}
		out = append(out, api.Engine{Name: name, Version: m[2]})
	}
	return out, nil
}

// Transpile lowers modern JavaScript syntax to the target level.
func Transpile(target api.Target) Transformer {
	return esbuildTransform("transpile", api.TransformOptions{
		Loader: api.LoaderJS,
		Target: target,
	})
}

// MinifyScript strips whitespace and simplifies syntax without raising the
// language level above target.
func MinifyScript(target api.Target) Transformer {
	return esbuildTransform("minify", api.TransformOptions{
		Loader:           api.LoaderJS,
		Target:           target,
		MinifyWhitespace: true,
		MinifySyntax:     true,
		LegalComments:    api.LegalCommentsNone,
	})
}

// Obfuscate mangles local identifiers and forces ASCII output. Class and
// function names survive when keepNames is set. Output stays at target.
func Obfuscate(target api.Target, keepNames bool) Transformer {
	return esbuildTransform("obfuscate", api.TransformOptions{
		Loader:            api.LoaderJS,
		Target:            target,
		MinifyWhitespace:  true,
		MinifyIdentifiers: true,
		KeepNames:         keepNames,
		Charset:           api.CharsetASCII,
		LegalComments:     api.LegalCommentsNone,
	})
}

// PrefixCSS adds the vendor prefixes the given browsers need.
func PrefixCSS(browsers []api.Engine) Transformer {
	return esbuildTransform("prefix", api.TransformOptions{
		Loader:  api.LoaderCSS,
		Engines: browsers,
	})
}

func esbuildTransform(name string, opts api.TransformOptions) Transformer {
	return PerFile(name, func(_ context.Context, asset *Asset) (*Asset, error) {
		o := opts
		o.Sourcefile = asset.Path

		result := api.Transform(string(asset.Contents), o)
		if len(result.Errors) > 0 {
			return nil, esbuildError(result.Errors)
		}

		return &Asset{Path: asset.Path, SourcePath: asset.SourcePath, Contents: result.Code}, nil
	})
}

func esbuildError(messages []api.Message) error {
	parts := make([]string, 0, len(messages))
	for _, msg := range messages {
		if msg.Location != nil {
			parts = append(parts, fmt.Sprintf("%s:%d:%d: %s", msg.Location.File, msg.Location.Line, msg.Location.Column, msg.Text))
			continue
		}
		parts = append(parts, msg.Text)
	}
	return fmt.Errorf("%s", strings.Join(parts, "; "))
}
