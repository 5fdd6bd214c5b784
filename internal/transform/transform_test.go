package transform

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sitesmith/internal/errors"
)

func apply(t *testing.T, tr Transformer, assets ...*Asset) []*Asset {
	t.Helper()
	out, err := tr.Transform(context.Background(), assets)
	require.NoError(t, err)
	return out
}

func TestAssetWithExt(t *testing.T) {
	a := &Asset{Path: "img/photo.JPG", SourcePath: "app/img/photo.JPG", Contents: []byte("x")}
	b := a.WithExt(".webp")

	assert.Equal(t, "img/photo.webp", b.Path)
	assert.Equal(t, ".jpg", a.Ext())
	assert.Equal(t, a.SourcePath, b.SourcePath)
}

func TestChainApply(t *testing.T) {
	upper := PerFile("upper", func(_ context.Context, a *Asset) (*Asset, error) {
		return &Asset{Path: a.Path, Contents: []byte(strings.ToUpper(string(a.Contents)))}, nil
	})
	drop := PerFile("drop-empty", func(_ context.Context, a *Asset) (*Asset, error) {
		if len(a.Contents) == 0 {
			return nil, nil
		}
		return a, nil
	})

	out, err := Chain{drop, upper}.Apply(context.Background(), []*Asset{
		{Path: "a.txt", Contents: []byte("hello")},
		{Path: "b.txt"},
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "HELLO", string(out[0].Contents))

	assert.Equal(t, []string{"drop-empty", "upper"}, Chain{drop, upper}.Names())
}

func TestEmptyChainCopies(t *testing.T) {
	in := []*Asset{{Path: "font.woff2", Contents: []byte{1, 2, 3}}}
	out, err := Chain(nil).Apply(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestChainFailureIsTransformError(t *testing.T) {
	failing := PerFile("explode", func(_ context.Context, a *Asset) (*Asset, error) {
		return nil, fmt.Errorf("bad input")
	})

	_, err := Chain{failing}.Apply(context.Background(), []*Asset{{Path: "a.js", SourcePath: "app/js/a.js"}})
	require.Error(t, err)
	assert.True(t, errors.IsTransformError(err))
	assert.Contains(t, err.Error(), "transform:explode")
	assert.Contains(t, err.Error(), "app/js/a.js")
}

func TestChainStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Chain{MinifyCSS()}.Apply(ctx, []*Asset{{Path: "a.css", Contents: []byte("a{}")}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConcat(t *testing.T) {
	out := apply(t, Concat("bundle.min.js"),
		&Asset{Path: "b.js", Contents: []byte("var b=2;\n")},
		&Asset{Path: "a.js", Contents: []byte("var a=1;")},
	)

	require.Len(t, out, 1)
	assert.Equal(t, "bundle.min.js", out[0].Path)
	assert.Equal(t, "var a=1;\nvar b=2;\n", string(out[0].Contents))

	empty, err := Concat("bundle.min.js").Transform(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestParseTarget(t *testing.T) {
	target, err := ParseTarget("ES2015")
	require.NoError(t, err)
	assert.Equal(t, api.ES2015, target)

	_, err = ParseTarget("es1999")
	assert.Error(t, err)
}

func TestParseBrowsers(t *testing.T) {
	engines, err := ParseBrowsers([]string{"chrome58", "safari11.1"})
	require.NoError(t, err)
	assert.Equal(t, []api.Engine{
		{Name: api.EngineChrome, Version: "58"},
		{Name: api.EngineSafari, Version: "11.1"},
	}, engines)

	_, err = ParseBrowsers([]string{"netscape4"})
	assert.Error(t, err)

	_, err = ParseBrowsers([]string{"chrome"})
	assert.Error(t, err)
}

func TestScriptTransforms(t *testing.T) {
	src := &Asset{Path: "app.js", Contents: []byte(`
function greet(personName) {
  const fallbackName = personName ?? "world";
  return "hello " + fallbackName;
}
console.log(greet());
`)}

	t.Run("transpile lowers newer syntax", func(t *testing.T) {
		out := apply(t, Transpile(api.ES2015), src)
		assert.NotContains(t, string(out[0].Contents), "??")
	})

	t.Run("minify removes whitespace", func(t *testing.T) {
		out := apply(t, MinifyScript(api.ESNext), src)
		assert.Less(t, len(out[0].Contents), len(src.Contents))
		assert.NotContains(t, string(out[0].Contents), "\n  ")
	})

	t.Run("obfuscate mangles locals", func(t *testing.T) {
		out := apply(t, Obfuscate(api.ESNext, true), src)
		assert.NotContains(t, string(out[0].Contents), "fallbackName")
	})

	t.Run("minify and obfuscate keep the target level", func(t *testing.T) {
		chain := Chain{Transpile(api.ES2015), MinifyScript(api.ES2015), Obfuscate(api.ES2015, true)}
		out, err := chain.Apply(context.Background(), []*Asset{src})
		require.NoError(t, err)
		code := string(out[0].Contents)
		assert.NotContains(t, code, "??")
		assert.NotContains(t, code, "fallbackName")
	})

	t.Run("syntax errors are reported", func(t *testing.T) {
		_, err := MinifyScript(api.ES2015).Transform(context.Background(), []*Asset{{Path: "broken.js", Contents: []byte("function (")}})
		require.Error(t, err)
		assert.True(t, errors.IsTransformError(err))
		assert.Contains(t, err.Error(), "broken.js")
	})
}

func TestPrefixCSS(t *testing.T) {
	engines, err := ParseBrowsers([]string{"chrome58", "safari11"})
	require.NoError(t, err)

	out := apply(t, PrefixCSS(engines), &Asset{Path: "main.css", Contents: []byte(".panel { backdrop-filter: blur(4px); }\n")})
	assert.Contains(t, string(out[0].Contents), "-webkit-backdrop-filter")
}

func TestMinifyCSS(t *testing.T) {
	out := apply(t, MinifyCSS(), &Asset{Path: "main.css", Contents: []byte("a {\n  color : red ;\n}\n")})
	assert.Equal(t, "a{color:red}", string(out[0].Contents))
}

func TestIsPartial(t *testing.T) {
	assert.True(t, IsPartial("_vars.scss"))
	assert.True(t, IsPartial("nested/_mixins.scss"))
	assert.False(t, IsPartial("main.scss"))
}

func TestSassSkipsPartials(t *testing.T) {
	sass := &Sass{Binary: "definitely-not-installed-sass"}
	out, err := sass.Transformer().Transform(context.Background(), []*Asset{{Path: "_vars.scss", Contents: []byte("$c: red;")}})
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = sass.Transformer().Transform(context.Background(), []*Asset{{Path: "main.scss", Contents: []byte("a{}")}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
