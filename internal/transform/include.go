package transform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
)

const maxIncludeDepth = 32

var (
	includeDirective = regexp.MustCompile(`@@(include_once|include|markdown)\(\s*['"]([^'"]+)['"]\s*(?:,\s*(\{[\s\S]*?\}))?\s*\)`)
	variableRef      = regexp.MustCompile(`@@([A-Za-z_][\w.]*)`)
)

// Includer resolves @@include('file'[, {json}]), @@include_once('file') and
// @@markdown('file.md') directives. Included files are looked up next to the
// including file first and then in the template folder. Variables from the
// JSON context replace @@name references inside the included text.
type Includer struct {
	TemplateDir string
	markdown    goldmark.Markdown
}

// NewIncluder creates an Includer resolving against templateDir.
func NewIncluder(templateDir string) *Includer {
	return &Includer{
		TemplateDir: templateDir,
		markdown:    goldmark.New(),
	}
}

// Transformer returns the per-file include transformer.
func (inc *Includer) Transformer() Transformer {
	return PerFile("include", inc.resolveAsset)
}

func (inc *Includer) resolveAsset(_ context.Context, asset *Asset) (*Asset, error) {
	dir := "."
	if asset.SourcePath != "" {
		dir = filepath.Dir(asset.SourcePath)
	}

	out, err := inc.Expand(asset.Contents, dir)
	if err != nil {
		return nil, err
	}

	return &Asset{Path: asset.Path, SourcePath: asset.SourcePath, Contents: out}, nil
}

type includeState struct {
	once map[string]bool
}

// Expand resolves every directive in content as if it lived in dir. Each
// call starts a fresh include_once set.
func (inc *Includer) Expand(content []byte, dir string) ([]byte, error) {
	return inc.expand(content, dir, nil, &includeState{once: make(map[string]bool)}, 0)
}

func (inc *Includer) expand(content []byte, dir string, vars map[string]string, state *includeState, depth int) ([]byte, error) {
	if depth > maxIncludeDepth {
		return nil, fmt.Errorf("include depth exceeded %d, check for a cycle", maxIncludeDepth)
	}

	if len(vars) > 0 {
		content = substitute(content, vars)
	}

	matches := includeDirective.FindAllSubmatchIndex(content, -1)
	if len(matches) == 0 {
		return content, nil
	}

	var buf bytes.Buffer
	last := 0
	for _, m := range matches {
		buf.Write(content[last:m[0]])
		last = m[1]

		kind := string(content[m[2]:m[3]])
		target := string(content[m[4]:m[5]])

		file, err := inc.locate(target, dir)
		if err != nil {
			return nil, err
		}

		if kind == "include_once" {
			if state.once[file] {
				continue
			}
			state.once[file] = true
		}

		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read include %s: %w", target, err)
		}

		if kind == "markdown" {
			var html bytes.Buffer
			if err := inc.markdown.Convert(data, &html); err != nil {
				return nil, fmt.Errorf("render markdown %s: %w", target, err)
			}
			buf.Write(html.Bytes())
			continue
		}

		childVars := vars
		if m[6] >= 0 {
			parsed, err := parseIncludeContext(content[m[6]:m[7]])
			if err != nil {
				return nil, fmt.Errorf("include %s: %w", target, err)
			}
			childVars = mergeVars(vars, parsed)
		}

		expanded, err := inc.expand(data, filepath.Dir(file), childVars, state, depth+1)
		if err != nil {
			return nil, err
		}
		buf.Write(expanded)
	}
	buf.Write(content[last:])

	return buf.Bytes(), nil
}

func (inc *Includer) locate(target, dir string) (string, error) {
	candidates := []string{filepath.Join(dir, filepath.FromSlash(target))}
	if inc.TemplateDir != "" {
		candidates = append(candidates, filepath.Join(inc.TemplateDir, filepath.FromSlash(target)))
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("include %q not found (looked in %s)", target, strings.Join(candidates, ", "))
}

// substitute replaces @@name references by their values. A dotted reference
// without a value falls back to its longest known prefix, so "@@name." at the
// end of a sentence keeps the period.
func substitute(content []byte, vars map[string]string) []byte {
	return variableRef.ReplaceAllFunc(content, func(ref []byte) []byte {
		name := string(ref[2:])
		for {
			if value, ok := vars[name]; ok {
				out := make([]byte, 0, len(value)+len(ref)-2-len(name))
				out = append(out, value...)
				return append(out, ref[2+len(name):]...)
			}
			i := strings.LastIndexByte(name, '.')
			if i < 0 {
				return ref
			}
			name = name[:i]
		}
	})
}

func parseIncludeContext(raw []byte) (map[string]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var ctx map[string]interface{}
	if err := dec.Decode(&ctx); err != nil {
		return nil, fmt.Errorf("invalid include context: %w", err)
	}

	vars := make(map[string]string)
	flatten("", ctx, vars)
	return vars, nil
}

func flatten(prefix string, value interface{}, out map[string]string) {
	switch v := value.(type) {
	case map[string]interface{}:
		for key, child := range v {
			name := key
			if prefix != "" {
				name = prefix + "." + key
			}
			flatten(name, child, out)
		}
	case nil:
		out[prefix] = ""
	default:
		out[prefix] = fmt.Sprint(v)
	}
}

func mergeVars(parent, child map[string]string) map[string]string {
	merged := make(map[string]string, len(parent)+len(child))
	for k, v := range parent {
		merged[k] = v
	}
	for k, v := range child {
		merged[k] = v
	}
	return merged
}
