// Package transform holds the file transformations a build stage chains
// together. Every transformation is a black box over a batch of in-memory
// assets: most work file by file, some fan out (webp copies) or fan in
// (script bundles).
package transform

import (
	"context"
	"path"
	"strings"

	"github.com/conneroisu/sitesmith/internal/errors"
)

// Asset is one file flowing through a chain.
type Asset struct {
	// Path is slash separated and relative to the output folder.
	Path string
	// SourcePath is the file on disk the asset was read from, empty for
	// assets produced by a transformation.
	SourcePath string
	Contents   []byte
}

// WithExt returns a copy of the asset whose path carries a new extension.
func (a *Asset) WithExt(ext string) *Asset {
	return &Asset{
		Path:       strings.TrimSuffix(a.Path, path.Ext(a.Path)) + ext,
		SourcePath: a.SourcePath,
		Contents:   a.Contents,
	}
}

// Ext returns the lower-cased extension of the asset path.
func (a *Asset) Ext() string {
	return strings.ToLower(path.Ext(a.Path))
}

// Transformer rewrites a batch of assets.
type Transformer interface {
	Name() string
	Transform(ctx context.Context, assets []*Asset) ([]*Asset, error)
}

// FileFunc transforms a single asset. Returning a nil asset drops it.
type FileFunc func(ctx context.Context, asset *Asset) (*Asset, error)

type perFile struct {
	name string
	fn   FileFunc
}

// PerFile lifts a FileFunc into a Transformer that runs it on every asset in
// order. Failures are reported as transform errors naming the file.
func PerFile(name string, fn FileFunc) Transformer {
	return &perFile{name: name, fn: fn}
}

func (p *perFile) Name() string { return p.name }

func (p *perFile) Transform(ctx context.Context, assets []*Asset) ([]*Asset, error) {
	out := make([]*Asset, 0, len(assets))
	for _, asset := range assets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, err := p.fn(ctx, asset)
		if err != nil {
			return nil, fileError(p.name, asset, err)
		}
		if result != nil {
			out = append(out, result)
		}
	}
	return out, nil
}

func fileError(name string, asset *Asset, err error) error {
	if errors.IsTransformError(err) {
		return err
	}
	file := asset.SourcePath
	if file == "" {
		file = asset.Path
	}
	return errors.NewTransformError("", name, file, err)
}

// Chain is an ordered list of transformers. The empty chain copies its
// input unchanged.
type Chain []Transformer

// Apply runs each transformer on the output of the previous one.
func (c Chain) Apply(ctx context.Context, assets []*Asset) ([]*Asset, error) {
	current := assets
	for _, t := range c {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, err := t.Transform(ctx, current)
		if err != nil {
			if errors.IsTransformError(err) {
				return nil, err
			}
			return nil, errors.NewTransformError("", t.Name(), "", err)
		}
		current = next
	}
	return current, nil
}

// Names lists the transformer names, for logging.
func (c Chain) Names() []string {
	names := make([]string, len(c))
	for i, t := range c {
		names[i] = t.Name()
	}
	return names
}
