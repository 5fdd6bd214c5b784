package transform

import (
	"context"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/svg"
)

const (
	mediaCSS = "text/css"
	mediaSVG = "image/svg+xml"
)

func newMinifier() *minify.M {
	m := minify.New()
	m.AddFunc(mediaCSS, css.Minify)
	m.Add(mediaSVG, &svg.Minifier{KeepComments: false})
	return m
}

var minifier = newMinifier()

// MinifyCSS minifies stylesheets.
func MinifyCSS() Transformer {
	return PerFile("minify-css", func(_ context.Context, asset *Asset) (*Asset, error) {
		out, err := minifier.Bytes(mediaCSS, asset.Contents)
		if err != nil {
			return nil, err
		}
		return &Asset{Path: asset.Path, SourcePath: asset.SourcePath, Contents: out}, nil
	})
}

// minifySVG cleans up vector markup while keeping its structure and ids.
func minifySVG(_ context.Context, asset *Asset) (*Asset, error) {
	out, err := minifier.Bytes(mediaSVG, asset.Contents)
	if err != nil {
		return nil, err
	}
	return &Asset{Path: asset.Path, SourcePath: asset.SourcePath, Contents: out}, nil
}
