package transform

import (
	"context"
)

// Image formats handled by the images stage.
var (
	ImageFormats  = []string{"jpg", "jpeg", "png", "jfif", "svg", "webp", "gif", "ico"}
	RasterFormats = []string{"jpg", "jpeg", "png"}
)

// ImageOptimizer dispatches each image to the optimizer for its format.
// Formats without an optimizer pass through unchanged.
type ImageOptimizer struct {
	byExt map[string]FileFunc
}

// ImageTools holds the external optimizers, any of which may be nil.
type ImageTools struct {
	JPEG *Command
	PNG  *Command
	GIF  *Command
}

// NewImageOptimizer builds the per-format optimizer table. Every entry is
// wrapped so its result is never larger than its input.
func NewImageOptimizer(tools ImageTools) *ImageOptimizer {
	byExt := map[string]FileFunc{
		".svg": NoInflate(minifySVG),
	}
	if tools.JPEG != nil {
		for _, ext := range []string{".jpg", ".jpeg", ".jfif"} {
			byExt[ext] = NoInflate(tools.JPEG.Run)
		}
	}
	if tools.PNG != nil {
		byExt[".png"] = NoInflate(tools.PNG.Run)
	}
	if tools.GIF != nil {
		byExt[".gif"] = NoInflate(tools.GIF.Run)
	}
	return &ImageOptimizer{byExt: byExt}
}

// Transformer returns the per-file optimizer.
func (o *ImageOptimizer) Transformer() Transformer {
	return PerFile("optimize", o.optimize)
}

func (o *ImageOptimizer) optimize(ctx context.Context, asset *Asset) (*Asset, error) {
	fn, ok := o.byExt[asset.Ext()]
	if !ok {
		return asset, nil
	}
	return fn(ctx, asset)
}

// NoInflate keeps the original contents whenever fn would grow the file.
func NoInflate(fn FileFunc) FileFunc {
	return func(ctx context.Context, asset *Asset) (*Asset, error) {
		result, err := fn(ctx, asset)
		if err != nil || result == nil {
			return result, err
		}
		if len(result.Contents) > len(asset.Contents) {
			return &Asset{Path: result.Path, SourcePath: asset.SourcePath, Contents: asset.Contents}, nil
		}
		return result, nil
	}
}
