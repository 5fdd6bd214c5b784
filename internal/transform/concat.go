package transform

import (
	"bytes"
	"context"
	"sort"
)

type concat struct {
	name string
}

// Concat joins every asset, ordered by path, into a single file.
func Concat(name string) Transformer {
	return &concat{name: name}
}

func (c *concat) Name() string { return "concat" }

func (c *concat) Transform(_ context.Context, assets []*Asset) ([]*Asset, error) {
	if len(assets) == 0 {
		return nil, nil
	}

	sorted := append([]*Asset(nil), assets...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	var buf bytes.Buffer
	for i, asset := range sorted {
		if i > 0 {
			buf.WriteByte('\n')
		}
		buf.Write(bytes.TrimRight(asset.Contents, "\n"))
	}
	buf.WriteByte('\n')

	return []*Asset{{Path: c.name, Contents: buf.Bytes()}}, nil
}
