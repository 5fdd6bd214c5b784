package transform

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
)

// Sass compiles .scss assets with the dart-sass command line tool. Partials
// (names starting with an underscore) are only ever imported and produce no
// output of their own.
type Sass struct {
	Binary    string
	LoadPaths []string
}

// Transformer returns the per-file compile transformer.
func (s *Sass) Transformer() Transformer {
	return PerFile("sass", s.compile)
}

func (s *Sass) compile(ctx context.Context, asset *Asset) (*Asset, error) {
	if IsPartial(asset.Path) {
		return nil, nil
	}

	binary := s.Binary
	if binary == "" {
		binary = "sass"
	}
	if _, err := exec.LookPath(binary); err != nil {
		return nil, fmt.Errorf("%s command not found, install dart-sass: %w", binary, err)
	}

	args := []string{"--stdin", "--no-source-map", "--style=expanded"}
	if asset.SourcePath != "" {
		args = append(args, "--load-path="+filepath.Dir(asset.SourcePath))
	}
	for _, dir := range s.LoadPaths {
		args = append(args, "--load-path="+dir)
	}
	if asset.Ext() == ".sass" {
		args = append(args, "--indented")
	}

	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdin = bytes.NewReader(asset.Contents)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", binary, err, strings.TrimSpace(stderr.String()))
	}

	return &Asset{
		Path:       strings.TrimSuffix(asset.Path, path.Ext(asset.Path)) + ".css",
		SourcePath: asset.SourcePath,
		Contents:   stdout.Bytes(),
	}, nil
}

// IsPartial reports whether a style path names an import-only partial.
func IsPartial(p string) bool {
	return strings.HasPrefix(path.Base(p), "_")
}
