package transform

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Command runs an external tool that reads the file at {in} and writes the
// file at {out}.
type Command struct {
	name   string
	binary string
	args   []string
	outExt string
}

// ParseCommand splits a command line such as "optipng -o2 -out {out} {in}".
// outExt, when set, replaces the extension of the produced asset.
func ParseCommand(name, line, outExt string) (*Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%s: empty command", name)
	}
	if !strings.Contains(line, "{in}") || !strings.Contains(line, "{out}") {
		return nil, fmt.Errorf("%s: command %q must use {in} and {out}", name, line)
	}
	return &Command{name: name, binary: fields[0], args: fields[1:], outExt: outExt}, nil
}

// Name returns the command's transformer name.
func (c *Command) Name() string { return c.name }

// Transformer returns the per-file transformer running the command.
func (c *Command) Transformer() Transformer {
	return PerFile(c.name, c.Run)
}

// Run executes the command on one asset.
func (c *Command) Run(ctx context.Context, asset *Asset) (*Asset, error) {
	if _, err := exec.LookPath(c.binary); err != nil {
		return nil, fmt.Errorf("%s command not found: %w", c.binary, err)
	}

	dir, err := os.MkdirTemp("", "sitesmith-"+c.name+"-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	ext := asset.Ext()
	outExt := ext
	if c.outExt != "" {
		outExt = c.outExt
	}
	in := filepath.Join(dir, "in"+ext)
	out := filepath.Join(dir, "out"+outExt)

	if err := os.WriteFile(in, asset.Contents, 0o644); err != nil {
		return nil, err
	}

	args := make([]string, len(c.args))
	for i, arg := range c.args {
		arg = strings.ReplaceAll(arg, "{in}", in)
		args[i] = strings.ReplaceAll(arg, "{out}", out)
	}

	cmd := exec.CommandContext(ctx, c.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", c.binary, err, strings.TrimSpace(stderr.String()))
	}

	data, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("%s produced no output: %w", c.binary, err)
	}

	result := asset
	if c.outExt != "" {
		result = asset.WithExt(c.outExt)
	}
	return &Asset{Path: result.Path, SourcePath: asset.SourcePath, Contents: data}, nil
}
