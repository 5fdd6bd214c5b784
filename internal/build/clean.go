package build

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/conneroisu/sitesmith/internal/errors"
	"github.com/conneroisu/sitesmith/internal/logging"
	"github.com/conneroisu/sitesmith/internal/paths"
)

// Cleaner deletes earlier output of one mode. Removing something that does
// not exist is not an error, so cleaning is idempotent.
type Cleaner struct {
	specs  []AssetClassSpec
	plan   paths.Plan
	logger logging.Logger
}

// NewCleaner creates a cleaner over the cleanup patterns of specs.
func NewCleaner(specs []AssetClassSpec, plan paths.Plan, logger logging.Logger) *Cleaner {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Cleaner{specs: specs, plan: plan, logger: logger.WithComponent("cleaner")}
}

// Clean removes every file matching a cleanup pattern below the mode root.
func (c *Cleaner) Clean(ctx context.Context, mode Mode) error {
	if err := mode.Validate(); err != nil {
		return err
	}

	root := c.plan.Resolve(mode.Root()).Main
	removed := 0
	for _, spec := range c.specs {
		for _, pattern := range spec.Clean {
			if err := ctx.Err(); err != nil {
				return err
			}
			n, err := cleanPattern(root, pattern)
			removed += n
			if err != nil {
				return err
			}
		}
	}

	c.logger.Info(ctx, "Cleaned output", "mode", mode.String(), "root", root, "removed", removed)
	return nil
}

// Targets returns the cleanup patterns joined to the root of mode.
func (c *Cleaner) Targets(mode Mode) []string {
	root := c.plan.Resolve(mode.Root()).Main
	var targets []string
	for _, spec := range c.specs {
		for _, pattern := range spec.Clean {
			targets = append(targets, root+"/"+pattern)
		}
	}
	return targets
}

// cleanPattern removes the matches of pattern below root. A pattern ending in
// "/**" removes the whole subtree.
func cleanPattern(root, pattern string) (int, error) {
	if dir, ok := strings.CutSuffix(pattern, "/**"); ok {
		target := filepath.Join(root, filepath.FromSlash(dir))
		if _, err := os.Lstat(target); os.IsNotExist(err) {
			return 0, nil
		}
		if err := os.RemoveAll(target); err != nil {
			return 0, errors.WrapIO(err, errors.ErrCodeCleanFailed, "failed to remove output folder", target)
		}
		return 1, nil
	}

	matches, err := match(root, []string{pattern})
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, rel := range matches {
		file := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
			return removed, errors.WrapIO(err, errors.ErrCodeCleanFailed, "failed to remove output file", file)
		}
		removed++
	}
	return removed, nil
}
