// Package paths resolves the fixed folder layout shared by the source tree
// and both build output roots.
package paths

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/conneroisu/sitesmith/internal/errors"
)

// Fixed folder segments below every root.
const (
	SegmentStyles     = "scss"
	SegmentCSS        = "css"
	SegmentScripts    = "js"
	SegmentImages     = "img"
	SegmentFonts      = "fonts"
	SegmentVideo      = "video"
	SegmentTemplates  = "templates"
	SegmentComponents = "components"
)

// Default base paths.
const (
	DefaultSourceBase = "./app"
	DefaultDevBase    = "./dist"
	DefaultProdBase   = "./prod"
)

// RootID names one of the three roots of a plan.
type RootID int

const (
	RootSource RootID = iota
	RootDev
	RootProd
)

// String returns the string representation of the RootID
func (r RootID) String() string {
	switch r {
	case RootSource:
		return "source"
	case RootDev:
		return "dev"
	case RootProd:
		return "prod"
	default:
		return "unknown"
	}
}

// FolderSet holds every logical folder below one root.
type FolderSet struct {
	Main       string
	Styles     string
	CSS        string
	Scripts    string
	Images     string
	Fonts      string
	Video      string
	Templates  string
	Components string
}

// NewFolderSet derives a FolderSet from its base path.
func NewFolderSet(base string) FolderSet {
	base = strings.TrimSuffix(filepath.ToSlash(base), "/")
	sub := func(segment string) string { return base + "/" + segment }

	return FolderSet{
		Main:       base,
		Styles:     sub(SegmentStyles),
		CSS:        sub(SegmentCSS),
		Scripts:    sub(SegmentScripts),
		Images:     sub(SegmentImages),
		Fonts:      sub(SegmentFonts),
		Video:      sub(SegmentVideo),
		Templates:  sub(SegmentTemplates),
		Components: sub(SegmentComponents),
	}
}

// Plan is the immutable source/dev/prod folder table.
type Plan struct {
	source FolderSet
	dev    FolderSet
	prod   FolderSet
}

// New validates the three base paths and builds a Plan.
func New(sourceBase, devBase, prodBase string) (Plan, error) {
	bases := map[RootID]string{RootSource: sourceBase, RootDev: devBase, RootProd: prodBase}
	seen := make(map[string]RootID, len(bases))

	for _, id := range []RootID{RootSource, RootDev, RootProd} {
		base := bases[id]
		if err := validateBase(base); err != nil {
			return Plan{}, errors.NewConfigError("INVALID_PATH_PLAN",
				fmt.Sprintf("%s root: %v", id, err))
		}
		clean := filepath.Clean(base)
		if other, dup := seen[clean]; dup {
			return Plan{}, errors.NewConfigError("INVALID_PATH_PLAN",
				fmt.Sprintf("%s root %q is the same folder as the %s root", id, base, other))
		}
		seen[clean] = id
	}

	return Plan{
		source: NewFolderSet(sourceBase),
		dev:    NewFolderSet(devBase),
		prod:   NewFolderSet(prodBase),
	}, nil
}

// Default returns the app/dist/prod plan.
func Default() Plan {
	plan, err := New(DefaultSourceBase, DefaultDevBase, DefaultProdBase)
	if err != nil {
		panic(err)
	}
	return plan
}

// Resolve returns the FolderSet for a root.
func (p Plan) Resolve(root RootID) FolderSet {
	switch root {
	case RootDev:
		return p.dev
	case RootProd:
		return p.prod
	default:
		return p.source
	}
}

// Source is shorthand for Resolve(RootSource).
func (p Plan) Source() FolderSet { return p.source }

func validateBase(base string) error {
	if strings.TrimSpace(base) == "" {
		return fmt.Errorf("empty base path")
	}
	if strings.Contains(filepath.ToSlash(base), "..") {
		return fmt.Errorf("base path %q contains traversal", base)
	}
	if strings.ContainsAny(base, "*?[{") {
		return fmt.Errorf("base path %q contains glob characters", base)
	}
	return nil
}
