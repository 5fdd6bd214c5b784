package build

import (
	"strings"

	"github.com/conneroisu/sitesmith/internal/config"
	"github.com/conneroisu/sitesmith/internal/paths"
	"github.com/conneroisu/sitesmith/internal/transform"
)

// Class names an asset class. Each class is built by one stage.
type Class string

const (
	ClassMarkup   Class = "markup"
	ClassStyles   Class = "styles"
	ClassScripts  Class = "scripts"
	ClassImages   Class = "images"
	ClassVerbatim Class = "verbatim"
)

// Classes lists every asset class in pipeline order.
func Classes() []Class {
	return []Class{ClassVerbatim, ClassMarkup, ClassStyles, ClassScripts, ClassImages}
}

// Folder selects one folder of a FolderSet.
type Folder func(paths.FolderSet) string

// Source names the files a branch reads: glob patterns relative to a folder
// of the source root.
type Source struct {
	Folder   Folder
	Patterns []string
}

// Branch is one independent read-transform-write flow of a stage.
type Branch struct {
	Name   string
	Source Source
	Chains map[Mode]transform.Chain
	Output Folder
}

// AssetClassSpec is the mode table of one asset class. Clean patterns are
// relative to the output root of a mode, Watch patterns to the source root.
type AssetClassSpec struct {
	Class    Class
	Branches []Branch
	Clean    []string
	Watch    []string
}

// Options selects between the configurations of the table.
type Options struct {
	ScriptsPolicy string // config.ScriptsPerFile or config.ScriptsBundle
	BundleName    string
	DevCompress   bool
}

var (
	mainFolder       Folder = func(f paths.FolderSet) string { return f.Main }
	stylesFolder     Folder = func(f paths.FolderSet) string { return f.Styles }
	cssFolder        Folder = func(f paths.FolderSet) string { return f.CSS }
	scriptsFolder    Folder = func(f paths.FolderSet) string { return f.Scripts }
	imagesFolder     Folder = func(f paths.FolderSet) string { return f.Images }
	fontsFolder      Folder = func(f paths.FolderSet) string { return f.Fonts }
	videoFolder      Folder = func(f paths.FolderSet) string { return f.Video }
	componentsFolder Folder = func(f paths.FolderSet) string { return f.Components }
)

var (
	imagePattern  = extPattern(transform.ImageFormats)
	rasterPattern = extPattern(transform.RasterFormats)
)

// extPattern matches files with any of exts in a single folder.
func extPattern(exts []string) string {
	return "*.{" + strings.Join(exts, ",") + "}"
}

// NewSpecTable builds the mode table for every asset class from the
// toolbox. The result is in pipeline order.
func NewSpecTable(tools *Toolbox, opts Options) []AssetClassSpec {
	return []AssetClassSpec{
		verbatimSpec(),
		markupSpec(tools),
		stylesSpec(tools),
		scriptsSpec(tools, opts),
		imagesSpec(tools, opts),
	}
}

func both(chain transform.Chain) map[Mode]transform.Chain {
	return map[Mode]transform.Chain{ModeDev: chain, ModeProd: chain}
}

func verbatimSpec() AssetClassSpec {
	tree := func(name string, folder Folder) Branch {
		return Branch{
			Name:   name,
			Source: Source{Folder: folder, Patterns: []string{"**"}},
			Chains: both(nil),
			Output: folder,
		}
	}
	return AssetClassSpec{
		Class: ClassVerbatim,
		Branches: []Branch{
			tree(paths.SegmentFonts, fontsFolder),
			tree(paths.SegmentVideo, videoFolder),
			tree(paths.SegmentComponents, componentsFolder),
		},
		Clean: []string{"fonts/**", "video/**", "components/**"},
		Watch: []string{"fonts/**", "video/**", "components/**"},
	}
}

func markupSpec(tools *Toolbox) AssetClassSpec {
	return AssetClassSpec{
		Class: ClassMarkup,
		Branches: []Branch{{
			Name:   "html",
			Source: Source{Folder: mainFolder, Patterns: []string{"*.html"}},
			Chains: both(transform.Chain{tools.Include}),
			Output: mainFolder,
		}},
		Clean: []string{"*.html"},
		Watch: []string{"*.html", "templates/*.html", "templates/*.md"},
	}
}

func stylesSpec(tools *Toolbox) AssetClassSpec {
	return AssetClassSpec{
		Class: ClassStyles,
		Branches: []Branch{{
			Name:   "scss",
			Source: Source{Folder: stylesFolder, Patterns: []string{"*.scss"}},
			Chains: map[Mode]transform.Chain{
				ModeDev:  {tools.Sass},
				ModeProd: {tools.Sass, tools.Prefix, tools.MinifyCSS},
			},
			Output: cssFolder,
		}},
		Clean: []string{"css/*.css"},
		Watch: []string{"scss/*.scss"},
	}
}

func scriptsSpec(tools *Toolbox, opts Options) AssetClassSpec {
	if opts.ScriptsPolicy == config.ScriptsBundle {
		return AssetClassSpec{
			Class: ClassScripts,
			Branches: []Branch{
				{
					Name:   "bundle",
					Source: Source{Folder: scriptsFolder, Patterns: []string{"*.js"}},
					Chains: map[Mode]transform.Chain{
						ModeDev:  nil,
						ModeProd: {tools.Transpile, tools.MinifyJS, transform.Concat(opts.BundleName)},
					},
					Output: scriptsFolder,
				},
				{
					Name:   "css",
					Source: Source{Folder: cssFolder, Patterns: []string{"*.css"}},
					Chains: map[Mode]transform.Chain{
						ModeDev:  nil,
						ModeProd: {tools.Prefix, tools.MinifyCSS},
					},
					Output: cssFolder,
				},
			},
			Clean: []string{"js/*.js", "css/*.css"},
			Watch: []string{"js/*.js", "css/*.css"},
		}
	}

	return AssetClassSpec{
		Class: ClassScripts,
		Branches: []Branch{{
			Name:   "js",
			Source: Source{Folder: scriptsFolder, Patterns: []string{"*.js"}},
			Chains: map[Mode]transform.Chain{
				ModeDev:  nil,
				ModeProd: {tools.Transpile, tools.MinifyJS, tools.Obfuscate},
			},
			Output: scriptsFolder,
		}},
		Clean: []string{"js/*.js"},
		Watch: []string{"js/*.js"},
	}
}

func imagesSpec(tools *Toolbox, opts Options) AssetClassSpec {
	var devCopy transform.Chain
	if opts.DevCompress {
		devCopy = transform.Chain{tools.Optimize}
	}

	return AssetClassSpec{
		Class: ClassImages,
		Branches: []Branch{
			{
				Name:   "images",
				Source: Source{Folder: imagesFolder, Patterns: []string{imagePattern}},
				Chains: map[Mode]transform.Chain{
					ModeDev:  devCopy,
					ModeProd: {tools.Optimize},
				},
				Output: imagesFolder,
			},
			{
				Name:   "webp",
				Source: Source{Folder: imagesFolder, Patterns: []string{rasterPattern}},
				Chains: map[Mode]transform.Chain{
					ModeDev:  {tools.WebP},
					ModeProd: {tools.WebP, tools.Optimize},
				},
				Output: imagesFolder,
			},
		},
		Clean: []string{"img/*"},
		Watch: []string{"img/" + imagePattern},
	}
}
