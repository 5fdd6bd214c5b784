package build

import (
	"github.com/conneroisu/sitesmith/internal/config"
	"github.com/conneroisu/sitesmith/internal/errors"
	"github.com/conneroisu/sitesmith/internal/paths"
	"github.com/conneroisu/sitesmith/internal/transform"
)

// Toolbox holds the transformations the mode table is assembled from.
// Tests swap entries for fakes.
type Toolbox struct {
	Include   transform.Transformer
	Sass      transform.Transformer
	Prefix    transform.Transformer
	MinifyCSS transform.Transformer
	Transpile transform.Transformer
	MinifyJS  transform.Transformer
	Obfuscate transform.Transformer
	Optimize  transform.Transformer
	WebP      transform.Transformer
}

// NewToolbox wires the configured tools against the source folders of plan.
func NewToolbox(cfg *config.Config, plan paths.Plan) (*Toolbox, error) {
	source := plan.Source()

	target, err := transform.ParseTarget(cfg.Scripts.Target)
	if err != nil {
		return nil, invalidTool("scripts.target", err)
	}
	browsers, err := transform.ParseBrowsers(cfg.Styles.Browsers)
	if err != nil {
		return nil, invalidTool("styles.browsers", err)
	}

	webp, err := transform.ParseCommand("webp", cfg.Images.WebP, ".webp")
	if err != nil {
		return nil, invalidTool("images.webp", err)
	}
	jpeg, err := transform.ParseCommand("jpegtran", cfg.Images.JPEG, "")
	if err != nil {
		return nil, invalidTool("images.jpeg", err)
	}
	png, err := transform.ParseCommand("optipng", cfg.Images.PNG, "")
	if err != nil {
		return nil, invalidTool("images.png", err)
	}
	gif, err := transform.ParseCommand("gifsicle", cfg.Images.GIF, "")
	if err != nil {
		return nil, invalidTool("images.gif", err)
	}

	sass := &transform.Sass{Binary: cfg.Styles.Sass, LoadPaths: []string{source.Styles}}

	return &Toolbox{
		Include:   transform.NewIncluder(source.Templates).Transformer(),
		Sass:      sass.Transformer(),
		Prefix:    transform.PrefixCSS(browsers),
		MinifyCSS: transform.MinifyCSS(),
		Transpile: transform.Transpile(target),
		MinifyJS:  transform.MinifyScript(target),
		Obfuscate: transform.Obfuscate(target, cfg.Scripts.KeepNames),
		Optimize:  transform.NewImageOptimizer(transform.ImageTools{JPEG: jpeg, PNG: png, GIF: gif}).Transformer(),
		WebP:      webp.Transformer(),
	}, nil
}

// OptionsFromConfig returns the table options of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		ScriptsPolicy: cfg.Scripts.Policy,
		BundleName:    cfg.Scripts.BundleName,
		DevCompress:   cfg.Images.DevCompress,
	}
}

func invalidTool(key string, err error) error {
	return errors.Wrap(err, errors.ErrorTypeConfig, errors.ErrCodeConfigInvalid, "invalid "+key)
}
