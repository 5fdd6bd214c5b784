// Package config provides configuration management for sitesmith using Viper
// for flexible loading from files, environment variables, and command-line
// flags.
//
// The configuration covers the folder layout, the scripts policy, the tool
// commands used by the styles and images stages, the preview server, the
// watcher and the deploy target. Values are read from .sitesmith.yml with
// SITESMITH_ prefixed environment overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/sitesmith/internal/errors"
	"github.com/conneroisu/sitesmith/internal/paths"
)

// Scripts policies.
const (
	ScriptsPerFile = "per-file"
	ScriptsBundle  = "bundle"
)

type Config struct {
	Paths   PathsConfig   `mapstructure:"paths" yaml:"paths"`
	Scripts ScriptsConfig `mapstructure:"scripts" yaml:"scripts"`
	Styles  StylesConfig  `mapstructure:"styles" yaml:"styles"`
	Images  ImagesConfig  `mapstructure:"images" yaml:"images"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Watch   WatchConfig   `mapstructure:"watch" yaml:"watch"`
	Deploy  DeployConfig  `mapstructure:"deploy" yaml:"deploy"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

type PathsConfig struct {
	Source string `mapstructure:"source" yaml:"source"`
	Dev    string `mapstructure:"dev" yaml:"dev"`
	Prod   string `mapstructure:"prod" yaml:"prod"`
}

type ScriptsConfig struct {
	Policy     string `mapstructure:"policy" yaml:"policy"`
	BundleName string `mapstructure:"bundle_name" yaml:"bundle_name"`
	Target     string `mapstructure:"target" yaml:"target"`
	KeepNames  bool   `mapstructure:"keep_names" yaml:"keep_names"`
}

type StylesConfig struct {
	Sass     string   `mapstructure:"sass" yaml:"sass"`
	Browsers []string `mapstructure:"browsers" yaml:"browsers"`
}

// ImagesConfig holds the external optimizer commands. Each command uses the
// {in} and {out} placeholders for the input and output file.
type ImagesConfig struct {
	DevCompress bool   `mapstructure:"dev_compress" yaml:"dev_compress"`
	WebP        string `mapstructure:"webp" yaml:"webp"`
	JPEG        string `mapstructure:"jpeg" yaml:"jpeg"`
	PNG         string `mapstructure:"png" yaml:"png"`
	GIF         string `mapstructure:"gif" yaml:"gif"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port" yaml:"port"`
	Host string `mapstructure:"host" yaml:"host"`
	Open bool   `mapstructure:"open" yaml:"open"`
}

type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

type DeployConfig struct {
	Credentials string        `mapstructure:"credentials" yaml:"credentials"`
	RemoteDir   string        `mapstructure:"remote_dir" yaml:"remote_dir"`
	Parallel    int           `mapstructure:"parallel" yaml:"parallel"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Default tool commands.
const (
	DefaultWebPCommand = "cwebp -quiet -q 90 {in} -o {out}"
	DefaultJPEGCommand = "jpegtran -copy none -optimize -progressive -outfile {out} {in}"
	DefaultPNGCommand  = "optipng -quiet -o2 -out {out} {in}"
	DefaultGIFCommand  = "gifsicle -O3 --interlace -o {out} {in}"
)

// DefaultBrowsers is the prefixing target list used when none is configured.
var DefaultBrowsers = []string{"chrome58", "edge16", "firefox57", "safari11", "ios11"}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg, func(string) bool { return false })
	return cfg
}

func Load() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, errors.ErrCodeConfigInvalid, "failed to decode configuration")
	}

	// Slices set through env vars arrive as a single string
	if viper.IsSet("styles.browsers") && len(config.Styles.Browsers) <= 1 {
		if browsers := viper.GetStringSlice("styles.browsers"); len(browsers) > 0 {
			config.Styles.Browsers = splitList(browsers)
		}
	}

	applyDefaults(&config, viper.IsSet)

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func applyDefaults(config *Config, isSet func(string) bool) {
	if config.Paths.Source == "" {
		config.Paths.Source = paths.DefaultSourceBase
	}
	if config.Paths.Dev == "" {
		config.Paths.Dev = paths.DefaultDevBase
	}
	if config.Paths.Prod == "" {
		config.Paths.Prod = paths.DefaultProdBase
	}

	if config.Scripts.Policy == "" {
		config.Scripts.Policy = ScriptsPerFile
	}
	if config.Scripts.BundleName == "" {
		config.Scripts.BundleName = "bundle.min.js"
	}
	if config.Scripts.Target == "" {
		config.Scripts.Target = "es2015"
	}
	if !isSet("scripts.keep_names") {
		config.Scripts.KeepNames = true
	}

	if config.Styles.Sass == "" {
		config.Styles.Sass = "sass"
	}
	if len(config.Styles.Browsers) == 0 {
		config.Styles.Browsers = append([]string(nil), DefaultBrowsers...)
	}

	if config.Images.WebP == "" {
		config.Images.WebP = DefaultWebPCommand
	}
	if config.Images.JPEG == "" {
		config.Images.JPEG = DefaultJPEGCommand
	}
	if config.Images.PNG == "" {
		config.Images.PNG = DefaultPNGCommand
	}
	if config.Images.GIF == "" {
		config.Images.GIF = DefaultGIFCommand
	}

	if config.Server.Port == 0 && !isSet("server.port") {
		config.Server.Port = 3000
	}
	if config.Server.Host == "" {
		config.Server.Host = "localhost"
	}
	if !isSet("server.open") {
		config.Server.Open = true
	}

	if config.Watch.Debounce == 0 {
		config.Watch.Debounce = 100 * time.Millisecond
	}

	if config.Deploy.Credentials == "" {
		config.Deploy.Credentials = "ftp.json"
	}
	if config.Deploy.RemoteDir == "" {
		config.Deploy.RemoteDir = "/www/test"
	}
	if config.Deploy.Parallel == 0 {
		config.Deploy.Parallel = 10
	}
	if config.Deploy.Timeout == 0 {
		config.Deploy.Timeout = 30 * time.Second
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}
}

// Plan builds the folder plan from the configured base paths.
func (c *Config) Plan() (paths.Plan, error) {
	return paths.New(c.Paths.Source, c.Paths.Dev, c.Paths.Prod)
}

// validateConfig validates configuration values for correctness
func validateConfig(config *Config) error {
	if _, err := config.Plan(); err != nil {
		return err
	}

	if config.Server.Port < 0 || config.Server.Port > 65535 {
		return invalid(fmt.Sprintf("server.port %d is not in valid range 0-65535", config.Server.Port))
	}

	switch config.Scripts.Policy {
	case ScriptsPerFile, ScriptsBundle:
	default:
		return invalid(fmt.Sprintf("scripts.policy %q is not one of %s, %s", config.Scripts.Policy, ScriptsPerFile, ScriptsBundle))
	}

	if strings.ContainsAny(config.Scripts.BundleName, `/\`) || filepath.Ext(config.Scripts.BundleName) != ".js" {
		return invalid(fmt.Sprintf("scripts.bundle_name %q must be a plain .js file name", config.Scripts.BundleName))
	}

	for key, command := range map[string]string{
		"images.webp": config.Images.WebP,
		"images.jpeg": config.Images.JPEG,
		"images.png":  config.Images.PNG,
		"images.gif":  config.Images.GIF,
	} {
		if !strings.Contains(command, "{in}") || !strings.Contains(command, "{out}") {
			return invalid(fmt.Sprintf("%s must contain the {in} and {out} placeholders", key))
		}
	}

	if config.Deploy.Parallel < 1 {
		return invalid(fmt.Sprintf("deploy.parallel must be at least 1, got %d", config.Deploy.Parallel))
	}

	if config.Watch.Debounce < 0 {
		return invalid("watch.debounce must not be negative")
	}

	return nil
}

func invalid(message string) error {
	return errors.NewConfigError(errors.ErrCodeConfigInvalid, message)
}

func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' }) {
			out = append(out, part)
		}
	}
	return out
}
