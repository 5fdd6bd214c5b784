package services

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/conneroisu/sitesmith/internal/config"
	"github.com/conneroisu/sitesmith/internal/errors"
	"github.com/conneroisu/sitesmith/internal/paths"
)

// ConfigFileName is the configuration file init writes and the CLI reads.
const ConfigFileName = ".sitesmith.yml"

// InitService scaffolds a new site.
type InitService struct{}

// NewInitService creates a new initialization service
func NewInitService() *InitService {
	return &InitService{}
}

// InitOptions contains options for project initialization
type InitOptions struct {
	ProjectDir string
	// Minimal skips the starter pages, styles and scripts.
	Minimal bool
	// Force overwrites files that already exist.
	Force bool
}

// InitResult lists what InitProject wrote and what it left alone.
type InitResult struct {
	Created []string
	Skipped []string
}

// InitProject creates the source layout, a default configuration file and,
// unless minimal, a starter page with styles and a script.
func (s *InitService) InitProject(opts InitOptions) (*InitResult, error) {
	if opts.ProjectDir == "" {
		opts.ProjectDir = "."
	}
	if err := os.MkdirAll(opts.ProjectDir, 0o755); err != nil {
		return nil, errors.WrapIO(err, errors.ErrCodeWriteFailed, "cannot create project directory", opts.ProjectDir)
	}

	if err := s.createDirectoryStructure(opts.ProjectDir); err != nil {
		return nil, err
	}

	files := map[string]func() ([]byte, error){
		ConfigFileName:     defaultConfigFile,
		"ftp.example.json": func() ([]byte, error) { return []byte(ftpExample), nil },
	}
	if !opts.Minimal {
		for name, content := range starterFiles {
			files[name] = func() ([]byte, error) { return []byte(content), nil }
		}
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	result := &InitResult{}
	for _, name := range names {
		target := filepath.Join(opts.ProjectDir, filepath.FromSlash(name))
		if _, err := os.Stat(target); err == nil && !opts.Force {
			result.Skipped = append(result.Skipped, name)
			continue
		}

		content, err := files[name]()
		if err != nil {
			return result, errors.NewInternalError(errors.ErrCodeInternalError, "failed to render "+name, err)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return result, errors.WrapIO(err, errors.ErrCodeWriteFailed, "failed to create directory", filepath.Dir(target))
		}
		if err := os.WriteFile(target, content, 0o644); err != nil {
			return result, errors.WrapIO(err, errors.ErrCodeWriteFailed, "failed to write "+name, target)
		}
		result.Created = append(result.Created, name)
	}

	return result, nil
}

// createDirectoryStructure creates every source folder
func (s *InitService) createDirectoryStructure(projectDir string) error {
	source := paths.NewFolderSet(filepath.Join(projectDir, paths.DefaultSourceBase))
	for _, dir := range []string{
		source.Main,
		source.Styles,
		source.CSS,
		source.Scripts,
		source.Images,
		source.Fonts,
		source.Video,
		source.Templates,
		source.Components,
	} {
		if err := os.MkdirAll(filepath.FromSlash(dir), 0o755); err != nil {
			return errors.WrapIO(err, errors.ErrCodeWriteFailed, fmt.Sprintf("failed to create directory %s", dir), dir)
		}
	}
	return nil
}

// configFile mirrors config.Config with durations written the way people
// type them.
type configFile struct {
	Paths   config.PathsConfig   `yaml:"paths"`
	Scripts config.ScriptsConfig `yaml:"scripts"`
	Styles  config.StylesConfig  `yaml:"styles"`
	Images  config.ImagesConfig  `yaml:"images"`
	Server  config.ServerConfig  `yaml:"server"`
	Watch   struct {
		Debounce string `yaml:"debounce"`
	} `yaml:"watch"`
	Deploy struct {
		Credentials string `yaml:"credentials"`
		RemoteDir   string `yaml:"remote_dir"`
		Parallel    int    `yaml:"parallel"`
		Timeout     string `yaml:"timeout"`
	} `yaml:"deploy"`
	Log config.LogConfig `yaml:"log"`
}

func defaultConfigFile() ([]byte, error) {
	cfg := config.Default()

	file := configFile{
		Paths:   cfg.Paths,
		Scripts: cfg.Scripts,
		Styles:  cfg.Styles,
		Images:  cfg.Images,
		Server:  cfg.Server,
		Log:     cfg.Log,
	}
	file.Watch.Debounce = cfg.Watch.Debounce.String()
	file.Deploy.Credentials = cfg.Deploy.Credentials
	file.Deploy.RemoteDir = cfg.Deploy.RemoteDir
	file.Deploy.Parallel = cfg.Deploy.Parallel
	file.Deploy.Timeout = cfg.Deploy.Timeout.String()

	body, err := yaml.Marshal(&file)
	if err != nil {
		return nil, err
	}
	return append([]byte("# sitesmith configuration\n"), body...), nil
}

const ftpExample = `{
  "address": "ftp.example.com",
  "username": "deploy",
  "password": ""
}
`

var starterFiles = map[string]string{
	"app/index.html": `<!DOCTYPE html>
<html lang="en">
@@include('templates/head.html', {"title": "Home"})
<body>
  <main>
    <h1>@@include('templates/title.html', {"text": "It works"})</h1>
  </main>
  <script src="js/main.js"></script>
</body>
</html>
`,
	"app/templates/head.html": `<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>@@title</title>
  <link rel="stylesheet" href="css/main.css">
</head>
`,
	"app/templates/title.html": `@@text`,
	"app/scss/_variables.scss": `$accent: #2f6feb;
$text: #1f2328;
`,
	"app/scss/main.scss": `@use "variables" as *;

body {
  margin: 0;
  font-family: system-ui, sans-serif;
  color: $text;
}

h1 {
  color: $accent;
}
`,
	"app/js/main.js": `const greet = (name = "world") => console.log(` + "`hello ${name}`" + `);
greet();
`,
}
