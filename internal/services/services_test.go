package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/sitesmith/internal/build"
	"github.com/conneroisu/sitesmith/internal/config"
	"github.com/conneroisu/sitesmith/internal/deploy"
	"github.com/conneroisu/sitesmith/internal/errors"
	"github.com/conneroisu/sitesmith/internal/server"
	"github.com/conneroisu/sitesmith/internal/testutils"
	"github.com/conneroisu/sitesmith/internal/transform"
)

// testToolbox keeps the in-process tools and fakes the external binaries.
func testToolbox(t *testing.T, cfg *config.Config) *build.Toolbox {
	t.Helper()
	plan, err := cfg.Plan()
	require.NoError(t, err)
	tools, err := build.NewToolbox(cfg, plan)
	require.NoError(t, err)

	tools.Sass = transform.PerFile("sass", func(_ context.Context, a *transform.Asset) (*transform.Asset, error) {
		if transform.IsPartial(a.Path) {
			return nil, nil
		}
		return a.WithExt(".css"), nil
	})
	tools.WebP = transform.PerFile("webp", func(_ context.Context, a *transform.Asset) (*transform.Asset, error) {
		out := a.WithExt(".webp")
		out.Contents = append([]byte("RIFF"), a.Contents...)
		return out, nil
	})
	tools.Optimize = transform.PerFile("optimize", func(_ context.Context, a *transform.Asset) (*transform.Asset, error) {
		return a, nil
	})
	return tools
}

type project struct {
	dir       string
	cfg       *config.Config
	container *ServiceContainer
}

func newProject(t *testing.T, opts ...ContainerOption) *project {
	t.Helper()
	dir := testutils.CreateTempProject(t)
	cfg := testutils.CreateTestConfig(dir)
	cfg.Server.Host = "127.0.0.1"

	testutils.WriteFile(t, dir, "app/index.html", `<html><body>@@include('templates/nav.html', {"active": "home"})</body></html>`)
	testutils.WriteFile(t, dir, "app/templates/nav.html", `<nav class="@@active">menu</nav>`)
	testutils.WriteFile(t, dir, "app/js/main.js", "const answer = (value) => value ?? 42;\nconsole.log(answer());\n")
	testutils.WriteFile(t, dir, "app/scss/main.scss", "body { margin: 0; }\n")
	testutils.WriteFile(t, dir, "app/fonts/inter.woff2", "font")

	opts = append([]ContainerOption{WithToolbox(testToolbox(t, cfg))}, opts...)
	return &project{dir: dir, cfg: cfg, container: NewServiceContainer(cfg, nil, opts...)}
}

func (p *project) path(rel string) string {
	return filepath.Join(p.dir, filepath.FromSlash(rel))
}

func (p *project) read(t *testing.T, rel string) string {
	t.Helper()
	data, err := os.ReadFile(p.path(rel))
	require.NoError(t, err)
	return string(data)
}

func TestBuildServiceBuild(t *testing.T) {
	tests := []struct {
		name  string
		mode  build.Mode
		root  string
		check func(t *testing.T, p *project)
	}{
		{
			name: "dev",
			mode: build.ModeDev,
			root: "dist",
			check: func(t *testing.T, p *project) {
				assert.Contains(t, p.read(t, "dist/js/main.js"), "?? 42")
			},
		},
		{
			name: "prod",
			mode: build.ModeProd,
			root: "prod",
			check: func(t *testing.T, p *project) {
				assert.NotContains(t, p.read(t, "prod/js/main.js"), "??")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProject(t)
			result, err := NewBuildService(p.container).Build(context.Background(), tt.mode)
			require.NoError(t, err)

			assert.Equal(t, tt.mode, result.Mode)
			assert.NotEmpty(t, result.ID)
			assert.Equal(t, []string{"css/main.css", "fonts/inter.woff2", "index.html", "js/main.js"},
				testutils.ListFiles(t, p.path(tt.root)))
			assert.Equal(t, `<html><body><nav class="home">menu</nav></body></html>`, p.read(t, tt.root+"/index.html"))
			tt.check(t, p)
		})
	}
}

func TestBuildServiceRejectsUnsetMode(t *testing.T) {
	p := newProject(t)
	svc := NewBuildService(p.container)

	_, err := svc.Build(context.Background(), build.ModeUnset)
	assert.True(t, errors.IsConfigError(err))
	assert.True(t, errors.IsConfigError(svc.RunStage(context.Background(), build.ModeUnset, build.ClassMarkup)))
	assert.True(t, errors.IsConfigError(svc.Clean(context.Background(), build.ModeUnset)))
	assert.Empty(t, testutils.ListFiles(t, p.path("dist")))
}

func TestBuildServiceRunStage(t *testing.T) {
	p := newProject(t)
	svc := NewBuildService(p.container)

	require.NoError(t, svc.RunStage(context.Background(), build.ModeDev, build.ClassMarkup))
	assert.Equal(t, []string{"index.html"}, testutils.ListFiles(t, p.path("dist")))

	require.NoError(t, svc.RunStage(context.Background(), build.ModeDev, build.ClassVerbatim))
	assert.Equal(t, []string{"fonts/inter.woff2", "index.html"}, testutils.ListFiles(t, p.path("dist")))

	err := svc.RunStage(context.Background(), build.ModeDev, build.Class("fonts"))
	assert.True(t, errors.IsConfigError(err))
}

func TestBuildServiceClean(t *testing.T) {
	p := newProject(t)
	svc := NewBuildService(p.container)

	_, err := svc.Build(context.Background(), build.ModeDev)
	require.NoError(t, err)
	testutils.WriteFile(t, p.dir, "dist/robots.txt", "keep")

	require.NoError(t, svc.Clean(context.Background(), build.ModeDev))
	require.NoError(t, svc.Clean(context.Background(), build.ModeDev))
	assert.Equal(t, []string{"robots.txt"}, testutils.ListFiles(t, p.path("dist")))
}

func TestContainerConfigErrors(t *testing.T) {
	dir := testutils.CreateTempProject(t)

	cfg := testutils.CreateTestConfig(dir)
	cfg.Scripts.Target = "es1999"
	_, err := NewServiceContainer(cfg, nil).Pipeline()
	assert.True(t, errors.IsConfigError(err))

	cfg = testutils.CreateTestConfig(dir)
	cfg.Paths.Dev = cfg.Paths.Prod
	_, err = NewServiceContainer(cfg, nil).Plan()
	assert.True(t, errors.IsConfigError(err))
}

// recordingDialer stores uploads in memory.
type recordingDialer struct {
	mu     sync.Mutex
	stored map[string]string
}

func (d *recordingDialer) dial(context.Context, deploy.Credentials) (deploy.Conn, error) {
	return d, nil
}

func (d *recordingDialer) MakeDir(string) error { return nil }
func (d *recordingDialer) Quit() error          { return nil }

func (d *recordingDialer) Stor(path string, r io.Reader) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stored[path] = buf.String()
	return nil
}

func writeCredentials(t *testing.T, p *project, address string) {
	t.Helper()
	testutils.WriteFile(t, p.dir, "ftp.json", fmt.Sprintf(`{"adress":%q,"username":"site","password":"pw"}`, address))
}

func TestDeployService(t *testing.T) {
	dialer := &recordingDialer{stored: make(map[string]string)}
	p := newProject(t, WithDialer(dialer.dial))
	writeCredentials(t, p, "ftp.example.com")

	result, err := NewDeployService(p.container).Deploy(context.Background())
	require.NoError(t, err)

	assert.Equal(t, build.ModeProd, result.Build.Mode)
	assert.Equal(t, testutils.ListFiles(t, p.path("prod")), result.Publish.Uploaded)
	assert.Equal(t, p.read(t, "prod/index.html"), dialer.stored["/www/test/index.html"])
	assert.Contains(t, dialer.stored, "/www/test/fonts/inter.woff2")
}

func TestDeployServiceMissingCredentials(t *testing.T) {
	p := newProject(t)

	_, err := NewDeployService(p.container).Deploy(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsConfigError(err))
	assert.Empty(t, testutils.ListFiles(t, p.path("prod")))
}

func TestDeployServiceUnreachableHost(t *testing.T) {
	if testing.Short() {
		t.Skip("dials the network")
	}

	p := newProject(t)
	p.cfg.Deploy.Timeout = 500 * time.Millisecond
	writeCredentials(t, p, "127.0.0.1:1")

	_, err := NewDeployService(p.container).Deploy(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsPublishError(err))
	assert.Len(t, errors.FailedFiles(err), 4)
	assert.Len(t, testutils.ListFiles(t, p.path("prod")), 4)
}

func TestBindings(t *testing.T) {
	p := newProject(t)
	pipeline, err := p.container.Pipeline()
	require.NoError(t, err)

	bindings := Bindings(pipeline, build.ModeDev)
	names := make([]string, len(bindings))
	for i, b := range bindings {
		names[i] = b.Name
		assert.NotEmpty(t, b.Patterns, b.Name)
	}
	assert.ElementsMatch(t, []string{"verbatim", "markup", "styles", "scripts", "images"}, names)

	for _, b := range bindings {
		if b.Name == "markup" {
			require.NoError(t, b.Run(context.Background()))
		}
	}
	assert.Equal(t, []string{"index.html"}, testutils.ListFiles(t, p.path("dist")))
}

func TestServeServiceWithPreview(t *testing.T) {
	p := newProject(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- NewServeService(p.container).Serve(ctx, ServeOptions{
			Preview: true,
			Ready:   func(url string) { ready <- url },
		})
	}()

	var url string
	select {
	case url = <-ready:
	case err := <-errCh:
		t.Fatalf("serve stopped early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not become ready")
	}
	require.NotEmpty(t, url)

	resp, err := http.Get(url)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "menu")
	assert.Contains(t, string(body), server.ReloadScriptPath)

	testutils.WriteFile(t, p.dir, "app/templates/nav.html", `<nav class="@@active">changed</nav>`)
	assert.Eventually(t, func() bool {
		data, err := os.ReadFile(p.path("dist/index.html"))
		return err == nil && strings.Contains(string(data), "changed")
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestServeServiceWithoutPreview(t *testing.T) {
	p := newProject(t)

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- NewServeService(p.container).Serve(ctx, ServeOptions{Ready: func(url string) { ready <- url }})
	}()

	select {
	case url := <-ready:
		assert.Empty(t, url)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not become ready")
	}
	assert.Contains(t, testutils.ListFiles(t, p.path("dist")), "index.html")

	testutils.WriteFile(t, p.dir, "app/js/extra.js", "console.log(1)")
	assert.Eventually(t, func() bool {
		_, err := os.Stat(p.path("dist/js/extra.js"))
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestInitService(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "site")
	svc := NewInitService()

	result, err := svc.InitProject(InitOptions{ProjectDir: dir})
	require.NoError(t, err)
	assert.Contains(t, result.Created, ConfigFileName)
	assert.Contains(t, result.Created, "app/index.html")
	assert.Empty(t, result.Skipped)

	for _, sub := range []string{"scss", "css", "js", "img", "fonts", "video", "templates", "components"} {
		info, err := os.Stat(filepath.Join(dir, "app", sub))
		require.NoError(t, err, sub)
		assert.True(t, info.IsDir())
	}

	data, err := os.ReadFile(filepath.Join(dir, ConfigFileName))
	require.NoError(t, err)
	var parsed map[string]map[string]interface{}
	require.NoError(t, yaml.Unmarshal(data, &parsed))
	assert.Equal(t, "./app", parsed["paths"]["source"])
	assert.Equal(t, "per-file", parsed["scripts"]["policy"])
	assert.Equal(t, "100ms", parsed["watch"]["debounce"])
	assert.Equal(t, "/www/test", parsed["deploy"]["remote_dir"])

	// A second run keeps edits unless forced.
	testutils.WriteFile(t, dir, "app/index.html", "mine")
	result, err = svc.InitProject(InitOptions{ProjectDir: dir})
	require.NoError(t, err)
	assert.Empty(t, result.Created)
	assert.Contains(t, result.Skipped, "app/index.html")
	content, err := os.ReadFile(filepath.Join(dir, "app", "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "mine", string(content))

	result, err = svc.InitProject(InitOptions{ProjectDir: dir, Force: true})
	require.NoError(t, err)
	assert.Contains(t, result.Created, "app/index.html")
}

func TestInitServiceMinimal(t *testing.T) {
	dir := t.TempDir()
	result, err := NewInitService().InitProject(InitOptions{ProjectDir: dir, Minimal: true})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{ConfigFileName, "ftp.example.json"}, result.Created)
}

func TestScaffoldBuilds(t *testing.T) {
	dir := t.TempDir()
	_, err := NewInitService().InitProject(InitOptions{ProjectDir: dir})
	require.NoError(t, err)

	cfg := testutils.CreateTestConfig(dir)
	container := NewServiceContainer(cfg, nil, WithToolbox(testToolbox(t, cfg)))
	_, err = NewBuildService(container).Build(context.Background(), build.ModeDev)
	require.NoError(t, err)

	page, err := os.ReadFile(filepath.Join(dir, "dist", "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(page), "<title>Home</title>")
	assert.Contains(t, string(page), "<h1>It works</h1>")
	assert.Equal(t, []string{"css/main.css", "index.html", "js/main.js"}, testutils.ListFiles(t, filepath.Join(dir, "dist")))
}
