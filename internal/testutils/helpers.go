package testutils

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sitesmith/internal/config"
	"github.com/conneroisu/sitesmith/internal/paths"
)

// CreateTempProject creates a temporary project with the source folder layout
func CreateTempProject(t testing.TB) string {
	t.Helper()
	tempDir := t.TempDir()

	dirs := []string{
		"app/scss",
		"app/css",
		"app/js",
		"app/img",
		"app/fonts",
		"app/video",
		"app/templates",
		"app/components",
	}

	for _, dir := range dirs {
		err := os.MkdirAll(filepath.Join(tempDir, dir), 0o755)
		require.NoError(t, err)
	}

	return tempDir
}

// WriteFile writes content to a slash separated path below root, creating
// parent folders as needed
func WriteFile(t testing.TB, root, rel, content string) string {
	t.Helper()
	file := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(file), 0o755))
	require.NoError(t, os.WriteFile(file, []byte(content), 0o644))
	return file
}

// ListFiles returns every regular file below dir as sorted slash separated
// relative paths. A missing dir has no files.
func ListFiles(t testing.TB, dir string) []string {
	t.Helper()
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipDir
			}
			return err
		}
		if d.Type().IsRegular() {
			rel, err := filepath.Rel(dir, p)
			if err != nil {
				return err
			}
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	require.NoError(t, err)
	sort.Strings(files)
	return files
}

// CreateTestConfig creates a configuration rooted at projectDir
func CreateTestConfig(projectDir string) *config.Config {
	cfg := config.Default()
	cfg.Paths = config.PathsConfig{
		Source: filepath.Join(projectDir, "app"),
		Dev:    filepath.Join(projectDir, "dist"),
		Prod:   filepath.Join(projectDir, "prod"),
	}
	cfg.Server.Open = false
	cfg.Server.Port = 0
	cfg.Watch.Debounce = 20 * time.Millisecond
	cfg.Deploy.Credentials = filepath.Join(projectDir, "ftp.json")
	cfg.Deploy.Timeout = 2 * time.Second
	return cfg
}

// CreateTestPlan creates the folder plan of a project created by
// CreateTempProject
func CreateTestPlan(t testing.TB, projectDir string) paths.Plan {
	t.Helper()
	plan, err := CreateTestConfig(projectDir).Plan()
	require.NoError(t, err)
	return plan
}
