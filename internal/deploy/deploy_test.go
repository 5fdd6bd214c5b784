package deploy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sitesmith/internal/config"
	"github.com/conneroisu/sitesmith/internal/errors"
	"github.com/conneroisu/sitesmith/internal/testutils"
)

// fakeServer records what the sessions it hands out store.
type fakeServer struct {
	mu       sync.Mutex
	stored   map[string]string
	dirs     []string
	sessions int
	quits    int
	failOn   string
	dialErr  error
	maxDials int
}

func newFakeServer() *fakeServer {
	return &fakeServer{stored: make(map[string]string)}
}

func (s *fakeServer) dial(_ context.Context, creds Credentials) (Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dialErr != nil {
		return nil, s.dialErr
	}
	if s.maxDials > 0 && s.sessions >= s.maxDials {
		return nil, fmt.Errorf("421 too many connections")
	}
	s.sessions++
	return &fakeConn{server: s}, nil
}

type fakeConn struct {
	server *fakeServer
}

func (c *fakeConn) MakeDir(path string) error {
	c.server.mu.Lock()
	defer c.server.mu.Unlock()
	c.server.dirs = append(c.server.dirs, path)
	return nil
}

func (c *fakeConn) Stor(path string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	c.server.mu.Lock()
	defer c.server.mu.Unlock()
	if c.server.failOn != "" && strings.HasSuffix(path, c.server.failOn) {
		return fmt.Errorf("553 could not create file")
	}
	c.server.stored[path] = string(data)
	return nil
}

func (c *fakeConn) Quit() error {
	c.server.mu.Lock()
	defer c.server.mu.Unlock()
	c.server.quits++
	return nil
}

func prodTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	testutils.WriteFile(t, root, "index.html", "<h1>hi</h1>")
	testutils.WriteFile(t, root, "css/main.css", "a{color:red}")
	testutils.WriteFile(t, root, "js/app.js", "x()")
	testutils.WriteFile(t, root, "img/photo.webp", "RIFF")
	testutils.WriteFile(t, root, "fonts/sub/a.woff2", "font")
	return root
}

func deployConfig(parallel int) config.DeployConfig {
	cfg := config.Default().Deploy
	cfg.Parallel = parallel
	cfg.Timeout = time.Second
	return cfg
}

var creds = Credentials{Address: "ftp.example.com", Username: "site", Password: "hunter2"}

func TestPublishUploadsTree(t *testing.T) {
	for _, parallel := range []int{1, 3, 10} {
		t.Run(fmt.Sprintf("parallel %d", parallel), func(t *testing.T) {
			server := newFakeServer()
			root := prodTree(t)

			p := NewPublisher(deployConfig(parallel), WithDialer(server.dial))
			result, err := p.Publish(context.Background(), root, creds)
			require.NoError(t, err)

			assert.Equal(t, []string{"css/main.css", "fonts/sub/a.woff2", "img/photo.webp", "index.html", "js/app.js"}, result.Uploaded)
			assert.Empty(t, result.Failed)
			assert.Equal(t, "a{color:red}", server.stored["/www/test/css/main.css"])
			assert.Equal(t, "font", server.stored["/www/test/fonts/sub/a.woff2"])
			assert.Len(t, server.stored, 5)

			assert.LessOrEqual(t, server.sessions, parallel)
			assert.Equal(t, server.sessions, server.quits)
		})
	}
}

func TestPublishCreatesParentsFirst(t *testing.T) {
	server := newFakeServer()
	p := NewPublisher(deployConfig(2), WithDialer(server.dial))
	_, err := p.Publish(context.Background(), prodTree(t), creds)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"/www",
		"/www/test",
		"/www/test/css",
		"/www/test/fonts",
		"/www/test/img",
		"/www/test/js",
		"/www/test/fonts/sub",
	}, server.dirs)
}

func TestPublishReportsFailedFiles(t *testing.T) {
	server := newFakeServer()
	server.failOn = "app.js"

	p := NewPublisher(deployConfig(4), WithDialer(server.dial))
	result, err := p.Publish(context.Background(), prodTree(t), creds)
	require.Error(t, err)

	assert.True(t, errors.IsPublishError(err))
	assert.Equal(t, []string{"js/app.js"}, errors.FailedFiles(err))
	assert.Equal(t, []string{"js/app.js"}, result.Failed)
	assert.Len(t, result.Uploaded, 4)
	assert.Contains(t, err.Error(), "553")
}

func TestPublishConnectFailure(t *testing.T) {
	server := newFakeServer()
	server.dialErr = fmt.Errorf("dial tcp: connection refused")
	root := prodTree(t)

	p := NewPublisher(deployConfig(4), WithDialer(server.dial))
	result, err := p.Publish(context.Background(), root, creds)
	require.Error(t, err)

	assert.True(t, errors.IsPublishError(err))
	assert.Len(t, errors.FailedFiles(err), 5)
	assert.Empty(t, result.Uploaded)

	// The local tree is left alone.
	assert.Len(t, testutils.ListFiles(t, root), 5)
}

func TestPublishWorkersThatCannotConnect(t *testing.T) {
	server := newFakeServer()
	server.maxDials = 1

	p := NewPublisher(deployConfig(5), WithDialer(server.dial))
	result, err := p.Publish(context.Background(), prodTree(t), creds)
	require.NoError(t, err)
	assert.Len(t, result.Uploaded, 5)
	assert.Equal(t, 1, server.sessions)
}

func TestPublishCanceled(t *testing.T) {
	server := newFakeServer()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewPublisher(deployConfig(2), WithDialer(server.dial))
	result, err := p.Publish(ctx, prodTree(t), creds)
	require.Error(t, err)
	assert.Len(t, result.Failed, 5)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPublishEmptyRoot(t *testing.T) {
	server := newFakeServer()
	p := NewPublisher(deployConfig(2), WithDialer(server.dial))

	result, err := p.Publish(context.Background(), filepath.Join(t.TempDir(), "missing"), creds)
	require.NoError(t, err)
	assert.Empty(t, result.Uploaded)
	assert.Zero(t, server.sessions)
}

func TestPublishUnreachableHost(t *testing.T) {
	if testing.Short() {
		t.Skip("dials the network")
	}

	cfg := deployConfig(2)
	cfg.Timeout = 500 * time.Millisecond
	p := NewPublisher(cfg)

	root := prodTree(t)
	_, err := p.Publish(context.Background(), root, Credentials{Address: "127.0.0.1:1", Username: "u"})
	require.Error(t, err)
	assert.True(t, errors.IsPublishError(err))
	assert.Len(t, errors.FailedFiles(err), 5)
	assert.Len(t, testutils.ListFiles(t, root), 5)
}

func TestRemoteDirs(t *testing.T) {
	dirs := remoteDirs("/", []string{"index.html", "a/b/c.txt", "a/d.txt"})
	assert.Equal(t, []string{"/a", "/a/b"}, dirs)
	assert.True(t, sort.SliceIsSorted(dirs, func(i, j int) bool { return len(dirs[i]) < len(dirs[j]) }))
}

func TestLoadCredentials(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    Credentials
		wantErr bool
	}{
		{
			name:    "address key",
			content: `{"address":"ftp.example.com","username":"site","password":"pw"}`,
			want:    Credentials{Address: "ftp.example.com", Username: "site", Password: "pw"},
		},
		{
			name:    "legacy adress key",
			content: `{"adress":"ftp.example.com:2121","username":"site","password":"pw"}`,
			want:    Credentials{Address: "ftp.example.com:2121", Username: "site", Password: "pw"},
		},
		{
			name:    "address wins over legacy",
			content: `{"address":"new.example.com","adress":"old.example.com","username":"site"}`,
			want:    Credentials{Address: "new.example.com", Username: "site"},
		},
		{name: "missing username", content: `{"address":"ftp.example.com"}`, wantErr: true},
		{name: "not json", content: `address: x`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "ftp.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			got, err := LoadCredentials(path)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsConfigError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := LoadCredentials(filepath.Join(t.TempDir(), "none.json"))
	assert.True(t, errors.IsConfigError(err))
}

func TestCredentialsNeverLeakPassword(t *testing.T) {
	assert.NotContains(t, creds.String(), "hunter2")
	assert.NotContains(t, fmt.Sprintf("%v", creds), "hunter2")

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	logger.Info("deploy", "credentials", creds)
	assert.NotContains(t, buf.String(), "hunter2")
	assert.Contains(t, buf.String(), "ftp.example.com")
}

func TestHostPort(t *testing.T) {
	tests := map[string]string{
		"ftp.example.com":       "ftp.example.com:21",
		"ftp.example.com:2121":  "ftp.example.com:2121",
		"ftp://ftp.example.com/": "ftp.example.com:21",
		"::1":                   "[::1]:21",
	}
	for in, want := range tests {
		assert.Equal(t, want, Credentials{Address: in}.HostPort(), in)
	}
}
