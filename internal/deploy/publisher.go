package deploy

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/sitesmith/internal/config"
	"github.com/conneroisu/sitesmith/internal/errors"
	"github.com/conneroisu/sitesmith/internal/logging"
	"github.com/conneroisu/sitesmith/internal/metrics"
)

// Publisher uploads a local tree over several parallel sessions.
type Publisher struct {
	dialer    Dialer
	remoteDir string
	parallel  int
	logger    logging.Logger
	recorder  metrics.Recorder
}

// Result summarizes one publish run.
type Result struct {
	Uploaded []string
	Failed   []string
	Duration time.Duration
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithDialer replaces the FTP dialer.
func WithDialer(d Dialer) Option {
	return func(p *Publisher) { p.dialer = d }
}

// WithLogger sets the publisher logger.
func WithLogger(logger logging.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(recorder metrics.Recorder) Option {
	return func(p *Publisher) {
		if recorder != nil {
			p.recorder = recorder
		}
	}
}

// NewPublisher creates a publisher for the deploy section of the config.
func NewPublisher(cfg config.DeployConfig, opts ...Option) *Publisher {
	p := &Publisher{
		dialer:    FTPDialer(cfg.Timeout),
		remoteDir: cfg.RemoteDir,
		parallel:  cfg.Parallel,
		logger:    logging.NewNopLogger(),
		recorder:  metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.parallel < 1 {
		p.parallel = 1
	}
	if p.remoteDir == "" {
		p.remoteDir = "/"
	}
	p.logger = p.logger.WithComponent("deploy")
	return p
}

// Publish uploads every file under root to the remote folder, keeping the
// relative layout. Any failed transfer makes the whole publish fail with a
// publish error naming each failed file.
func (p *Publisher) Publish(ctx context.Context, root string, creds Credentials) (*Result, error) {
	start := time.Now()
	result := &Result{}

	files, err := doublestar.Glob(os.DirFS(root), "**", doublestar.WithFilesOnly())
	if err != nil {
		return result, errors.WrapIO(err, errors.ErrCodeReadFailed, "failed to list publish root", root)
	}
	sort.Strings(files)

	if len(files) == 0 {
		p.logger.Warn(ctx, nil, "Nothing to publish", "root", root)
		return result, nil
	}

	p.logger.Info(ctx, "Publishing", "files", len(files), "remote_dir", p.remoteDir, "credentials", creds)

	first, err := p.dialer(ctx, creds)
	if err != nil {
		result.Failed = files
		result.Duration = time.Since(start)
		p.recorder.AddPublishedFiles(metrics.ResultFailed, len(files))
		return result, errors.NewPublishError(
			fmt.Sprintf("could not connect, %d files not published", len(files)), files, err)
	}

	for _, dir := range remoteDirs(p.remoteDir, files) {
		// Existing folders answer with an error the server does not distinguish.
		if err := first.MakeDir(dir); err != nil {
			p.logger.Debug(ctx, "MakeDir", "dir", dir, "error", err.Error())
		}
	}

	jobs := make(chan string, len(files))
	for _, f := range files {
		jobs <- f
	}
	close(jobs)

	var (
		mu       sync.Mutex
		failures []error
	)
	fail := func(file string, err error) {
		mu.Lock()
		defer mu.Unlock()
		result.Failed = append(result.Failed, file)
		failures = append(failures, fmt.Errorf("%s: %w", file, err))
	}
	done := func(file string) {
		mu.Lock()
		defer mu.Unlock()
		result.Uploaded = append(result.Uploaded, file)
	}

	workers := p.parallel
	if workers > len(files) {
		workers = len(files)
	}

	var g errgroup.Group
	for i := 0; i < workers; i++ {
		conn := first
		g.Go(func() error {
			if conn == nil {
				c, err := p.dialer(ctx, creds)
				if err != nil {
					p.logger.Warn(ctx, err, "Upload worker could not connect")
					return nil
				}
				conn = c
			}
			defer conn.Quit()

			for file := range jobs {
				if err := ctx.Err(); err != nil {
					fail(file, err)
					continue
				}
				if err := p.upload(conn, root, file); err != nil {
					p.logger.Warn(ctx, err, "Upload failed", "file", file)
					fail(file, err)
					continue
				}
				p.logger.Debug(ctx, "Uploaded", "file", file)
				done(file)
			}
			return nil
		})
		first = nil
	}
	_ = g.Wait()

	// Files left behind when every worker failed to connect.
	for file := range jobs {
		fail(file, fmt.Errorf("no upload session available"))
	}

	sort.Strings(result.Uploaded)
	sort.Strings(result.Failed)
	result.Duration = time.Since(start)

	p.recorder.AddPublishedFiles(metrics.ResultSuccess, len(result.Uploaded))
	p.recorder.AddPublishedFiles(metrics.ResultFailed, len(result.Failed))

	if len(result.Failed) > 0 {
		return result, errors.NewPublishError(
			fmt.Sprintf("%d of %d files failed to publish", len(result.Failed), len(files)),
			result.Failed, errors.Join(failures...))
	}

	p.logger.Info(ctx, "Published", "files", len(result.Uploaded), "duration_ms", result.Duration.Milliseconds())
	return result, nil
}

func (p *Publisher) upload(conn Conn, root, file string) error {
	f, err := os.Open(filepath.Join(root, filepath.FromSlash(file)))
	if err != nil {
		return err
	}
	defer f.Close()

	return conn.Stor(path.Join(p.remoteDir, file), f)
}

// remoteDirs lists every remote folder the files need, parents first.
func remoteDirs(base string, files []string) []string {
	seen := make(map[string]bool)
	var dirs []string
	for _, f := range files {
		for dir := path.Dir(path.Join(base, f)); dir != "." && dir != "/"; dir = path.Dir(dir) {
			if seen[dir] {
				break
			}
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	sort.Slice(dirs, func(i, j int) bool {
		di, dj := strings.Count(dirs[i], "/"), strings.Count(dirs[j], "/")
		if di != dj {
			return di < dj
		}
		return dirs[i] < dirs[j]
	})
	return dirs
}
