package watcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/conneroisu/sitesmith/internal/errors"
	"github.com/conneroisu/sitesmith/internal/logging"
	"github.com/conneroisu/sitesmith/internal/metrics"
)

// Binding ties source globs to the stage they re-run. Patterns are slash
// separated and relative to the watched root.
type Binding struct {
	Name     string
	Patterns []string
	Run      func(ctx context.Context) error
}

// Notifier is told about every finished re-run.
type Notifier interface {
	Reload(name string)
	Failed(name string, err error)
}

type nopNotifier struct{}

func (nopNotifier) Reload(string)        {}
func (nopNotifier) Failed(string, error) {}

// Loop watches a source root and re-runs the bindings whose patterns match
// changed files.
type Loop struct {
	root     string
	debounce time.Duration
	runners  []*runner
	notifier Notifier
	logger   logging.Logger
	recorder metrics.Recorder
	handler  *errors.ErrorHandler
	wg       sync.WaitGroup
}

// Option configures a Loop.
type Option func(*Loop)

// WithNotifier sets the reload notifier.
func WithNotifier(n Notifier) Option {
	return func(l *Loop) { l.notifier = n }
}

// WithLogger sets the loop logger.
func WithLogger(logger logging.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(recorder metrics.Recorder) Option {
	return func(l *Loop) { l.recorder = recorder }
}

// NewLoop creates a loop over root. Nothing is watched until Start.
func NewLoop(root string, debounce time.Duration, bindings []Binding, opts ...Option) (*Loop, error) {
	for _, b := range bindings {
		for _, pattern := range b.Patterns {
			if !doublestar.ValidatePattern(pattern) {
				return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "bad watch pattern "+pattern).
					WithContext("binding", b.Name)
			}
		}
	}

	l := &Loop{
		root:     filepath.Clean(root),
		debounce: debounce,
		notifier: nopNotifier{},
		logger:   logging.NewNopLogger(),
		recorder: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.WithComponent("watch")
	l.handler = errors.NewErrorHandler(l.logger)

	for _, b := range bindings {
		l.runners = append(l.runners, &runner{binding: b, loop: l})
	}
	return l, nil
}

// Start watches the root recursively until ctx is cancelled. It returns once
// the watch is set up.
func (l *Loop) Start(ctx context.Context) error {
	sw, err := NewSourceWatcher(l.debounce, l.logger)
	if err != nil {
		return errors.NewInternalError(errors.ErrCodeInternalError, "failed to create file watcher", err)
	}
	if err := sw.AddTree(l.root); err != nil {
		_ = sw.Close()
		return errors.WrapIO(err, errors.ErrCodeReadFailed, "failed to watch source folder", l.root)
	}

	go func() {
		_ = sw.Run(ctx, func(changed []string) {
			l.Trigger(ctx, changed)
		})
	}()

	l.logger.Info(ctx, "Watching for changes", "root", l.root, "bindings", len(l.runners))
	return nil
}

// Trigger re-runs every binding matching one of the changed paths.
func (l *Loop) Trigger(ctx context.Context, changed []string) {
	for _, r := range l.runners {
		for _, path := range changed {
			if l.matches(r.binding, path) {
				l.logger.Debug(ctx, "Change detected", "binding", r.binding.Name, "path", path)
				r.trigger(ctx)
				break
			}
		}
	}
}

// Wait blocks until no re-run is in flight.
func (l *Loop) Wait() {
	l.wg.Wait()
}

func (l *Loop) matches(b Binding, path string) bool {
	rel, err := filepath.Rel(l.root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range b.Patterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// runner serializes the re-runs of one binding. A trigger during a run sets
// a single pending flag, so any number of them cause one more run.
type runner struct {
	binding Binding
	loop    *Loop
	mu      sync.Mutex
	running bool
	pending bool
}

func (r *runner) trigger(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.pending = true
		r.mu.Unlock()
		return
	}
	r.running = true
	r.mu.Unlock()

	r.loop.wg.Add(1)
	go r.loop.drain(ctx, r)
}

func (l *Loop) drain(ctx context.Context, r *runner) {
	defer l.wg.Done()
	for {
		l.runOnce(ctx, r.binding)

		r.mu.Lock()
		if !r.pending || ctx.Err() != nil {
			r.running = false
			r.pending = false
			r.mu.Unlock()
			return
		}
		r.pending = false
		r.mu.Unlock()
	}
}

func (l *Loop) runOnce(ctx context.Context, b Binding) {
	perf := logging.StartOperation(l.logger.With("binding", b.Name), "rebuild")
	err := b.Run(ctx)
	l.recorder.IncWatchRebuild(b.Name, metrics.ResultOf(err, ctx.Err() != nil))

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		l.handler.Handle(ctx, err, "binding", b.Name, "operation", "rebuild")
		l.notifier.Failed(b.Name, err)
		return
	}
	perf.End(ctx)
	l.notifier.Reload(b.Name)
}
