package services

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/sitesmith/internal/build"
	"github.com/conneroisu/sitesmith/internal/errors"
	"github.com/conneroisu/sitesmith/internal/paths"
	"github.com/conneroisu/sitesmith/internal/server"
	"github.com/conneroisu/sitesmith/internal/watcher"
)

// ServeService runs the dev build, the watcher and optionally the preview
// server until the context ends.
type ServeService struct {
	container *ServiceContainer
}

// NewServeService creates a new serve service
func NewServeService(container *ServiceContainer) *ServeService {
	return &ServeService{container: container}
}

// ServeOptions contains options for the serve process
type ServeOptions struct {
	// Preview starts the live-reload preview server on the dev root.
	Preview bool
	// Ready, when set, receives the preview URL (or the empty string without
	// a preview server) once watching has started.
	Ready func(url string)
}

// Serve builds in dev mode and then re-runs stages as sources change. A
// failing initial build is reported and the loop keeps running so the next
// save can fix it.
func (s *ServeService) Serve(ctx context.Context, opts ServeOptions) error {
	cfg := s.container.Config()
	logger := s.container.Logger()

	pipeline, err := s.container.Pipeline()
	if err != nil {
		return err
	}
	plan := pipeline.Plan()

	_, buildErr := pipeline.Build(ctx, build.ModeDev)
	if buildErr != nil {
		if errors.IsConfigError(buildErr) {
			return buildErr
		}
		logger.Warn(ctx, buildErr, "Initial build failed, watching for fixes")
	}

	var preview *server.PreviewServer
	loopOpts := []watcher.Option{
		watcher.WithLogger(logger),
		watcher.WithRecorder(s.container.Recorder()),
	}
	if opts.Preview {
		preview, err = server.New(cfg, plan.Resolve(paths.RootDev).Main,
			server.WithLogger(logger),
			server.WithRegistry(s.container.Registry()),
			server.WithBuildMetrics(pipeline.Metrics()),
		)
		if err != nil {
			return err
		}
		loopOpts = append(loopOpts, watcher.WithNotifier(preview))
	}

	loop, err := watcher.NewLoop(plan.Source().Main, cfg.Watch.Debounce, Bindings(pipeline, build.ModeDev), loopOpts...)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if err := loop.Start(gctx); err != nil {
		return err
	}

	if preview != nil {
		g.Go(func() error { return preview.Start(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		loop.Wait()
		return nil
	})

	if opts.Ready != nil {
		url := ""
		if preview != nil {
			select {
			case <-preview.Ready():
				url = preview.URL()
			case <-gctx.Done():
			}
		}
		opts.Ready(url)
	}

	return g.Wait()
}

// Bindings maps every stage's watch globs to a re-run of that stage in mode.
func Bindings(pipeline *build.Pipeline, mode build.Mode) []watcher.Binding {
	stages := pipeline.Stages()
	bindings := make([]watcher.Binding, 0, len(stages))
	for _, stage := range stages {
		class := stage.Class()
		bindings = append(bindings, watcher.Binding{
			Name:     string(class),
			Patterns: stage.Spec().Watch,
			Run: func(ctx context.Context) error {
				return pipeline.RunStage(ctx, mode, class)
			},
		})
	}
	return bindings
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
