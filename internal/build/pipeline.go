package build

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/sitesmith/internal/errors"
	"github.com/conneroisu/sitesmith/internal/logging"
	"github.com/conneroisu/sitesmith/internal/metrics"
	"github.com/conneroisu/sitesmith/internal/paths"
)

// Pipeline composes the cleaner and one stage per asset class.
type Pipeline struct {
	plan     paths.Plan
	stages   []*Stage
	byClass  map[Class]*Stage
	cleaner  *Cleaner
	logger   logging.Logger
	recorder metrics.Recorder
	metrics  *BuildMetrics
}

// BuildResult describes one clean-and-compile run.
type BuildResult struct {
	ID       string
	Mode     Mode
	Duration time.Duration
	Stages   []StageResult
}

// Files returns the number of files written by every stage.
func (r *BuildResult) Files() int {
	total := 0
	for _, s := range r.Stages {
		total += s.Files
	}
	return total
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(logger logging.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(recorder metrics.Recorder) Option {
	return func(p *Pipeline) { p.recorder = recorder }
}

// NewPipeline creates a pipeline running specs against plan.
func NewPipeline(plan paths.Plan, specs []AssetClassSpec, opts ...Option) *Pipeline {
	p := &Pipeline{
		plan:     plan,
		byClass:  make(map[Class]*Stage, len(specs)),
		logger:   logging.NewNopLogger(),
		recorder: metrics.NoopRecorder{},
		metrics:  NewBuildMetrics(),
	}
	for _, opt := range opts {
		opt(p)
	}

	for _, spec := range specs {
		stage := NewStage(spec, plan, p.logger, p.recorder)
		p.stages = append(p.stages, stage)
		p.byClass[spec.Class] = stage
	}
	p.cleaner = NewCleaner(specs, plan, p.logger)
	p.logger = p.logger.WithComponent("pipeline")

	return p
}

// Plan returns the folder plan the pipeline builds.
func (p *Pipeline) Plan() paths.Plan { return p.plan }

// Stages returns the stages in pipeline order.
func (p *Pipeline) Stages() []*Stage { return p.stages }

// Stage returns the stage of class.
func (p *Pipeline) Stage(class Class) (*Stage, error) {
	stage, ok := p.byClass[class]
	if !ok {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, fmt.Sprintf("unknown asset class %q", class))
	}
	return stage, nil
}

// Cleaner returns the pipeline's cleaner.
func (p *Pipeline) Cleaner() *Cleaner { return p.cleaner }

// Metrics returns the run statistics collected so far.
func (p *Pipeline) Metrics() *BuildMetrics { return p.metrics }

// Clean removes the earlier output of mode.
func (p *Pipeline) Clean(ctx context.Context, mode Mode) error {
	return p.cleaner.Clean(ctx, mode)
}

// RunStage runs the stage of one asset class.
func (p *Pipeline) RunStage(ctx context.Context, mode Mode, class Class) error {
	if err := mode.Validate(); err != nil {
		return err
	}
	stage, err := p.Stage(class)
	if err != nil {
		return err
	}
	result := stage.Execute(ctx, mode)
	p.metrics.RecordStage(result)
	return result.Err
}

// Compile runs every stage concurrently and waits for all of them. Every
// stage failure is reported.
func (p *Pipeline) Compile(ctx context.Context, mode Mode) ([]StageResult, error) {
	if err := mode.Validate(); err != nil {
		return nil, err
	}

	results := make([]StageResult, len(p.stages))
	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	for i, stage := range p.stages {
		g.Go(func() error {
			result := stage.Execute(ctx, mode)
			results[i] = result
			p.metrics.RecordStage(result)
			if result.Err != nil {
				mu.Lock()
				errs = append(errs, result.Err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return results, errors.Join(errs...)
}

// Build cleans the output root of mode and then compiles every stage. The
// cleaner settles before any stage starts writing.
func (p *Pipeline) Build(ctx context.Context, mode Mode) (*BuildResult, error) {
	if err := mode.Validate(); err != nil {
		return nil, err
	}

	result := &BuildResult{ID: uuid.NewString(), Mode: mode}
	ctx = logging.WithBuildID(ctx, result.ID)
	start := time.Now()

	p.logger.Info(ctx, "Build started", "mode", mode.String())

	err := p.Clean(ctx, mode)
	if err == nil {
		result.Stages, err = p.Compile(ctx, mode)
	}
	result.Duration = time.Since(start)

	p.recorder.ObserveBuildDuration(mode.String(), result.Duration)
	p.recorder.IncBuildOutcome(mode.String(), metrics.ResultOf(err, ctx.Err() != nil))
	p.metrics.RecordBuild(result, err)

	if err != nil {
		p.logger.Error(ctx, err, "Build failed", "mode", mode.String(), "duration_ms", result.Duration.Milliseconds())
		return result, err
	}

	p.logger.Info(ctx, "Build completed",
		"mode", mode.String(),
		"files", result.Files(),
		"duration_ms", result.Duration.Milliseconds(),
	)
	return result, nil
}
