package build

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/sitesmith/internal/errors"
	"github.com/conneroisu/sitesmith/internal/logging"
	"github.com/conneroisu/sitesmith/internal/metrics"
	"github.com/conneroisu/sitesmith/internal/paths"
	"github.com/conneroisu/sitesmith/internal/transform"
)

// Stage reads the source files of one asset class, applies the chain of the
// requested mode and writes the results below that mode's output root.
type Stage struct {
	spec     AssetClassSpec
	plan     paths.Plan
	logger   logging.Logger
	recorder metrics.Recorder
}

// StageResult describes one stage run.
type StageResult struct {
	Class    Class
	Files    int
	Duration time.Duration
	Err      error
}

// NewStage creates a stage for spec.
func NewStage(spec AssetClassSpec, plan paths.Plan, logger logging.Logger, recorder metrics.Recorder) *Stage {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Stage{
		spec:     spec,
		plan:     plan,
		logger:   logger.WithComponent("stage").With("stage", string(spec.Class)),
		recorder: recorder,
	}
}

// Class returns the asset class the stage builds.
func (s *Stage) Class() Class { return s.spec.Class }

// Spec returns the stage's mode table.
func (s *Stage) Spec() AssetClassSpec { return s.spec }

// Run processes every matched file. It settles once all outputs are written.
func (s *Stage) Run(ctx context.Context, mode Mode) error {
	return s.Execute(ctx, mode).Err
}

// Execute runs the stage and reports what it did.
func (s *Stage) Execute(ctx context.Context, mode Mode) StageResult {
	result := StageResult{Class: s.spec.Class}
	if err := mode.Validate(); err != nil {
		result.Err = err
		return result
	}

	start := time.Now()
	source := s.plan.Source()
	output := s.plan.Resolve(mode.Root())

	var written atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for _, branch := range s.spec.Branches {
		g.Go(func() error {
			n, err := s.runBranch(gctx, mode, branch, source, output)
			written.Add(int64(n))
			return err
		})
	}
	err := g.Wait()

	result.Files = int(written.Load())
	result.Duration = time.Since(start)
	result.Err = s.stageError(err)

	s.recorder.ObserveStageDuration(string(s.spec.Class), mode.String(), result.Duration)
	s.recorder.IncStageResult(string(s.spec.Class), metrics.ResultOf(result.Err, ctx.Err() != nil))

	if result.Err != nil {
		s.logger.Error(ctx, result.Err, "Stage failed", "mode", mode.String())
	} else {
		s.logger.Info(ctx, "Stage completed",
			"mode", mode.String(),
			"files", result.Files,
			"duration_ms", result.Duration.Milliseconds(),
		)
	}

	return result
}

func (s *Stage) runBranch(ctx context.Context, mode Mode, branch Branch, source, output paths.FolderSet) (int, error) {
	dir := branch.Source.Folder(source)

	assets, err := readAssets(dir, branch.Source.Patterns)
	if err != nil {
		return 0, err
	}
	if len(assets) == 0 {
		s.logger.Debug(ctx, "No source files", "branch", branch.Name, "dir", dir)
		return 0, nil
	}

	chain := branch.Chains[mode]
	s.logger.Debug(ctx, "Running branch",
		"branch", branch.Name,
		"files", len(assets),
		"chain", chain.Names(),
	)

	out, err := chain.Apply(ctx, assets)
	if err != nil {
		return 0, err
	}

	outDir := branch.Output(output)
	for _, asset := range out {
		if err := writeAsset(outDir, asset); err != nil {
			return 0, err
		}
	}
	return len(out), nil
}

func (s *Stage) stageError(err error) error {
	if err == nil {
		return nil
	}
	var se *errors.SiteError
	if errors.As(err, &se) && se.Stage == "" {
		se.WithStage(string(s.spec.Class))
	}
	return err
}

// readAssets loads every file below dir matching one of patterns. A missing
// directory matches nothing.
func readAssets(dir string, patterns []string) ([]*transform.Asset, error) {
	matches, err := match(dir, patterns)
	if err != nil {
		return nil, err
	}

	assets := make([]*transform.Asset, 0, len(matches))
	for _, rel := range matches {
		file := filepath.Join(dir, filepath.FromSlash(rel))
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, errors.WrapIO(err, errors.ErrCodeReadFailed, "failed to read source file", file)
		}
		assets = append(assets, &transform.Asset{Path: rel, SourcePath: file, Contents: data})
	}
	return assets, nil
}

func match(dir string, patterns []string) ([]string, error) {
	fsys := os.DirFS(dir)
	seen := make(map[string]bool)
	var matches []string
	for _, pattern := range patterns {
		found, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "bad glob pattern "+pattern).WithFile(dir)
		}
		for _, rel := range found {
			if !seen[rel] {
				seen[rel] = true
				matches = append(matches, rel)
			}
		}
	}
	sort.Strings(matches)
	return matches, nil
}

func writeAsset(dir string, asset *transform.Asset) error {
	file := filepath.Join(dir, filepath.FromSlash(path.Clean(asset.Path)))
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return errors.WrapIO(err, errors.ErrCodeWriteFailed, "failed to create output folder", filepath.Dir(file))
	}
	if err := os.WriteFile(file, asset.Contents, 0o644); err != nil {
		return errors.WrapIO(err, errors.ErrCodeWriteFailed, "failed to write output file", file)
	}
	return nil
}
