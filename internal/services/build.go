package services

import (
	"context"

	"github.com/conneroisu/sitesmith/internal/build"
)

// BuildService runs whole builds, single stages and cleanups.
type BuildService struct {
	container *ServiceContainer
}

// NewBuildService creates a build service
func NewBuildService(container *ServiceContainer) *BuildService {
	return &BuildService{container: container}
}

// Build cleans the mode's output and runs every stage.
func (s *BuildService) Build(ctx context.Context, mode build.Mode) (*build.BuildResult, error) {
	if err := mode.Validate(); err != nil {
		return nil, err
	}
	pipeline, err := s.container.Pipeline()
	if err != nil {
		return nil, err
	}
	return pipeline.Build(ctx, mode)
}

// RunStage runs the stage of one class without cleaning first.
func (s *BuildService) RunStage(ctx context.Context, mode build.Mode, class build.Class) error {
	if err := mode.Validate(); err != nil {
		return err
	}
	pipeline, err := s.container.Pipeline()
	if err != nil {
		return err
	}

	logger := s.container.Logger().With("stage", string(class), "mode", mode.String())
	logger.Info(ctx, "Running stage")
	if err := pipeline.RunStage(ctx, mode, class); err != nil {
		logger.Error(ctx, err, "Stage failed")
		return err
	}
	logger.Info(ctx, "Stage completed")
	return nil
}

// Clean removes the earlier output of mode.
func (s *BuildService) Clean(ctx context.Context, mode build.Mode) error {
	if err := mode.Validate(); err != nil {
		return err
	}
	pipeline, err := s.container.Pipeline()
	if err != nil {
		return err
	}
	return pipeline.Clean(ctx, mode)
}
