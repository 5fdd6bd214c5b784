package services

import (
	"context"

	"github.com/conneroisu/sitesmith/internal/build"
	"github.com/conneroisu/sitesmith/internal/deploy"
	"github.com/conneroisu/sitesmith/internal/paths"
)

// DeployService builds for production and publishes the result.
type DeployService struct {
	container *ServiceContainer
}

// NewDeployService creates a deploy service
func NewDeployService(container *ServiceContainer) *DeployService {
	return &DeployService{container: container}
}

// DeployResult pairs the production build with the publish outcome.
type DeployResult struct {
	Build   *build.BuildResult
	Publish *deploy.Result
}

// Deploy reads the credentials, runs a clean prod build and uploads the prod
// root. Credentials are checked before building so a missing file fails fast.
func (s *DeployService) Deploy(ctx context.Context) (*DeployResult, error) {
	cfg := s.container.Config()

	creds, err := deploy.LoadCredentials(cfg.Deploy.Credentials)
	if err != nil {
		return nil, err
	}

	result := &DeployResult{}
	result.Build, err = NewBuildService(s.container).Build(ctx, build.ModeProd)
	if err != nil {
		return result, err
	}

	plan, err := s.container.Plan()
	if err != nil {
		return result, err
	}

	result.Publish, err = s.container.Publisher().Publish(ctx, plan.Resolve(paths.RootProd).Main, creds)
	return result, err
}
