// Package services holds the use cases behind the CLI commands: building,
// watching, previewing, publishing and project scaffolding.
package services

import (
	"sync"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/conneroisu/sitesmith/internal/build"
	"github.com/conneroisu/sitesmith/internal/config"
	"github.com/conneroisu/sitesmith/internal/deploy"
	"github.com/conneroisu/sitesmith/internal/logging"
	"github.com/conneroisu/sitesmith/internal/metrics"
	"github.com/conneroisu/sitesmith/internal/paths"
)

// ServiceContainer creates the shared pieces of one process lazily: the folder
// plan, the pipeline and its metrics registry.
type ServiceContainer struct {
	config   *config.Config
	logger   logging.Logger
	registry *prom.Registry
	recorder *metrics.PrometheusRecorder
	toolbox  *build.Toolbox
	dialer   deploy.Dialer

	once     sync.Once
	plan     paths.Plan
	pipeline *build.Pipeline
	initErr  error
}

// ContainerOption configures a ServiceContainer.
type ContainerOption func(*ServiceContainer)

// WithToolbox replaces the transformers built from the configuration.
func WithToolbox(tools *build.Toolbox) ContainerOption {
	return func(c *ServiceContainer) { c.toolbox = tools }
}

// WithDialer replaces the FTP dialer used by deploy.
func WithDialer(d deploy.Dialer) ContainerOption {
	return func(c *ServiceContainer) { c.dialer = d }
}

// NewServiceContainer creates a container for cfg.
func NewServiceContainer(cfg *config.Config, logger logging.Logger, opts ...ContainerOption) *ServiceContainer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	reg := prom.NewRegistry()
	c := &ServiceContainer{
		config:   cfg,
		logger:   logger,
		registry: reg,
		recorder: metrics.NewPrometheusRecorder(reg),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the configuration.
func (c *ServiceContainer) Config() *config.Config { return c.config }

// Logger returns the process logger.
func (c *ServiceContainer) Logger() logging.Logger { return c.logger }

// Registry returns the metrics registry served by the preview server.
func (c *ServiceContainer) Registry() *prom.Registry { return c.registry }

// Recorder returns the metrics recorder.
func (c *ServiceContainer) Recorder() metrics.Recorder { return c.recorder }

// Plan returns the validated folder plan.
func (c *ServiceContainer) Plan() (paths.Plan, error) {
	if err := c.initialize(); err != nil {
		return paths.Plan{}, err
	}
	return c.plan, nil
}

// Pipeline returns the pipeline, building it on first use.
func (c *ServiceContainer) Pipeline() (*build.Pipeline, error) {
	if err := c.initialize(); err != nil {
		return nil, err
	}
	return c.pipeline, nil
}

// Publisher returns a publisher for the deploy configuration.
func (c *ServiceContainer) Publisher() *deploy.Publisher {
	opts := []deploy.Option{
		deploy.WithLogger(c.logger),
		deploy.WithRecorder(c.recorder),
	}
	if c.dialer != nil {
		opts = append(opts, deploy.WithDialer(c.dialer))
	}
	return deploy.NewPublisher(c.config.Deploy, opts...)
}

func (c *ServiceContainer) initialize() error {
	c.once.Do(func() {
		plan, err := c.config.Plan()
		if err != nil {
			c.initErr = err
			return
		}

		tools := c.toolbox
		if tools == nil {
			tools, err = build.NewToolbox(c.config, plan)
			if err != nil {
				c.initErr = err
				return
			}
		}

		specs := build.NewSpecTable(tools, build.OptionsFromConfig(c.config))
		c.plan = plan
		c.pipeline = build.NewPipeline(plan, specs,
			build.WithLogger(c.logger),
			build.WithRecorder(c.recorder),
		)
	})
	return c.initErr
}
