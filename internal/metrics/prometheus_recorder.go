package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "sitesmith"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	stageDuration  *prom.HistogramVec
	stageResults   *prom.CounterVec
	buildDuration  *prom.HistogramVec
	buildOutcome   *prom.CounterVec
	watchRebuilds  *prom.CounterVec
	publishedFiles *prom.CounterVec
}

// NewPrometheusRecorder constructs the metrics and registers them on reg. A
// nil registry gets a fresh private one.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual build stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage", "mode"}),
		stageResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"stage", "result"}),
		buildDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Total build duration including cleanup",
			Buckets:   prom.DefBuckets,
		}, []string{"mode"}),
		buildOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by mode and final status",
		}, []string{"mode", "result"}),
		watchRebuilds: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "watch_rebuilds_total",
			Help:      "Stage re-runs triggered by file changes",
		}, []string{"binding", "result"}),
		publishedFiles: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "publish_files_total",
			Help:      "Files transferred by deploy, by outcome",
		}, []string{"result"}),
	}
	reg.MustRegister(pr.stageDuration, pr.stageResults, pr.buildDuration, pr.buildOutcome, pr.watchRebuilds, pr.publishedFiles)
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage, mode string, d time.Duration) {
	if p == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage, mode).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	if p == nil {
		return
	}
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveBuildDuration(mode string, d time.Duration) {
	if p == nil {
		return
	}
	p.buildDuration.WithLabelValues(mode).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncBuildOutcome(mode string, result ResultLabel) {
	if p == nil {
		return
	}
	p.buildOutcome.WithLabelValues(mode, string(result)).Inc()
}

func (p *PrometheusRecorder) IncWatchRebuild(binding string, result ResultLabel) {
	if p == nil {
		return
	}
	p.watchRebuilds.WithLabelValues(binding, string(result)).Inc()
}

func (p *PrometheusRecorder) AddPublishedFiles(result ResultLabel, n int) {
	if p == nil || n <= 0 {
		return
	}
	p.publishedFiles.WithLabelValues(string(result)).Add(float64(n))
}
