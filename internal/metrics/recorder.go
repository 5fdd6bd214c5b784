package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultFailed   ResultLabel = "failed"
	ResultCanceled ResultLabel = "canceled"
)

// Recorder defines observability hooks for stages, builds, watch re-runs and
// publishing.
type Recorder interface {
	ObserveStageDuration(stage, mode string, d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	ObserveBuildDuration(mode string, d time.Duration)
	IncBuildOutcome(mode string, result ResultLabel)
	IncWatchRebuild(binding string, result ResultLabel)
	AddPublishedFiles(result ResultLabel, n int)
}

// NoopRecorder is a Recorder that does nothing.
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, string, time.Duration) {}
func (NoopRecorder) IncStageResult(string, ResultLabel)                 {}
func (NoopRecorder) ObserveBuildDuration(string, time.Duration)         {}
func (NoopRecorder) IncBuildOutcome(string, ResultLabel)                {}
func (NoopRecorder) IncWatchRebuild(string, ResultLabel)                {}
func (NoopRecorder) AddPublishedFiles(ResultLabel, int)                 {}

// ResultOf maps an error to its result label.
func ResultOf(err error, canceled bool) ResultLabel {
	switch {
	case err == nil:
		return ResultSuccess
	case canceled:
		return ResultCanceled
	default:
		return ResultFailed
	}
}
