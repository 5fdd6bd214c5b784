package build

import (
	"sync"
	"time"
)

// BuildMetrics tracks build and stage statistics for the status page.
type BuildMetrics struct {
	TotalBuilds      int64
	SuccessfulBuilds int64
	FailedBuilds     int64
	StageRuns        int64
	FailedStageRuns  int64
	FilesWritten     int64
	AverageDuration  time.Duration
	TotalDuration    time.Duration
	LastBuildID      string
	LastMode         Mode
	LastError        string
	LastBuildAt      time.Time
	mutex            sync.RWMutex
}

// NewBuildMetrics creates a new build metrics tracker
func NewBuildMetrics() *BuildMetrics {
	return &BuildMetrics{}
}

// RecordStage records one stage run, either part of a build or triggered on
// its own by the watcher.
func (bm *BuildMetrics) RecordStage(result StageResult) {
	bm.mutex.Lock()
	defer bm.mutex.Unlock()

	bm.StageRuns++
	bm.FilesWritten += int64(result.Files)
	if result.Err != nil {
		bm.FailedStageRuns++
	}
}

// RecordBuild records a finished build.
func (bm *BuildMetrics) RecordBuild(result *BuildResult, err error) {
	bm.mutex.Lock()
	defer bm.mutex.Unlock()

	bm.TotalBuilds++
	bm.TotalDuration += result.Duration
	bm.LastBuildID = result.ID
	bm.LastMode = result.Mode
	bm.LastBuildAt = time.Now()

	if err != nil {
		bm.FailedBuilds++
		bm.LastError = err.Error()
	} else {
		bm.SuccessfulBuilds++
		bm.LastError = ""
	}

	bm.AverageDuration = bm.TotalDuration / time.Duration(bm.TotalBuilds)
}

// GetSnapshot returns a snapshot of current metrics
func (bm *BuildMetrics) GetSnapshot() BuildMetrics {
	bm.mutex.RLock()
	defer bm.mutex.RUnlock()
	return BuildMetrics{
		TotalBuilds:      bm.TotalBuilds,
		SuccessfulBuilds: bm.SuccessfulBuilds,
		FailedBuilds:     bm.FailedBuilds,
		StageRuns:        bm.StageRuns,
		FailedStageRuns:  bm.FailedStageRuns,
		FilesWritten:     bm.FilesWritten,
		AverageDuration:  bm.AverageDuration,
		TotalDuration:    bm.TotalDuration,
		LastBuildID:      bm.LastBuildID,
		LastMode:         bm.LastMode,
		LastError:        bm.LastError,
		LastBuildAt:      bm.LastBuildAt,
	}
}

// Reset resets all metrics
func (bm *BuildMetrics) Reset() {
	bm.mutex.Lock()
	defer bm.mutex.Unlock()

	bm.TotalBuilds = 0
	bm.SuccessfulBuilds = 0
	bm.FailedBuilds = 0
	bm.StageRuns = 0
	bm.FailedStageRuns = 0
	bm.FilesWritten = 0
	bm.AverageDuration = 0
	bm.TotalDuration = 0
	bm.LastBuildID = ""
	bm.LastMode = ModeUnset
	bm.LastError = ""
	bm.LastBuildAt = time.Time{}
}

// GetSuccessRate returns the success rate as a percentage
func (bm *BuildMetrics) GetSuccessRate() float64 {
	bm.mutex.RLock()
	defer bm.mutex.RUnlock()

	if bm.TotalBuilds == 0 {
		return 0.0
	}

	return float64(bm.SuccessfulBuilds) / float64(bm.TotalBuilds) * 100.0
}
