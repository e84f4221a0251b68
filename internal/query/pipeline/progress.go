package pipeline

import (
	"fmt"
	"sync"
	"time"
)

// ProgressCallback receives a stage name, how many of an estimated total rows
// it has processed so far, and a human-readable status message. Ported
// unchanged in shape from app/query/progress.go's ProgressCallback.
type ProgressCallback func(stage string, current, total int64, message string)

// NoOpProgressCallback discards every report; NewProgressTracker substitutes
// it for a nil callback so ProgressTracker never needs a nil check at the
// call site.
func NoOpProgressCallback(stage string, current, total int64, message string) {}

// ThrottledProgressCallback wraps callback so it fires at most once per
// minInterval, preventing a tight per-row loop from spamming a slow UI or
// log sink. Ported from app/query/progress.go's ThrottledProgressCallback.
func ThrottledProgressCallback(callback ProgressCallback, minInterval time.Duration) ProgressCallback {
	var (
		mu       sync.Mutex
		lastCall time.Time
	)
	return func(stage string, current, total int64, message string) {
		mu.Lock()
		defer mu.Unlock()
		now := time.Now()
		if now.Sub(lastCall) < minInterval {
			return
		}
		lastCall = now
		if callback != nil {
			callback(stage, current, total, message)
		}
	}
}

// ProgressTracker reports per-stage start/complete transitions through a
// ProgressCallback across a multi-stage pipeline run, grounded on
// app/query/progress.go's ProgressTracker (StartStage/CompleteStage), trimmed
// to the start/complete granularity Run's per-op loop naturally produces
// (the teacher's per-row UpdateStage has no analog here: jfrq's pipeline ops
// run to completion in one call rather than yielding mid-stage).
type ProgressTracker struct {
	callback     ProgressCallback
	totalStages  int
	currentStage int
	mu           sync.Mutex
}

// NewProgressTracker returns a tracker reporting through callback across
// totalStages pipeline operators. A nil callback is replaced with
// NoOpProgressCallback.
func NewProgressTracker(callback ProgressCallback, totalStages int) *ProgressTracker {
	if callback == nil {
		callback = NoOpProgressCallback
	}
	return &ProgressTracker{callback: callback, totalStages: totalStages}
}

// StartStage reports the beginning of stage name.
func (p *ProgressTracker) StartStage(name string, inputRows int64) {
	p.mu.Lock()
	p.currentStage++
	stage, total := p.currentStage, p.totalStages
	p.mu.Unlock()
	p.callback(name, 0, inputRows, fmt.Sprintf("Stage %d/%d: %s", stage, total, name))
}

// CompleteStage reports the end of stage name, having produced outputRows.
func (p *ProgressTracker) CompleteStage(name string, outputRows int64, elapsed time.Duration) {
	p.mu.Lock()
	stage, total := p.currentStage, p.totalStages
	p.mu.Unlock()
	message := fmt.Sprintf("Stage %d/%d: %s completed (%d rows, %v)", stage, total, name, outputRows, elapsed.Truncate(time.Millisecond))
	p.callback(name, outputRows, outputRows, message)
}
