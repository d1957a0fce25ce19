package reembed

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Progress is a point-in-time view of a ProgressTracker.
type Progress struct {
	Current int
	Total   int
	Skipped int
	Elapsed time.Duration
}

// Percent returns Current as a share of Total, 0 for an empty total.
func (p Progress) Percent() float64 {
	if p.Total <= 0 {
		return 0
	}
	return float64(p.Current) / float64(p.Total) * 100.0
}

// Rate returns processed entities per second.
func (p Progress) Rate() float64 {
	if p.Elapsed <= 0 {
		return 0
	}
	return float64(p.Current) / p.Elapsed.Seconds()
}

// ProgressTracker tracks and reports progress of reembedding operations.
type ProgressTracker struct {
	mu             sync.Mutex
	writer         io.Writer
	reportInterval int
	lastReported   int
	startTime      time.Time
	started        bool
	state          Progress
}

// NewProgressTracker creates a new progress tracker.
// writer: where to write progress output (typically os.Stderr), nil discards it
// total: total number of entities to process
// reportInterval: report progress every N entities
func NewProgressTracker(writer io.Writer, total, reportInterval int) *ProgressTracker {
	if writer == nil {
		writer = io.Discard
	}
	if reportInterval < 1 {
		reportInterval = 1
	}
	return &ProgressTracker{
		writer:         writer,
		reportInterval: reportInterval,
		state:          Progress{Total: total},
	}
}

// Start begins tracking progress.
func (p *ProgressTracker) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startTime = time.Now()
	p.started = true
	p.state.Current = 0
	p.state.Skipped = 0
	p.lastReported = 0
}

// Update sets the current progress to the specified value.
func (p *ProgressTracker) Update(current int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	p.advance(current)
}

// Increment increases the current progress by delta, of which skipped
// entities were passed over rather than re-embedded.
func (p *ProgressTracker) Increment(delta, skipped int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	p.state.Skipped += skipped
	p.advance(p.state.Current + delta)
}

// advance must be called with the lock held.
func (p *ProgressTracker) advance(current int) {
	p.state.Current = min(current, p.state.Total)
	if p.state.Current-p.lastReported >= p.reportInterval {
		p.report()
		p.lastReported = p.state.Current
	}
}

// Finish marks the operation as complete and prints final progress.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}

	p.state.Current = p.state.Total
	p.report()
	fmt.Fprintln(p.writer)
}

// Snapshot returns the current progress.
func (p *ProgressTracker) Snapshot() Progress {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := p.state
	if p.started {
		out.Elapsed = time.Since(p.startTime)
	}
	return out
}

// Elapsed returns the time elapsed since Start was called.
func (p *ProgressTracker) Elapsed() time.Duration {
	return p.Snapshot().Elapsed
}

// report prints the current progress. Must be called with lock held.
func (p *ProgressTracker) report() {
	s := p.state
	s.Elapsed = time.Since(p.startTime)
	fmt.Fprintf(p.writer, "\rProgress: %d/%d (%.1f%%) - %.1f entities/s",
		s.Current, s.Total, s.Percent(), s.Rate())
	if s.Skipped > 0 {
		fmt.Fprintf(p.writer, " - %d skipped", s.Skipped)
	}
}
