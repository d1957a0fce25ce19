package reembed

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lastReport returns the final carriage-return separated progress line.
func lastReport(out string) string {
	lines := strings.Split(strings.TrimRight(out, "\n"), "\r")
	return lines[len(lines)-1]
}

func TestProgressTracker(t *testing.T) {
	tests := []struct {
		name     string
		total    int
		interval int
		steps    func(*ProgressTracker)
		want     string
		skipped  int
	}{
		{
			name:     "increments reach the total",
			total:    100,
			interval: 10,
			steps: func(p *ProgressTracker) {
				p.Increment(25, 0)
				p.Increment(25, 0)
				p.Increment(50, 0)
			},
			want: "Progress: 100/100 (100.0%)",
		},
		{
			name:     "current is capped at the total",
			total:    100,
			interval: 10,
			steps:    func(p *ProgressTracker) { p.Increment(150, 0) },
			want:     "Progress: 100/100 (100.0%)",
		},
		{
			name:     "finish completes a partial run",
			total:    100,
			interval: 10,
			steps: func(p *ProgressTracker) {
				p.Update(75)
				p.Finish()
			},
			want: "Progress: 100/100 (100.0%)",
		},
		{
			name:     "empty store",
			total:    0,
			interval: 10,
			steps:    func(p *ProgressTracker) { p.Finish() },
			want:     "Progress: 0/0 (0.0%)",
		},
		{
			name:     "skipped entities are reported",
			total:    10,
			interval: 1,
			steps: func(p *ProgressTracker) {
				p.Increment(4, 1)
				p.Increment(4, 2)
			},
			want:    "Progress: 8/10 (80.0%)",
			skipped: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			p := NewProgressTracker(&buf, tt.total, tt.interval)
			p.Start()
			tt.steps(p)

			line := lastReport(buf.String())
			assert.True(t, strings.HasPrefix(line, tt.want), "got %q", line)
			assert.Contains(t, line, "entities/s")
			assert.Equal(t, tt.skipped, p.Snapshot().Skipped)
			if tt.skipped > 0 {
				assert.Contains(t, line, " skipped")
			} else {
				assert.NotContains(t, line, "skipped")
			}
		})
	}
}

func TestProgressTracker_ReportInterval(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressTracker(&buf, 1000, 100)
	p.Start()

	p.Update(50)
	assert.Empty(t, buf.String(), "below the interval")

	p.Update(100)
	assert.Equal(t, 1, strings.Count(buf.String(), "\r"))

	p.Update(150)
	assert.Equal(t, 1, strings.Count(buf.String(), "\r"), "50 entities since the last report")

	p.Update(250)
	assert.Equal(t, 2, strings.Count(buf.String(), "\r"))
	assert.True(t, strings.HasPrefix(lastReport(buf.String()), "Progress: 250/1000 (25.0%)"))
}

func TestProgressTracker_FinishEndsLine(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressTracker(&buf, 3, 1)
	p.Start()
	p.Increment(3, 0)
	p.Finish()
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))
}

func TestProgressTracker_NotStarted(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressTracker(&buf, 100, 10)

	p.Increment(10, 0)
	p.Update(20)
	p.Finish()

	assert.Empty(t, buf.String())
	assert.Zero(t, p.Snapshot().Current)
	assert.Zero(t, p.Elapsed())
}

func TestProgressTracker_RestartResets(t *testing.T) {
	p := NewProgressTracker(nil, 10, 5)
	p.Start()
	p.Increment(6, 2)
	p.Start()

	snap := p.Snapshot()
	assert.Zero(t, snap.Current)
	assert.Zero(t, snap.Skipped)
	assert.Equal(t, 10, snap.Total)
}

func TestProgressTracker_Concurrent(t *testing.T) {
	p := NewProgressTracker(nil, 400, 7)
	p.Start()

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				p.Increment(1, 0)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 400, p.Snapshot().Current)
}

func TestProgress(t *testing.T) {
	t.Run("percent and rate", func(t *testing.T) {
		p := Progress{Current: 50, Total: 200, Elapsed: 2 * time.Second}
		assert.InDelta(t, 25.0, p.Percent(), 1e-9)
		assert.InDelta(t, 25.0, p.Rate(), 1e-9)
	})

	t.Run("zero values", func(t *testing.T) {
		assert.Zero(t, Progress{}.Rate())
		assert.Zero(t, Progress{}.Percent())
	})

	t.Run("elapsed grows after start", func(t *testing.T) {
		p := NewProgressTracker(nil, 5, 0)
		p.Start()
		time.Sleep(5 * time.Millisecond)
		require.Greater(t, p.Elapsed(), time.Duration(0))
		assert.Greater(t, p.Snapshot().Rate(), -1.0)
	})
}
