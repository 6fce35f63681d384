package progress

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Status is a point-in-time snapshot of the run
type Status struct {
	Total     int64
	Processed int64
	Uploaded  int64
	Rejected  int64
	Skipped   int64
	Failed    int64
	BytesSent int64
	StartTime time.Time
	Elapsed   time.Duration
	Rate      float64 // files per second
	ETA       time.Duration
}

// Percent returns the share of processed files in [0, 100].
func (s Status) Percent() float64 {
	if s.Total <= 0 {
		return 0
	}
	p := float64(s.Processed) / float64(s.Total) * 100
	if p > 100 {
		p = 100
	}
	return p
}

// Tracker counts completed files. All methods are safe for concurrent use.
type Tracker struct {
	start     time.Time
	now       func() time.Time
	total     atomic.Int64
	processed atomic.Int64
	uploaded  atomic.Int64
	rejected  atomic.Int64
	skipped   atomic.Int64
	failed    atomic.Int64
	bytesSent atomic.Int64
}

// NewTracker creates a new progress tracker
func NewTracker() *Tracker {
	return newTrackerWithClock(time.Now)
}

func newTrackerWithClock(now func() time.Time) *Tracker {
	return &Tracker{start: now(), now: now}
}

// SetTotal sets the number of files the run will process
func (t *Tracker) SetTotal(total int64) {
	t.total.Store(total)
}

// AddUploaded records an uploaded file and the raw bytes it carried
func (t *Tracker) AddUploaded(bytes int64) {
	t.uploaded.Add(1)
	t.bytesSent.Add(bytes)
	t.processed.Add(1)
}

// AddRejected records a file the server refused
func (t *Tracker) AddRejected() {
	t.rejected.Add(1)
	t.processed.Add(1)
}

// AddSkipped records a file that was not a workout
func (t *Tracker) AddSkipped() {
	t.skipped.Add(1)
	t.processed.Add(1)
}

// AddFailed records a file that could not be decoded, read or sent
func (t *Tracker) AddFailed() {
	t.failed.Add(1)
	t.processed.Add(1)
}

// GetStatus returns the current status
func (t *Tracker) GetStatus() Status {
	s := Status{
		Total:     t.total.Load(),
		Processed: t.processed.Load(),
		Uploaded:  t.uploaded.Load(),
		Rejected:  t.rejected.Load(),
		Skipped:   t.skipped.Load(),
		Failed:    t.failed.Load(),
		BytesSent: t.bytesSent.Load(),
		StartTime: t.start,
		Elapsed:   t.now().Sub(t.start),
	}

	if s.Elapsed > 0 {
		s.Rate = float64(s.Processed) / s.Elapsed.Seconds()
	}

	remaining := s.Total - s.Processed
	if remaining > 0 && s.Rate > 0 {
		s.ETA = time.Duration(float64(remaining) / s.Rate * float64(time.Second))
	}

	return s
}

// FormatRate formats a files-per-second rate
func FormatRate(perSecond float64) string {
	if perSecond < 1 && perSecond > 0 {
		return fmt.Sprintf("%.1f/min", perSecond*60)
	}
	return fmt.Sprintf("%.1f/s", perSecond)
}

// FormatDuration formats duration in human readable format
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
	} else if minutes > 0 {
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
