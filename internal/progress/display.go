package progress

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	progressbar "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
)

var (
	countStyle   = lipgloss.NewStyle().Bold(true)
	dimStyle     = lipgloss.NewStyle().Faint(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// Display renders the tracker as a single updating line
type Display struct {
	tracker  *Tracker
	interval time.Duration
	term     *Terminal
	bar      progressbar.Model
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// NewDisplay creates a new progress display drawing on term
func NewDisplay(tracker *Tracker, interval time.Duration, term *Terminal) *Display {
	return &Display{
		tracker:  tracker,
		interval: interval,
		term:     term,
		bar:      progressbar.New(progressbar.WithDefaultGradient(), progressbar.WithWidth(40), progressbar.WithoutPercentage()),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start starts the progress display
func (d *Display) Start() {
	go d.displayLoop()
}

// Stop stops the display and prints the final summary. It blocks until the
// render loop has exited and may be called more than once.
func (d *Display) Stop() {
	d.stopOnce.Do(func() {
		close(d.stopCh)
		<-d.doneCh
	})
}

func (d *Display) displayLoop() {
	defer close(d.doneCh)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.updateDisplay()
	for {
		select {
		case <-ticker.C:
			d.updateDisplay()
		case <-d.stopCh:
			d.finalDisplay()
			return
		}
	}
}

func (d *Display) updateDisplay() {
	d.term.SetLine(d.renderLine(d.tracker.GetStatus()))
}

func (d *Display) finalDisplay() {
	status := d.tracker.GetStatus()
	d.term.Finish(d.renderLine(status), renderSummary(status))
}

// renderLine produces "[elapsed] bar pct% rate done/total (eta)".
func (d *Display) renderLine(s Status) string {
	return fmt.Sprintf("[%s] %s %3.0f%% %s %s (%s)",
		dimStyle.Render(FormatDuration(s.Elapsed)),
		d.bar.ViewAs(s.Percent()/100),
		s.Percent(),
		FormatRate(s.Rate),
		countStyle.Render(fmt.Sprintf("%d/%d", s.Processed, s.Total)),
		FormatDuration(s.ETA),
	)
}

func renderSummary(s Status) string {
	parts := []string{
		successStyle.Render(fmt.Sprintf("uploaded %d", s.Uploaded)),
		warnStyle.Render(fmt.Sprintf("rejected %d", s.Rejected)),
		dimStyle.Render(fmt.Sprintf("skipped %d", s.Skipped)),
		errorStyle.Render(fmt.Sprintf("failed %d", s.Failed)),
	}
	return fmt.Sprintf("%s files in %s: %s, %s sent",
		humanize.Comma(s.Processed),
		FormatDuration(s.Elapsed),
		strings.Join(parts, ", "),
		humanize.Bytes(uint64(s.BytesSent)),
	)
}

// IsTerminalSupported reports whether stdout is an interactive terminal
func IsTerminalSupported() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
