package progress

import (
	"io"
	"sync"
)

const clearLine = "\r\033[2K"

// Terminal serializes the progress line and log output that share one
// terminal. A log write clears the current progress line, writes the log
// entry, then redraws the line so no half-drawn bar is left behind.
type Terminal struct {
	mu   sync.Mutex
	out  io.Writer
	logs io.Writer
	line string
}

// NewTerminal creates a terminal drawing progress on out and logs on logs
func NewTerminal(out, logs io.Writer) *Terminal {
	return &Terminal{out: out, logs: logs}
}

// Write writes a log entry. It satisfies io.Writer so the logger can use
// the terminal as its sink.
func (t *Terminal) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.line != "" {
		io.WriteString(t.out, clearLine)
	}
	n, err := t.logs.Write(p)
	if t.line != "" {
		io.WriteString(t.out, t.line)
	}
	return n, err
}

// Sync is a no-op; writes are not buffered
func (t *Terminal) Sync() error {
	return nil
}

// SetLine replaces the progress line
func (t *Terminal) SetLine(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.line = line
	io.WriteString(t.out, clearLine+line)
}

// Finish redraws the line for the last time, terminates it and prints the
// trailing text. Later log writes no longer touch the progress line.
func (t *Terminal) Finish(line, trailer string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.line = ""
	io.WriteString(t.out, clearLine+line+"\n"+trailer+"\n")
}
