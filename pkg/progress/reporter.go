// Package progress tracks per-request progress for interactive runs.
// Workers emit one '.' per completed storage request and one '_' per
// requeued key; exact interleaving between workers is not significant.
package progress

import (
	"io"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Reporter receives progress signals from copy workers. Implementations
// must be safe for concurrent use.
type Reporter interface {
	// Report writes n request markers when n > 0, nothing otherwise
	Report(n int64)

	// Retry writes a single requeue marker
	Retry()
}

// Console is a Reporter writing to an interactive terminal.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsole creates a console reporter writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// Report writes n '.' markers.
func (c *Console) Report(n int64) {
	if n <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	io.WriteString(c.w, strings.Repeat(".", int(n)))
}

// Retry writes a '_' marker.
func (c *Console) Retry() {
	c.mu.Lock()
	defer c.mu.Unlock()
	io.WriteString(c.w, "_")
}

// Nop is a Reporter that discards all signals.
type Nop struct{}

func (Nop) Report(int64) {}
func (Nop) Retry()       {}

// Enabled reports whether the interactive reporter should be used:
// only when requested, running single-threaded, and fd refers to a
// terminal.
func Enabled(requested bool, threads int, fd uintptr) bool {
	return requested && threads == 1 && term.IsTerminal(int(fd))
}
