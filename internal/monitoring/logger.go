// Package monitoring holds the process-wide diagnostic logger. Components
// log through Logf with a bracketed tag, for example "[Recorder] ...".
package monitoring

import (
	"fmt"
	"log"
	"strings"
	"sync"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Capture collects formatted log lines. Install it with
// SetLogger(c.Logf).
type Capture struct {
	mu    sync.Mutex
	lines []string
}

// Logf records one formatted line. Safe for concurrent use.
func (c *Capture) Logf(format string, v ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, fmt.Sprintf(format, v...))
}

// Lines returns a copy of the captured lines.
func (c *Capture) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

// Contains reports whether any captured line contains s.
func (c *Capture) Contains(s string) bool {
	for _, l := range c.Lines() {
		if strings.Contains(l, s) {
			return true
		}
	}
	return false
}
