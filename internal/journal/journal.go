// Package journal is the user-visible practice log: a short in-memory tail
// for the control panel plus an append-only text file.
package journal

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const timeLayout = "2006-01-02 15:04:05"

// Journal writes timestamped lines to memory and to a persistent file.
type Journal struct {
	mu       sync.Mutex
	path     string
	maxChars int
	text     string // newest line first
	now      func() time.Time
}

// New creates a journal appending to path. An empty path keeps the journal in memory only.
func New(path string, maxChars int) *Journal {
	if maxChars <= 0 {
		maxChars = 1000
	}
	return &Journal{
		path:     path,
		maxChars: maxChars,
		now:      time.Now,
	}
}

// Logf formats and records one line.
func (j *Journal) Logf(format string, args ...any) {
	j.Log(fmt.Sprintf(format, args...))
}

// Log records one line. File errors are ignored; the in-memory tail is always updated.
func (j *Journal) Log(text string) {
	slog.Info("📝 "+text, "journal", j.path)

	j.mu.Lock()
	defer j.mu.Unlock()
	line := fmt.Sprintf("[%s] %s\n", j.now().Format(timeLayout), text)

	prev := j.text
	if r := []rune(prev); len(r) > j.maxChars {
		prev = string(r[:j.maxChars])
	}
	j.text = line + prev

	j.appendFile(line)
}

func (j *Journal) appendFile(line string) {
	if j.path == "" {
		return
	}
	if _, err := os.Stat(j.path); os.IsNotExist(err) {
		_ = os.MkdirAll(filepath.Dir(j.path), 0755)
	}
	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = f.WriteString(line)
}

// Text returns the in-memory log, newest line first.
func (j *Journal) Text() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.text
}

// Path returns the file path.
func (j *Journal) Path() string {
	return j.path
}
