package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/christian-lee/practicetime/internal/audio"
	"github.com/christian-lee/practicetime/internal/classify"
	"github.com/christian-lee/practicetime/internal/store"
)

// fakeClassifier always answers with the same label.
type fakeClassifier struct {
	label  atomic.Value // string
	calls  atomic.Int32
	closed atomic.Bool
	err    error
}

func newFakeClassifier(label string) *fakeClassifier {
	c := &fakeClassifier{}
	c.label.Store(label)
	return c
}

func (c *fakeClassifier) setLabel(l string) { c.label.Store(l) }

func (c *fakeClassifier) Classify(ctx context.Context, window []int16) ([]classify.Category, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return []classify.Category{{Label: c.label.Load().(string), Score: 0.9}}, nil
}

// 10-sample windows at 1kHz: the sampler runs every 5ms.
func (c *fakeClassifier) Format() classify.Format {
	return classify.Format{SampleRate: 1000, WindowSize: 10}
}

func (c *fakeClassifier) Close() error {
	c.closed.Store(true)
	return nil
}

type fakeCapture struct {
	mu       sync.Mutex
	state    audio.State
	starts   int
	startErr error
}

func (f *fakeCapture) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.starts++
	f.state = audio.StateRecording
	return nil
}

func (f *fakeCapture) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = audio.StateStopped
	return nil
}

func (f *fakeCapture) State() audio.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeCapture) Latest(dst []int16) int { return len(dst) }

type memLog struct {
	mu    sync.Mutex
	lines []string
}

func (l *memLog) Logf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func (l *memLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

func (l *memLog) contains(substr string) bool {
	for _, line := range l.all() {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

type memHistory struct {
	mu      sync.Mutex
	records []store.Record
}

func (h *memHistory) RecordSession(r store.Record) (store.Record, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r)
	return r, nil
}

func (h *memHistory) all() []store.Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]store.Record(nil), h.records...)
}

type fakePermission struct {
	granted   atomic.Bool
	requested atomic.Int32
}

func (p *fakePermission) Granted() bool { return p.granted.Load() }
func (p *fakePermission) Request()      { p.requested.Add(1) }
func (p *fakePermission) Pending() bool { return !p.granted.Load() && p.requested.Load() > 0 }
