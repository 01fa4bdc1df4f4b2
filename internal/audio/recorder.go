package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

// State is the readable state of a capture source.
type State int

const (
	StateStopped State = iota
	StateRecording
)

func (s State) String() string {
	switch s {
	case StateRecording:
		return "recording"
	default:
		return "stopped"
	}
}

var ErrAlreadyRecording = errors.New("already recording")

// Recorder keeps the most recent window of captured audio available for classification.
type Recorder struct {
	opener Opener
	window *Window

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	reader io.ReadCloser
	done   chan struct{}
}

func NewRecorder(opener Opener, windowSize int) *Recorder {
	return &Recorder{
		opener: opener,
		window: NewWindow(windowSize),
	}
}

// Start opens the stream and pumps it into the window in the background.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateRecording {
		return ErrAlreadyRecording
	}

	captureCtx, cancel := context.WithCancel(ctx)
	reader, err := r.opener.Open(captureCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("start audio: %w", err)
	}

	r.window.Reset()
	r.cancel = cancel
	r.reader = reader
	r.done = make(chan struct{})
	r.state = StateRecording

	go func(done chan struct{}) {
		defer close(done)
		err := Pump(captureCtx, reader, r.window)
		if captureCtx.Err() != nil {
			return // stopped
		}
		slog.Warn("audio stream ended", "err", err)
		r.ended(done)
	}(r.done)
	return nil
}

// ended moves a recorder whose stream closed on its own to StateStopped and
// drops the buffered audio, so Latest stops serving a stale window.
func (r *Recorder) ended(done chan struct{}) {
	r.mu.Lock()
	if r.done != done {
		r.mu.Unlock()
		return // Stop already took over
	}
	cancel, reader := r.cancel, r.reader
	r.state = StateStopped
	r.cancel, r.reader, r.done = nil, nil, nil
	r.window.Reset()
	r.mu.Unlock()

	cancel()
	reader.Close()
}

// Stop ends capture and waits for the pump to exit. Stopping a stopped recorder is a no-op.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	if r.state != StateRecording {
		r.mu.Unlock()
		return nil
	}
	cancel, reader, done := r.cancel, r.reader, r.done
	r.state = StateStopped
	r.cancel, r.reader, r.done = nil, nil, nil
	r.mu.Unlock()

	cancel()
	err := reader.Close()
	<-done
	if err != nil && !errors.Is(err, os.ErrClosed) {
		return fmt.Errorf("close audio: %w", err)
	}
	return nil
}

func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Latest copies the most recent audio into dst; see Window.Latest.
func (r *Recorder) Latest(dst []int16) int {
	return r.window.Latest(dst)
}
