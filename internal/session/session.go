package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/christian-lee/practicetime/internal/classify"
)

// Source supplies the most recent audio window.
type Source interface {
	Latest(dst []int16) int
}

// Logger is the user-visible practice log.
type Logger interface {
	Logf(format string, args ...any)
}

// Options configures one session.
type Options struct {
	Policy     Policy
	Tick       time.Duration
	MusicLabel string // top label that counts as music, exact match
}

func DefaultOptions() Options {
	return Options{
		Policy:     DefaultPolicy(),
		Tick:       time.Second,
		MusicLabel: classify.LabelMusic,
	}
}

// Session runs the sampler and the tick driver for one start-to-stop run.
type Session struct {
	opts       Options
	classifier classify.Classifier
	source     Source
	log        Logger
	onDisplay  func(Snapshot)

	music chan struct{} // pending detection, at most one

	cancel      context.CancelFunc
	done        chan struct{} // tick driver exited
	samplerDone chan struct{}

	mu    sync.Mutex
	state State
}

// New creates a session. onDisplay receives the pre-advance counters on every tick.
func New(opts Options, classifier classify.Classifier, source Source, log Logger, onDisplay func(Snapshot)) *Session {
	if opts.Tick <= 0 {
		opts.Tick = time.Second
	}
	return &Session{
		opts:        opts,
		classifier:  classifier,
		source:      source,
		log:         log,
		onDisplay:   onDisplay,
		music:       make(chan struct{}, 1),
		done:        make(chan struct{}),
		samplerDone: make(chan struct{}),
	}
}

// Start launches both periodic activities. The session ends when ctx is
// cancelled, Stop is called, or the auto-stop rule fires.
func (s *Session) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.run(ctx)
	go s.sample(ctx)
}

// Stop cancels both activities, waits for them, and returns the final state.
// An in-flight classification finishes but its result is dropped.
func (s *Session) Stop() State {
	s.cancel()
	<-s.done
	<-s.samplerDone
	return s.State()
}

// Done is closed when the tick driver has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// State returns a copy of the current counters.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) set(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// run is the tick driver and the only writer of the state.
func (s *Session) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.opts.Tick)
	defer ticker.Stop()

	var st State
	for {
		select {
		case <-ctx.Done():
			return

		case <-s.music:
			st, _ = Step(st, s.opts.Policy, EventMusic)
			s.set(st)

		case <-ticker.C:
			next, eff := Step(st, s.opts.Policy, EventTick)
			if s.onDisplay != nil {
				s.onDisplay(eff.Display)
			}
			st = next
			s.set(st)

			if eff.AutoStop {
				slog.Info("🔇 no music for a full idle period, auto-stopping", "idle", st.Idle, "ticks", st.Ticks)
				return
			}
			if eff.Reset {
				slog.Info("idle threshold reached, counters reset", "ticks", st.Ticks)
			}
			if eff.Log {
				s.log.Logf("total=%d idle=%d", st.Total, st.Idle)
			}
		}
	}
}

// sample classifies the latest window every half window duration.
func (s *Session) sample(ctx context.Context) {
	defer close(s.samplerDone)

	format := s.classifier.Format()
	interval := format.Duration() / 2
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	window := make([]int16, format.WindowSize)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.classifyOnce(ctx, window)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Session) classifyOnce(ctx context.Context, window []int16) {
	s.source.Latest(window)
	// A stop lets the running classification finish; its result is dropped below.
	cats, err := s.classifier.Classify(context.WithoutCancel(ctx), window)
	if ctx.Err() != nil {
		return // session over, result discarded
	}
	if err != nil {
		slog.Debug("classify failed", "err", err)
		return
	}

	top, ok := classify.Top(cats)
	if !ok || top.Label != s.opts.MusicLabel {
		return
	}
	select {
	case s.music <- struct{}{}:
	default: // a detection is already queued
	}
}
