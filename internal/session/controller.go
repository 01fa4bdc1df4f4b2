package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/christian-lee/practicetime/internal/audio"
	"github.com/christian-lee/practicetime/internal/classify"
	"github.com/christian-lee/practicetime/internal/store"
)

var (
	ErrAlreadyRunning     = errors.New("session already running")
	ErrNotRunning         = errors.New("no session running")
	ErrPermissionRequired = errors.New("microphone permission required")
)

// Capture is the audio capture source: start/stop plus the latest window.
type Capture interface {
	Source
	Start(ctx context.Context) error
	Stop() error
	State() audio.State
}

// ClassifierFactory acquires classifier resources at session start.
type ClassifierFactory func(ctx context.Context) (classify.Classifier, error)

// Permission gates recording on user consent.
type Permission interface {
	Granted() bool
	Request()
	Pending() bool
}

// History records finished sessions.
type History interface {
	RecordSession(r store.Record) (store.Record, error)
}

// Status is what the UI shows.
type Status struct {
	Running           bool   `json:"running"`
	Total             int    `json:"total"`
	Idle              int    `json:"idle"`
	TotalClock        string `json:"total_clock"`
	IdleClock         string `json:"idle_clock"`
	PermissionPending bool   `json:"permission_pending"`
}

// Controller owns the start/stop lifecycle of practice sessions.
type Controller struct {
	newClassifier ClassifierFactory
	capture       Capture
	log           Logger
	history       History
	perm          Permission
	now           func() time.Time

	op sync.Mutex // serializes start/stop/toggle

	mu         sync.Mutex
	opts       Options
	sess       *Session
	classifier classify.Classifier
	startedAt  time.Time
	display    Snapshot
	subs       map[int]func(Status)
	nextSub    int
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithHistory records every stopped session.
func WithHistory(h History) ControllerOption {
	return func(c *Controller) { c.history = h }
}

// WithPermission gates Toggle on user consent.
func WithPermission(p Permission) ControllerOption {
	return func(c *Controller) { c.perm = p }
}

func NewController(factory ClassifierFactory, capture Capture, log Logger, opts Options, options ...ControllerOption) *Controller {
	c := &Controller{
		newClassifier: factory,
		capture:       capture,
		log:           log,
		opts:          opts,
		now:           time.Now,
		subs:          make(map[int]func(Status)),
	}
	for _, o := range options {
		o(c)
	}
	return c
}

// SetOptions replaces the session options. A running session keeps its
// options; the new ones apply from the next Start.
func (c *Controller) SetOptions(opts Options) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts = opts
}

// Start acquires the classifier, starts capture and launches a session.
// Classifier or capture failures are logged once and not retried.
func (c *Controller) Start(ctx context.Context) error {
	c.op.Lock()
	defer c.op.Unlock()
	return c.startLocked(ctx)
}

// Stop ends the running session, logs and records its final counters, and
// zeroes the display.
func (c *Controller) Stop() error {
	c.op.Lock()
	defer c.op.Unlock()
	return c.stopLocked(nil, store.ReasonManual)
}

// Toggle is the single start/stop button. A running session always stops.
// Starting without consent requests permission and performs no session action.
func (c *Controller) Toggle(ctx context.Context) (bool, error) {
	c.op.Lock()
	defer c.op.Unlock()

	if c.Running() {
		return false, c.stopLocked(nil, store.ReasonManual)
	}
	if c.perm != nil && !c.perm.Granted() {
		c.perm.Request()
		c.notify()
		return false, ErrPermissionRequired
	}
	if err := c.startLocked(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess != nil
}

// Status returns the running flag and the last displayed counters.
func (c *Controller) Status() Status {
	c.mu.Lock()
	st := Status{
		Running:    c.sess != nil,
		Total:      c.display.Total,
		Idle:       c.display.Idle,
		TotalClock: FormatClock(c.display.Total),
		IdleClock:  FormatClock(c.display.Idle),
	}
	c.mu.Unlock()
	if c.perm != nil {
		st.PermissionPending = c.perm.Pending()
	}
	return st
}

// Subscribe registers fn for status updates. The returned func unsubscribes.
func (c *Controller) Subscribe(fn func(Status)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

func (c *Controller) notify() {
	c.mu.Lock()
	subs := make([]func(Status), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	st := c.Status()
	for _, fn := range subs {
		fn(st)
	}
}

func (c *Controller) onDisplay(snap Snapshot) {
	c.mu.Lock()
	c.display = snap
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) startLocked(ctx context.Context) error {
	c.mu.Lock()
	running := c.sess != nil
	opts := c.opts
	c.mu.Unlock()
	if running {
		return ErrAlreadyRunning
	}

	// The session outlives the caller's request context.
	base := context.WithoutCancel(ctx)

	clf, err := c.newClassifier(base)
	if err != nil {
		c.log.Logf("classifier failed to load with error: %v", err)
		return fmt.Errorf("load classifier: %w", err)
	}
	if err := c.capture.Start(base); err != nil {
		clf.Close()
		c.log.Logf("audio capture failed to start: %v", err)
		return fmt.Errorf("start capture: %w", err)
	}

	sess := New(opts, clf, c.capture, c.log, c.onDisplay)

	c.mu.Lock()
	c.sess = sess
	c.classifier = clf
	c.startedAt = c.now()
	c.display = Snapshot{}
	c.mu.Unlock()

	sess.Start(base)
	go c.watch(sess)

	c.log.Logf("app start %s", c.capture.State())
	slog.Info("🎵 session started", "idle_threshold", opts.Policy.IdleThreshold, "tick", opts.Tick)
	c.notify()
	return nil
}

// watch turns an auto-stop of sess into a normal stop.
func (c *Controller) watch(sess *Session) {
	<-sess.Done()
	if !sess.State().Exhausted {
		return
	}
	c.op.Lock()
	defer c.op.Unlock()
	if err := c.stopLocked(sess, store.ReasonAuto); err != nil && !errors.Is(err, ErrNotRunning) {
		slog.Error("auto-stop failed", "err", err)
	}
}

// stopLocked stops target, or whichever session runs when target is nil.
func (c *Controller) stopLocked(target *Session, reason store.StopReason) error {
	c.mu.Lock()
	sess := c.sess
	if sess == nil || (target != nil && target != sess) {
		c.mu.Unlock()
		return ErrNotRunning
	}
	clf := c.classifier
	startedAt := c.startedAt
	c.sess = nil
	c.classifier = nil
	c.mu.Unlock()

	if err := c.capture.Stop(); err != nil {
		slog.Warn("stop capture", "err", err)
	}
	final := sess.Stop()
	if err := clf.Close(); err != nil {
		slog.Warn("close classifier", "err", err)
	}

	c.log.Logf("app stop. total=%d idle=%d", final.Total, final.Idle)
	slog.Info("⏹ session stopped", "reason", reason, "total", final.Total, "idle", final.Idle, "ticks", final.Ticks)

	if c.history != nil {
		if _, err := c.history.RecordSession(store.Record{
			StartedAt: startedAt,
			StoppedAt: c.now(),
			Total:     final.Total,
			Idle:      final.Idle,
			Ticks:     final.Ticks,
			Reason:    reason,
		}); err != nil {
			slog.Error("record session failed", "err", err)
		}
	}

	c.mu.Lock()
	c.display = Snapshot{}
	c.mu.Unlock()
	c.notify()
	return nil
}
