// Package classify turns short windows of microphone audio into ranked
// audio-event labels ("Music", "Speech", "Silence", ...).
//
// Backends are opaque: the session only looks at the top label of the
// filtered result.
package classify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/christian-lee/practicetime/internal/config"
)

// ErrModelLoad wraps every failure to construct a classifier backend.
var ErrModelLoad = errors.New("model load failed")

// Category is one label with its confidence in [0,1].
type Category struct {
	Label string  `json:"label"`
	Score float32 `json:"score"`
}

// Format describes the fixed input window a backend requires.
type Format struct {
	SampleRate int // Hz
	WindowSize int // samples
}

// Duration is the wall-clock length of one input window.
func (f Format) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(int64(f.WindowSize) * int64(time.Second) / int64(f.SampleRate))
}

// Classifier labels a window of PCM s16le mono samples.
// Classify is synchronous and may take up to one window duration.
type Classifier interface {
	Classify(ctx context.Context, window []int16) ([]Category, error)
	Format() Format
	Close() error
}

// Options mirrors the score threshold / max results knobs of the model runtime.
type Options struct {
	ScoreThreshold float32
	MaxResults     int // 0 = unlimited
}

func DefaultOptions() Options {
	return Options{ScoreThreshold: 0.5, MaxResults: 2}
}

// Filter orders categories by descending score, drops the ones below the
// threshold and truncates to MaxResults. The input slice is not modified.
func Filter(cats []Category, opts Options) []Category {
	out := make([]Category, 0, len(cats))
	for _, c := range cats {
		if c.Score >= opts.ScoreThreshold {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	if opts.MaxResults > 0 && len(out) > opts.MaxResults {
		out = out[:opts.MaxResults]
	}
	return out
}

// Top returns the highest ranked category of an already filtered result.
func Top(cats []Category) (Category, bool) {
	if len(cats) == 0 {
		return Category{}, false
	}
	return cats[0], true
}

// New builds the backend named in cfg. Any construction failure wraps ErrModelLoad.
func New(ctx context.Context, cfg config.ClassifierConfig) (Classifier, error) {
	format := Format{SampleRate: cfg.SampleRate, WindowSize: cfg.WindowSize}
	opts := Options{ScoreThreshold: cfg.ScoreThreshold, MaxResults: cfg.MaxResults}

	switch cfg.Backend {
	case "", "spectral":
		profile := DefaultProfile()
		if cfg.Model != "" {
			p, err := LoadProfile(cfg.Model)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrModelLoad, err)
			}
			profile = p
		}
		return NewSpectralClassifier(format, opts, profile)
	case "gemini":
		return NewGeminiClassifier(ctx, cfg.APIKey, cfg.Model, format, opts)
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrModelLoad, cfg.Backend)
	}
}
