package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Session    SessionConfig    `yaml:"session"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Capture    CaptureConfig    `yaml:"capture"`
	Journal    JournalConfig    `yaml:"journal"`
	Store      StoreConfig      `yaml:"store"`
	Web        WebConfig        `yaml:"web"`
	AutoStart  bool             `yaml:"autostart"` // toggle once at launch
}

type SessionConfig struct {
	IdleThreshold int           `yaml:"idle_threshold"` // seconds of silence before reset/auto-stop
	MusicCredit   int           `yaml:"music_credit"`   // grace seconds granted per positive classification
	Tick          time.Duration `yaml:"tick"`           // tick driver period
	MusicLabel    string        `yaml:"music_label"`    // exact, case-sensitive
}

type ClassifierConfig struct {
	Backend        string  `yaml:"backend"` // "spectral" or "gemini"
	Model          string  `yaml:"model"`   // weights profile path (spectral) or model name (gemini)
	APIKey         string  `yaml:"api_key"`
	ScoreThreshold float32 `yaml:"score_threshold"`
	MaxResults     int     `yaml:"max_results"`
	SampleRate     int     `yaml:"sample_rate"`
	WindowSize     int     `yaml:"window_size"` // samples per classification window
}

type CaptureConfig struct {
	FFmpeg string `yaml:"ffmpeg"` // path to ffmpeg binary
	Format string `yaml:"format"` // ffmpeg input format, e.g. pulse, alsa, avfoundation
	Device string `yaml:"device"`
}

type JournalConfig struct {
	Path     string `yaml:"path"`
	MaxChars int    `yaml:"max_chars"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type WebConfig struct {
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Default returns a Config populated with every default value.
func Default() *Config {
	return &Config{
		Session: SessionConfig{
			IdleThreshold: 300,
			MusicCredit:   5,
			Tick:          time.Second,
			MusicLabel:    "Music",
		},
		Classifier: ClassifierConfig{
			Backend:        "spectral",
			ScoreThreshold: 0.5,
			MaxResults:     2,
			SampleRate:     16000,
			WindowSize:     15600, // 0.975s at 16kHz
		},
		Capture: CaptureConfig{
			FFmpeg: "ffmpeg",
			Format: "pulse",
			Device: "default",
		},
		Journal: JournalConfig{
			Path:     defaultJournalPath(),
			MaxChars: 1000,
		},
		Store: StoreConfig{
			Path: "practicetime.db",
		},
		Web: WebConfig{
			Port: 8899,
		},
		AutoStart: true,
	}
}

func defaultJournalPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "practicetime.txt"
	}
	return filepath.Join(home, "Downloads", "practicetime.txt")
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the session and classifier cannot run with.
func (c *Config) Validate() error {
	if c.Session.IdleThreshold <= 0 {
		return fmt.Errorf("session.idle_threshold must be positive, got %d", c.Session.IdleThreshold)
	}
	if c.Session.MusicCredit < 0 {
		return fmt.Errorf("session.music_credit must not be negative, got %d", c.Session.MusicCredit)
	}
	if c.Session.Tick <= 0 {
		return fmt.Errorf("session.tick must be positive, got %s", c.Session.Tick)
	}
	if c.Classifier.SampleRate <= 0 || c.Classifier.WindowSize <= 0 {
		return fmt.Errorf("classifier.sample_rate and classifier.window_size must be positive")
	}
	if c.Classifier.ScoreThreshold < 0 || c.Classifier.ScoreThreshold > 1 {
		return fmt.Errorf("classifier.score_threshold must be within [0,1], got %v", c.Classifier.ScoreThreshold)
	}
	switch c.Classifier.Backend {
	case "spectral", "gemini":
	default:
		return fmt.Errorf("unknown classifier.backend %q", c.Classifier.Backend)
	}
	return nil
}
