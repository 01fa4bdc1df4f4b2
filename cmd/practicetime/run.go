package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/christian-lee/practicetime/internal/audio"
	"github.com/christian-lee/practicetime/internal/classify"
	"github.com/christian-lee/practicetime/internal/config"
	"github.com/christian-lee/practicetime/internal/journal"
	"github.com/christian-lee/practicetime/internal/session"
	"github.com/christian-lee/practicetime/internal/store"
	"github.com/christian-lee/practicetime/internal/web"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the control panel and listen for practice",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			return run(cmd.Context(), cfgPath)
		},
	}
}

func sessionOptions(cfg *config.Config) session.Options {
	return session.Options{
		Policy: session.Policy{
			IdleThreshold: cfg.Session.IdleThreshold,
			MusicCredit:   cfg.Session.MusicCredit,
		},
		Tick:       cfg.Session.Tick,
		MusicLabel: cfg.Session.MusicLabel,
	}
}

// loadHotConfig falls back to defaults, without hot reload, when the file is missing.
func loadHotConfig(path string) (*config.HotConfig, error) {
	hc, err := config.NewHotConfig(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Warn("config not found, using defaults", "path", path)
		return config.NewStaticHotConfig(config.Default()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return hc, nil
}

// classifierConfig takes the reloadable classifier settings from current but
// keeps the audio geometry of startup, which the running recorder was built with.
func classifierConfig(current, startup *config.Config) config.ClassifierConfig {
	c := current.Classifier
	c.SampleRate = startup.Classifier.SampleRate
	c.WindowSize = startup.Classifier.WindowSize
	return c
}

func run(ctx context.Context, cfgPath string) error {
	hc, err := loadHotConfig(cfgPath)
	if err != nil {
		return err
	}
	cfg := hc.Get()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			slog.Info("shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()

	jr := journal.New(cfg.Journal.Path, cfg.Journal.MaxChars)

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	if cfg.Web.Username != "" && cfg.Web.Password != "" {
		if err := st.EnsureUser(cfg.Web.Username, cfg.Web.Password); err != nil {
			return fmt.Errorf("ensure web user: %w", err)
		}
	}

	// The classifier is built from the config current at each start.
	factory := func(ctx context.Context) (classify.Classifier, error) {
		return classify.New(ctx, classifierConfig(hc.Get(), cfg))
	}

	capturer := audio.NewCapturer(cfg.Capture.FFmpeg, cfg.Capture.Format, cfg.Capture.Device, cfg.Classifier.SampleRate)
	recorder := audio.NewRecorder(capturer, cfg.Classifier.WindowSize)

	ctl := session.NewController(factory, recorder, jr, sessionOptions(cfg),
		session.WithHistory(st),
		session.WithPermission(st),
	)

	hc.OnReload(func(c *config.Config) {
		ctl.SetOptions(sessionOptions(c))
		if c.Capture != cfg.Capture || c.Classifier.SampleRate != cfg.Classifier.SampleRate ||
			c.Classifier.WindowSize != cfg.Classifier.WindowSize || c.Store != cfg.Store || c.Web.Port != cfg.Web.Port {
			slog.Warn("capture, sample rate, window size, store and web port changes take effect after restart")
		}
	})
	if err := hc.Watch(); err != nil {
		slog.Warn("config hot reload disabled", "err", err)
	}
	defer hc.Close()

	srv := web.NewServer(ctl, jr, st, cfg.Web.Port)
	srv.Start()

	slog.Info("🚀 practicetime started", "journal", jr.Path(), "store", cfg.Store.Path, "backend", cfg.Classifier.Backend)

	if cfg.AutoStart {
		if _, err := ctl.Toggle(ctx); err != nil {
			slog.Warn("autostart did not start a session", "err", err)
		}
	}

	<-ctx.Done()

	if ctl.Running() {
		if err := ctl.Stop(); err != nil {
			slog.Warn("stop session", "err", err)
		}
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("web shutdown", "err", err)
	}
	slog.Info("bye")
	return nil
}
