package audio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
)

// Opener starts an audio stream and returns raw PCM s16le mono data.
type Opener interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Capturer captures microphone audio via ffmpeg.
type Capturer struct {
	FFmpeg     string // binary path
	Format     string // ffmpeg input format (pulse, alsa, avfoundation, dshow)
	Device     string
	SampleRate int
	Channels   int
}

func NewCapturer(ffmpeg, format, device string, sampleRate int) *Capturer {
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	return &Capturer{
		FFmpeg:     ffmpeg,
		Format:     format,
		Device:     device,
		SampleRate: sampleRate,
		Channels:   1,
	}
}

func (c *Capturer) args() []string {
	var args []string
	if c.Format != "" {
		args = append(args, "-f", c.Format)
	}
	return append(args,
		"-i", c.Device,
		"-vn",                  // no video
		"-acodec", "pcm_s16le", // raw PCM
		"-ar", fmt.Sprintf("%d", c.SampleRate),
		"-ac", fmt.Sprintf("%d", c.Channels),
		"-f", "s16le", // raw output format
		"-loglevel", "error",
		"-", // output to stdout
	)
}

// Open begins capturing from the configured device and returns a reader of raw PCM s16le data.
// The ffmpeg process is killed when ctx is cancelled.
func (c *Capturer) Open(ctx context.Context) (io.ReadCloser, error) {
	cmd := exec.CommandContext(ctx, c.FFmpeg, c.args()...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	slog.Info("audio capture started (ffmpeg)", "format", c.Format, "device", c.Device, "rate", c.SampleRate)

	go func() {
		<-ctx.Done()
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		slog.Info("audio capture stopped")
	}()

	return stdout, nil
}
