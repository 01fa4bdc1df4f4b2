package classify

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"
	"os"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
	"gopkg.in/yaml.v3"
)

const (
	LabelMusic   = "Music"
	LabelSpeech  = "Speech"
	LabelSilence = "Silence"
)

// Profile holds the feature weights of the spectral music model.
type Profile struct {
	FrameSize int `yaml:"frame_size"` // FFT size in samples
	HopSize   int `yaml:"hop_size"`

	LowBandHz   float64 `yaml:"low_band_hz"`   // bass/drums band upper edge
	VoiceBandHz float64 `yaml:"voice_band_hz"` // voice band upper edge (lower edge = LowBandHz)

	LowGain      float64 `yaml:"low_gain"`
	FlatnessGain float64 `yaml:"flatness_gain"`
	SpreadGain   float64 `yaml:"spread_gain"`

	LowWeight      float64 `yaml:"low_weight"`
	FlatnessWeight float64 `yaml:"flatness_weight"`
	SpreadWeight   float64 `yaml:"spread_weight"`

	SilenceFloor float64 `yaml:"silence_floor"` // total frame energy below this is silence
}

func DefaultProfile() Profile {
	return Profile{
		FrameSize:      2048, // ~128ms at 16kHz
		HopSize:        1024,
		LowBandHz:      300,
		VoiceBandHz:    3000,
		LowGain:        3.0,
		FlatnessGain:   2.5,
		SpreadGain:     2.0,
		LowWeight:      0.4,
		FlatnessWeight: 0.35,
		SpreadWeight:   0.25,
		SilenceFloor:   1e-10,
	}
}

// LoadProfile reads a YAML weights profile. Missing keys keep their defaults.
func LoadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read model profile: %w", err)
	}
	p := DefaultProfile()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("parse model profile: %w", err)
	}
	if p.FrameSize <= 0 || p.HopSize <= 0 {
		return Profile{}, fmt.Errorf("model profile %s: frame_size and hop_size must be positive", path)
	}
	return p, nil
}

// SpectralClassifier scores music presence from spectral shape alone:
// music has sustained low-frequency energy, a flatter spectrum and energy
// outside the voice band.
type SpectralClassifier struct {
	format  Format
	opts    Options
	profile Profile

	mu   sync.Mutex
	fft  *fourier.FFT
	hann []float64
	buf  []float64
	coef []complex128
}

func NewSpectralClassifier(format Format, opts Options, profile Profile) (*SpectralClassifier, error) {
	if format.SampleRate <= 0 || format.WindowSize <= 0 {
		return nil, fmt.Errorf("%w: invalid input format %+v", ErrModelLoad, format)
	}
	if profile.FrameSize <= 0 || profile.HopSize <= 0 {
		return nil, fmt.Errorf("%w: invalid frame geometry", ErrModelLoad)
	}
	if profile.FrameSize > format.WindowSize {
		return nil, fmt.Errorf("%w: frame size %d exceeds window size %d", ErrModelLoad, profile.FrameSize, format.WindowSize)
	}

	n := profile.FrameSize
	hann := make([]float64, n)
	for i := range hann {
		hann[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return &SpectralClassifier{
		format:  format,
		opts:    opts,
		profile: profile,
		fft:     fourier.NewFFT(n),
		hann:    hann,
		buf:     make([]float64, n),
		coef:    make([]complex128, n/2+1),
	}, nil
}

func (c *SpectralClassifier) Format() Format { return c.format }

func (c *SpectralClassifier) Close() error { return nil }

// Classify averages per-frame music scores over the window.
func (c *SpectralClassifier) Classify(ctx context.Context, window []int16) ([]Category, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(window) < c.profile.FrameSize {
		return nil, fmt.Errorf("window too short: %d samples, need %d", len(window), c.profile.FrameSize)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var sum float64
	frames := 0
	for off := 0; off+c.profile.FrameSize <= len(window); off += c.profile.HopSize {
		score, ok := c.frameScore(window[off : off+c.profile.FrameSize])
		if !ok {
			continue // silent frame
		}
		sum += score
		frames++
	}

	if frames == 0 {
		return Filter([]Category{{Label: LabelSilence, Score: 1}}, c.opts), nil
	}

	music := float32(clamp(sum/float64(frames), 0, 1))
	return Filter([]Category{
		{Label: LabelMusic, Score: music},
		{Label: LabelSpeech, Score: 1 - music},
	}, c.opts), nil
}

// frameScore returns the music score of one frame, or false when the frame is silent.
func (c *SpectralClassifier) frameScore(frame []int16) (float64, bool) {
	for i, s := range frame {
		c.buf[i] = float64(s) / 32768.0 * c.hann[i]
	}
	coef := c.fft.Coefficients(c.coef, c.buf)

	binHz := float64(c.format.SampleRate) / float64(c.profile.FrameSize)
	lowEnd := int(c.profile.LowBandHz / binHz)
	midEnd := int(c.profile.VoiceBandHz / binHz)

	var lowEnergy, midEnergy, totalEnergy float64
	var logSum, arithSum float64
	count := 0
	for i, z := range coef {
		m := cmplx.Abs(z)
		e := m * m
		totalEnergy += e
		if i < lowEnd {
			lowEnergy += e
		} else if i < midEnd {
			midEnergy += e
		}
		if m > 1e-10 {
			logSum += math.Log(m)
			arithSum += m
			count++
		}
	}

	if totalEnergy < c.profile.SilenceFloor {
		return 0, false
	}

	// Spectral flatness: geometric mean / arithmetic mean of magnitudes.
	flatness := 0.0
	if count > 0 && arithSum > 0 {
		flatness = math.Exp(logSum/float64(count)) / (arithSum / float64(count))
	}
	lowRatio := lowEnergy / totalEnergy
	midRatio := midEnergy / totalEnergy

	p := c.profile
	score := clamp(lowRatio*p.LowGain, 0, 1)*p.LowWeight +
		clamp(flatness*p.FlatnessGain, 0, 1)*p.FlatnessWeight +
		clamp((1-midRatio)*p.SpreadGain, 0, 1)*p.SpreadWeight
	return score, true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
