package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"
)

const geminiPrompt = `You are an audio event classifier. Listen to the attached clip and ` +
	`list the audio events you hear, using AudioSet-style labels such as "Music", "Speech", ` +
	`"Silence", "Singing", "Musical instrument". ` +
	`Respond with ONLY a JSON array of objects {"label": string, "score": number between 0 and 1}, ` +
	`ordered by descending score. Use exactly "Music" when music is playing.`

// GeminiClassifier sends each window to a Gemini model as an inline WAV clip.
type GeminiClassifier struct {
	client *genai.Client
	model  string
	format Format
	opts   Options
}

func NewGeminiClassifier(ctx context.Context, apiKey, model string, format Format, opts Options) (*GeminiClassifier, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: gemini api key not configured", ErrModelLoad)
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create gemini client: %v", ErrModelLoad, err)
	}
	return &GeminiClassifier{
		client: client,
		model:  model,
		format: format,
		opts:   opts,
	}, nil
}

func (g *GeminiClassifier) Format() Format { return g.format }

func (g *GeminiClassifier) Classify(ctx context.Context, window []int16) ([]Category, error) {
	wav := EncodeWAV(window, g.format.SampleRate)
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(geminiPrompt),
			genai.NewPartFromBytes(wav, "audio/wav"),
		}, genai.RoleUser),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, fmt.Errorf("gemini classify: %w", err)
	}

	cats, err := parseCategories(resp.Text())
	if err != nil {
		return nil, err
	}
	slog.Debug("gemini classified", "model", g.model, "categories", cats)
	return Filter(cats, g.opts), nil
}

func (g *GeminiClassifier) Close() error {
	// genai client doesn't need explicit close
	return nil
}

// parseCategories decodes the model's JSON answer, tolerating markdown fences.
func parseCategories(text string) ([]Category, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var cats []Category
	if err := json.Unmarshal([]byte(text), &cats); err != nil {
		return nil, fmt.Errorf("parse gemini categories: %w", err)
	}
	out := cats[:0]
	for _, c := range cats {
		c.Label = strings.TrimSpace(c.Label)
		if c.Label == "" {
			continue
		}
		c.Score = float32(clamp(float64(c.Score), 0, 1))
		out = append(out, c)
	}
	return out, nil
}
