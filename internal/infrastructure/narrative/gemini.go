package narrative

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"mri-bot/internal/domain/entity"
	"mri-bot/internal/domain/port"
)

// GeminiEngine генератор пояснений через Google Gemini.
type GeminiEngine struct {
	client *genai.Client
	opts   Options
}

// NewGeminiEngine создаёт клиента один раз при старте.
func NewGeminiEngine(ctx context.Context, key string, opts Options) (*GeminiEngine, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY is empty", entity.ErrConfiguration)
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(key))
	if err != nil {
		return nil, fmt.Errorf("%w: gemini client: %v", entity.ErrConfiguration, err)
	}
	return &GeminiEngine{client: cl, opts: opts.withDefaults()}, nil
}

func (e *GeminiEngine) Name() string { return "gemini" }

// Close закрывает клиента.
func (e *GeminiEngine) Close() error {
	return e.client.Close()
}

// Explain отправляет текст запроса и JPEG карты одним сообщением.
func (e *GeminiEngine) Explain(ctx context.Context, in port.NarrativeRequest) (string, error) {
	if len(in.Overlay) == 0 {
		return "", fmt.Errorf("%w: gemini: empty overlay image", entity.ErrRemoteService)
	}
	m := e.client.GenerativeModel(strings.TrimSpace(e.opts.Model))
	m.SetTemperature(1)
	m.SetTopP(1)
	m.SetMaxOutputTokens(int32(e.opts.MaxTokens))

	parts := []genai.Part{
		genai.Text(BuildPrompt(in.Label, in.Confidence)),
		genai.ImageData("jpeg", in.Overlay),
	}

	var text string
	err := withRetry(ctx, e.opts, func(ctx context.Context) error {
		resp, err := m.GenerateContent(ctx, parts...)
		if err != nil {
			return err
		}
		text = firstText(resp)
		if text == "" {
			return permanent(fmt.Errorf("gemini: empty response"))
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", entity.ErrRemoteService, err)
	}
	return text, nil
}

// firstText склеивает текстовые части первого кандидата.
func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return strings.TrimSpace(b.String())
}

var _ port.Narrator = (*GeminiEngine)(nil)
