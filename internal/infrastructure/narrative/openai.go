package narrative

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mri-bot/internal/domain/entity"
	"mri-bot/internal/domain/port"
)

// Адреса OpenAI-совместимых провайдеров.
const (
	GroqBaseURL   = "https://api.groq.com/openai/v1"
	OpenAIBaseURL = "https://api.openai.com/v1"
)

// Options общие настройки движков. Timeout ограничивает одну попытку запроса.
type Options struct {
	Model     string
	BaseURL   string
	MaxTokens int
	Timeout   time.Duration
	Retries   int
	Backoff   time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxTokens <= 0 {
		o.MaxTokens = 1024
	}
	if o.Timeout <= 0 {
		o.Timeout = 60 * time.Second
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	if o.Backoff <= 0 {
		o.Backoff = 300 * time.Millisecond
	}
	return o
}

// ChatEngine генератор пояснений через chat/completions (Groq, OpenAI и совместимые).
type ChatEngine struct {
	name   string
	APIKey string
	opts   Options
	httpc  *http.Client
}

// NewChatEngine создаёт движок; name попадает в логи и ошибки.
func NewChatEngine(name, key string, opts Options) *ChatEngine {
	opts = opts.withDefaults()
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &ChatEngine{
		name:   name,
		APIKey: key,
		opts:   opts,
		httpc:  &http.Client{},
	}
}

func (e *ChatEngine) Name() string { return e.name }

// Explain отправляет карту значимости как data URL вместе с текстом запроса.
func (e *ChatEngine) Explain(ctx context.Context, in port.NarrativeRequest) (string, error) {
	if e.APIKey == "" {
		return "", fmt.Errorf("%w: %s api key is empty", entity.ErrConfiguration, e.name)
	}
	if len(in.Overlay) == 0 {
		return "", fmt.Errorf("%w: %s: empty overlay image", entity.ErrRemoteService, e.name)
	}
	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(in.Overlay)

	body := map[string]any{
		"model": e.opts.Model,
		"messages": []any{
			map[string]any{
				"role": "user",
				"content": []any{
					map[string]any{"type": "text", "text": BuildPrompt(in.Label, in.Confidence)},
					map[string]any{"type": "image_url", "image_url": map[string]any{"url": dataURL}},
				},
			},
		},
		"temperature": 1,
		"max_tokens":  e.opts.MaxTokens,
		"top_p":       1,
		"stream":      false,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("%w: %s: marshal request: %v", entity.ErrRemoteService, e.name, err)
	}

	var text string
	err = withRetry(ctx, e.opts, func(ctx context.Context) error {
		var callErr error
		text, callErr = e.call(ctx, payload)
		return callErr
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", entity.ErrRemoteService, err)
	}
	return text, nil
}

func (e *ChatEngine) call(ctx context.Context, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.opts.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.APIKey)

	resp, err := e.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		x, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &httpStatusError{Provider: e.name, Code: resp.StatusCode, Body: strings.TrimSpace(string(x))}
	}

	var raw struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return "", permanent(fmt.Errorf("%s: bad response: %w", e.name, err))
	}
	if len(raw.Choices) == 0 {
		return "", permanent(fmt.Errorf("%s: empty response", e.name))
	}
	out := strings.TrimSpace(raw.Choices[0].Message.Content)
	if out == "" {
		return "", permanent(fmt.Errorf("%s: empty completion", e.name))
	}
	return out, nil
}

var _ port.Narrator = (*ChatEngine)(nil)
