package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"mri-bot/internal/domain/entity"
	"mri-bot/internal/infrastructure/vision"
)

// Провайдеры сервиса пояснений.
const (
	ProviderGroq   = "groq"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Бэкенды обработки изображений.
const (
	BackendNative = "native"
	BackendGoCV   = "gocv"
)

// DefaultImageBackend основной бэкенд OpenCV, если он собран, иначе чистый Go.
func DefaultImageBackend() string {
	if vision.Available {
		return BackendGoCV
	}
	return BackendNative
}

var defaultNarrativeModels = map[string]string{
	ProviderGroq:   "llama-3.2-11b-vision-preview",
	ProviderOpenAI: "gpt-4o-mini",
	ProviderGemini: "gemini-2.5-flash",
}

var providerKeys = map[string]string{
	ProviderGroq:   "GROQ_API_KEY",
	ProviderOpenAI: "OPENAI_API_KEY",
	ProviderGemini: "GEMINI_API_KEY",
}

// Narrative настройки сервиса пояснений.
type Narrative struct {
	Provider  string
	APIKey    string
	Model     string
	BaseURL   string
	Timeout   time.Duration
	Retries   int
	MaxTokens int
}

type Config struct {
	TelegramToken string
	HTTPAddr      string

	Narrative Narrative

	SaliencyDir    string
	ModelsDir      string
	ModelsFile     string
	DefaultModel   entity.ModelID
	ImageBackend   string
	ONNXRuntimeLib string
	DatabaseURL    string
}

// Load читает .env и переменные окружения и проверяет результат.
func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	return parse(os.Getenv)
}

func parse(getenv func(string) string) (*Config, error) {
	env := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	provider := strings.ToLower(env("NARRATIVE_PROVIDER", ProviderGroq))
	cfg := &Config{
		TelegramToken: env("TELEGRAM_TOKEN", ""),
		HTTPAddr:      env("HTTP_ADDR", ""),
		Narrative: Narrative{
			Provider: provider,
			APIKey:   env(providerKeys[provider], ""),
			Model:    env("NARRATIVE_MODEL", defaultNarrativeModels[provider]),
			BaseURL:  env("NARRATIVE_BASE_URL", ""),
		},
		SaliencyDir:    env("SALIENCY_DIR", "saliency_maps"),
		ModelsDir:      env("MODELS_DIR", "models"),
		ModelsFile:     env("MODELS_FILE", ""),
		ImageBackend:   strings.ToLower(env("IMAGE_BACKEND", DefaultImageBackend())),
		ONNXRuntimeLib: env("ONNXRUNTIME_LIB", ""),
		DatabaseURL:    env("DATABASE_URL", ""),
	}

	var err error
	if cfg.DefaultModel, err = entity.ParseModelID(env("DEFAULT_MODEL", string(entity.ModelXception))); err != nil {
		return nil, fmt.Errorf("%w: DEFAULT_MODEL: %v", entity.ErrConfiguration, err)
	}
	if cfg.Narrative.Timeout, err = time.ParseDuration(env("NARRATIVE_TIMEOUT", "60s")); err != nil {
		return nil, fmt.Errorf("%w: NARRATIVE_TIMEOUT: %v", entity.ErrConfiguration, err)
	}
	if cfg.Narrative.Retries, err = strconv.Atoi(env("NARRATIVE_RETRIES", "2")); err != nil {
		return nil, fmt.Errorf("%w: NARRATIVE_RETRIES: %v", entity.ErrConfiguration, err)
	}
	if cfg.Narrative.MaxTokens, err = strconv.Atoi(env("NARRATIVE_MAX_TOKENS", "1024")); err != nil {
		return nil, fmt.Errorf("%w: NARRATIVE_MAX_TOKENS: %v", entity.ErrConfiguration, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет конфигурацию до запуска интерфейсов.
func (c *Config) Validate() error {
	if c.TelegramToken == "" && c.HTTPAddr == "" {
		return fmt.Errorf("%w: neither TELEGRAM_TOKEN nor HTTP_ADDR is set", entity.ErrConfiguration)
	}

	key, ok := providerKeys[c.Narrative.Provider]
	if !ok {
		return fmt.Errorf("%w: unknown NARRATIVE_PROVIDER %q (groq, openai, gemini)", entity.ErrConfiguration, c.Narrative.Provider)
	}
	if c.Narrative.APIKey == "" {
		return fmt.Errorf("%w: %s is required for provider %s", entity.ErrConfiguration, key, c.Narrative.Provider)
	}
	if c.Narrative.Timeout <= 0 {
		return fmt.Errorf("%w: NARRATIVE_TIMEOUT must be positive", entity.ErrConfiguration)
	}
	if c.Narrative.Retries < 0 {
		return fmt.Errorf("%w: NARRATIVE_RETRIES must be >= 0", entity.ErrConfiguration)
	}
	if c.Narrative.MaxTokens <= 0 {
		return fmt.Errorf("%w: NARRATIVE_MAX_TOKENS must be positive", entity.ErrConfiguration)
	}

	switch c.ImageBackend {
	case BackendNative:
	case BackendGoCV:
		if !vision.Available {
			return fmt.Errorf("%w: IMAGE_BACKEND=gocv requires a build with -tags gocv", entity.ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown IMAGE_BACKEND %q (native, gocv)", entity.ErrConfiguration, c.ImageBackend)
	}
	if c.SaliencyDir == "" {
		return fmt.Errorf("%w: SALIENCY_DIR is empty", entity.ErrConfiguration)
	}
	return nil
}
