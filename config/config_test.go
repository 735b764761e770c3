package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mri-bot/internal/domain/entity"
	"mri-bot/internal/infrastructure/vision"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := parse(envOf(map[string]string{
		"TELEGRAM_TOKEN": "tg",
		"GROQ_API_KEY":   "gk",
	}))
	require.NoError(t, err)
	require.Equal(t, ProviderGroq, cfg.Narrative.Provider)
	require.Equal(t, "gk", cfg.Narrative.APIKey)
	require.Equal(t, "llama-3.2-11b-vision-preview", cfg.Narrative.Model)
	require.Equal(t, 60*time.Second, cfg.Narrative.Timeout)
	require.Equal(t, 2, cfg.Narrative.Retries)
	require.Equal(t, 1024, cfg.Narrative.MaxTokens)
	require.Equal(t, "saliency_maps", cfg.SaliencyDir)
	require.Equal(t, entity.ModelXception, cfg.DefaultModel)
	require.Equal(t, DefaultImageBackend(), cfg.ImageBackend)
}

func TestParse_ImageBackend(t *testing.T) {
	env := map[string]string{"HTTP_ADDR": ":8080", "GROQ_API_KEY": "gk"}
	cfg, err := parse(envOf(env))
	require.NoError(t, err)
	if vision.Available {
		require.Equal(t, BackendGoCV, cfg.ImageBackend)
	} else {
		require.Equal(t, BackendNative, cfg.ImageBackend)
	}

	env["IMAGE_BACKEND"] = "NATIVE"
	cfg, err = parse(envOf(env))
	require.NoError(t, err)
	require.Equal(t, BackendNative, cfg.ImageBackend)

	env["IMAGE_BACKEND"] = "gocv"
	cfg, err = parse(envOf(env))
	if vision.Available {
		require.NoError(t, err)
		require.Equal(t, BackendGoCV, cfg.ImageBackend)
	} else {
		require.True(t, errors.Is(err, entity.ErrConfiguration), "got %v", err)
	}
}

func TestParse_MissingCredential(t *testing.T) {
	_, err := parse(envOf(map[string]string{"TELEGRAM_TOKEN": "tg"}))
	require.True(t, errors.Is(err, entity.ErrConfiguration))
	require.Contains(t, err.Error(), "GROQ_API_KEY")

	_, err = parse(envOf(map[string]string{
		"HTTP_ADDR":          ":8080",
		"NARRATIVE_PROVIDER": "gemini",
		"GROQ_API_KEY":       "gk",
	}))
	require.True(t, errors.Is(err, entity.ErrConfiguration))
	require.Contains(t, err.Error(), "GEMINI_API_KEY")
}

func TestParse_Invalid(t *testing.T) {
	base := map[string]string{"HTTP_ADDR": ":8080", "OPENAI_API_KEY": "k", "NARRATIVE_PROVIDER": "openai"}
	cases := map[string]map[string]string{
		"no front end":   {"HTTP_ADDR": "", "TELEGRAM_TOKEN": ""},
		"bad provider":   {"NARRATIVE_PROVIDER": "claude"},
		"bad timeout":    {"NARRATIVE_TIMEOUT": "soon"},
		"zero timeout":   {"NARRATIVE_TIMEOUT": "0s"},
		"bad retries":    {"NARRATIVE_RETRIES": "-1"},
		"bad backend":    {"IMAGE_BACKEND": "cuda"},
		"bad max tokens": {"NARRATIVE_MAX_TOKENS": "x"},
	}
	for name, over := range cases {
		t.Run(name, func(t *testing.T) {
			env := map[string]string{}
			for k, v := range base {
				env[k] = v
			}
			for k, v := range over {
				env[k] = v
			}
			_, err := parse(envOf(env))
			require.True(t, errors.Is(err, entity.ErrConfiguration), "got %v", err)
		})
	}
}

func TestParse_OpenAIWithOverrides(t *testing.T) {
	cfg, err := parse(envOf(map[string]string{
		"HTTP_ADDR":          ":8080",
		"NARRATIVE_PROVIDER": "OpenAI",
		"OPENAI_API_KEY":     "ok",
		"NARRATIVE_MODEL":    "gpt-4o",
		"NARRATIVE_TIMEOUT":  "15s",
		"DEFAULT_MODEL":      "ResNet50",
	}))
	require.NoError(t, err)
	require.Equal(t, ProviderOpenAI, cfg.Narrative.Provider)
	require.Equal(t, "gpt-4o", cfg.Narrative.Model)
	require.Equal(t, 15*time.Second, cfg.Narrative.Timeout)
	require.Equal(t, entity.ModelResNet50, cfg.DefaultModel)
}

func TestLoadModels(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "models.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
models:
  - id: Xception
    model: xception.onnx
    metadata: xception.json
    gradient: xception_grad.onnx
  - id: vgg16
    model: /opt/models/vgg16.onnx
    metadata: /opt/models/vgg16.json
`), 0o644))

	specs, err := LoadModels(path)
	require.NoError(t, err)
	require.Len(t, specs, 2)
	require.Equal(t, entity.ModelXception, specs[0].ID)
	require.Equal(t, filepath.Join(dir, "xception.onnx"), specs[0].Model)
	require.Equal(t, filepath.Join(dir, "xception_grad.onnx"), specs[0].Gradient)
	require.Equal(t, entity.ModelID("vgg16"), specs[1].ID)
	require.Equal(t, "/opt/models/vgg16.onnx", specs[1].Model)
	require.Empty(t, specs[1].Gradient)
}

func TestLoadModels_Invalid(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"empty":     "models: []\n",
		"duplicate": "models:\n  - {id: cnn, model: a, metadata: b}\n  - {id: CNN, model: c, metadata: d}\n",
		"no meta":   "models:\n  - {id: cnn, model: a}\n",
		"broken":    "models: [\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := LoadModels(path)
			require.True(t, errors.Is(err, entity.ErrConfiguration), "got %v", err)
		})
	}

	_, err := LoadModels(filepath.Join(dir, "missing.yaml"))
	require.True(t, errors.Is(err, entity.ErrConfiguration))
}

func TestDefaultModels(t *testing.T) {
	specs := DefaultModels("models")
	require.Len(t, specs, 3)
	require.Equal(t, filepath.Join("models", "resnet50_grad.onnx"), specs[1].Gradient)
}
