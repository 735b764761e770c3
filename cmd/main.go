package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mri-bot/config"
	telegram "mri-bot/internal/api"
	"mri-bot/internal/api/httpapi"
	app "mri-bot/internal/application"
	"mri-bot/internal/container"
	"mri-bot/internal/domain/port"
	"mri-bot/internal/domain/saliency"
	"mri-bot/internal/infrastructure/imaging"
	"mri-bot/internal/infrastructure/narrative"
	"mri-bot/internal/infrastructure/onnx"
	"mri-bot/internal/infrastructure/storage"
	"mri-bot/internal/infrastructure/vision"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Примитивы обработки изображений и построитель карт значимости
	ops, err := newSaliencyOps(cfg.ImageBackend)
	if err != nil {
		log.Fatalf("Failed to init image backend: %v", err)
	}
	explainer, err := saliency.NewExplainer(ops, saliency.DefaultParams())
	if err != nil {
		log.Fatalf("Failed to create explainer: %v", err)
	}

	// Реестр классификаторов, модели грузятся при первом обращении
	specs, err := cfg.Models()
	if err != nil {
		log.Fatalf("Failed to load models: %v", err)
	}
	rt := onnx.NewRuntime(cfg.ONNXRuntimeLib)
	defer rt.Close()

	registry := app.NewClassifierRegistry()
	for _, spec := range specs {
		registry.Register(spec.ID, classifierFactory(rt, spec))
	}
	if !registry.Has(cfg.DefaultModel) {
		log.Fatalf("DEFAULT_MODEL %q is not in the model registry", cfg.DefaultModel)
	}

	narrator, err := newNarrator(ctx, cfg.Narrative)
	if err != nil {
		log.Fatalf("Failed to create narrator: %v", err)
	}

	overlays, err := storage.NewFileOverlayStore(cfg.SaliencyDir)
	if err != nil {
		log.Fatalf("Failed to prepare %s: %v", cfg.SaliencyDir, err)
	}

	history, closeHistory, err := newHistory(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to open analysis history: %v", err)
	}
	defer closeHistory()

	// Собираем сервисы приложения
	appContainer := container.New(container.Deps{
		Users:     storage.NewMemoryUserRepository(cfg.DefaultModel),
		Registry:  registry,
		Explainer: explainer,
		Narrator:  narrator,
		Overlays:  overlays,
		History:   history,
	})
	defer func() {
		if err := appContainer.Close(); err != nil {
			log.Printf("Shutdown: %v", err)
		}
	}()

	log.Printf("Backend: %s, narrator: %s, models: %v", ops.Name(), narrator.Name(), registry.IDs())

	errCh := make(chan error, 2)
	running := 0

	if cfg.TelegramToken != "" {
		bot, err := telegram.NewBot(cfg.TelegramToken, appContainer)
		if err != nil {
			log.Fatalf("Failed to create bot: %v", err)
		}
		running++
		go func() {
			log.Println("Bot is running...")
			errCh <- bot.Run(ctx)
		}()
	}

	if cfg.HTTPAddr != "" {
		srv := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           httpapi.NewHandler(appContainer.AnalysisService, cfg.DefaultModel).Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		running++
		go func() {
			log.Printf("HTTP API listening on %s", cfg.HTTPAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
				return
			}
			errCh <- nil
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	for i := 0; i < running; i++ {
		if err := <-errCh; err != nil {
			log.Printf("Front end stopped: %v", err)
			stop()
		}
	}
}

// newSaliencyOps по умолчанию OpenCV; чистый Go только при IMAGE_BACKEND=native
// или в сборке без тега gocv.
func newSaliencyOps(backend string) (port.SaliencyOps, error) {
	if backend == config.BackendGoCV {
		return vision.NewGoCVOps()
	}
	return imaging.NewNativeOps(), nil
}

// classifierFactory загружает ONNX-модель; без файла градиента модель работает, но карты не строит.
func classifierFactory(rt *onnx.Runtime, spec config.ModelSpec) port.ClassifierFactory {
	return func() (port.Classifier, error) {
		files := onnx.ModelFiles{Model: spec.Model, Metadata: spec.Metadata, Gradient: spec.Gradient}
		if files.Gradient != "" {
			if _, err := os.Stat(files.Gradient); errors.Is(err, fs.ErrNotExist) {
				log.Printf("Model %s: no gradient graph at %s, saliency maps are disabled", spec.ID, files.Gradient)
				files.Gradient = ""
			}
		}
		log.Printf("Loading model %s from %s", spec.ID, files.Model)
		return onnx.Load(rt, files)
	}
}

func newNarrator(ctx context.Context, n config.Narrative) (port.Narrator, error) {
	opts := narrative.Options{
		Model:     n.Model,
		BaseURL:   n.BaseURL,
		MaxTokens: n.MaxTokens,
		Timeout:   n.Timeout,
		Retries:   n.Retries,
	}
	switch n.Provider {
	case config.ProviderGemini:
		return narrative.NewGeminiEngine(ctx, n.APIKey, opts)
	case config.ProviderOpenAI:
		if opts.BaseURL == "" {
			opts.BaseURL = narrative.OpenAIBaseURL
		}
		return narrative.NewChatEngine(n.Provider, n.APIKey, opts), nil
	case config.ProviderGroq:
		if opts.BaseURL == "" {
			opts.BaseURL = narrative.GroqBaseURL
		}
		return narrative.NewChatEngine(n.Provider, n.APIKey, opts), nil
	default:
		return nil, fmt.Errorf("unknown narrative provider %q", n.Provider)
	}
}

// newHistory PostgreSQL при заданном DATABASE_URL, иначе память.
func newHistory(ctx context.Context, dsn string) (port.AnalysisRepository, func(), error) {
	if dsn == "" {
		return storage.NewMemoryAnalysisRepository(), func() {}, nil
	}
	db, err := storage.OpenPostgres(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	repo, err := storage.NewPostgresAnalysisRepository(ctx, db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return repo, func() { db.Close() }, nil
}
