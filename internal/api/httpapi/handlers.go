package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	app "mri-bot/internal/application"
	"mri-bot/internal/domain/entity"
	"mri-bot/internal/infrastructure/imaging"
)

// Analyzer то, что нужно HTTP-интерфейсу от конвейера.
type Analyzer interface {
	Analyze(ctx context.Context, req app.AnalyzeRequest) (*app.AnalysisResult, error)
	Models() []entity.ModelID
	History(ctx context.Context, limit int) ([]*entity.Analysis, error)
}

type Handler struct {
	analyzer     Analyzer
	defaultModel entity.ModelID
}

func NewHandler(analyzer Analyzer, defaultModel entity.ModelID) *Handler {
	return &Handler{analyzer: analyzer, defaultModel: defaultModel}
}

// Routes регистрирует обработчики.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", enableCORS(h.Health))
	mux.HandleFunc("/models", enableCORS(h.Models))
	mux.HandleFunc("/analyze", enableCORS(h.Analyze))
	mux.HandleFunc("/analyses", enableCORS(h.Analyses))
	return mux
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type modelInfo struct {
	ID      entity.ModelID `json:"id"`
	Title   string         `json:"title"`
	Default bool           `json:"default"`
}

func (h *Handler) Models(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ids := h.analyzer.Models()
	out := make([]modelInfo, 0, len(ids))
	for _, id := range ids {
		out = append(out, modelInfo{ID: id, Title: id.Title(), Default: id == h.defaultModel})
	}
	writeJSON(w, http.StatusOK, out)
}

type analyzeResponse struct {
	ID            string                    `json:"id"`
	Model         entity.ModelID            `json:"model"`
	FileName      string                    `json:"file_name"`
	Label         string                    `json:"label"`
	Confidence    string                    `json:"confidence"`
	Probabilities []entity.ClassProbability `json:"probabilities"`
	OverlayJPEG   []byte                    `json:"overlay_jpeg,omitempty"`
	OverlayPath   string                    `json:"overlay_path,omitempty"`
	Explanation   string                    `json:"explanation,omitempty"`
	SaliencyError string                    `json:"saliency_error,omitempty"`
	PersistError  string                    `json:"persist_error,omitempty"`
	NarrativeErr  string                    `json:"narrative_error,omitempty"`
}

func newAnalyzeResponse(res *app.AnalysisResult) analyzeResponse {
	out := analyzeResponse{
		ID:            res.ID,
		Model:         res.Model,
		FileName:      res.FileName,
		Label:         res.Prediction.Label(),
		Confidence:    res.Prediction.ConfidencePercent(),
		Probabilities: res.Prediction.Sorted(),
		OverlayJPEG:   res.OverlayJPEG,
		OverlayPath:   res.OverlayPath,
		Explanation:   res.Explanation,
	}
	if res.SaliencyErr != nil {
		out.SaliencyError = res.SaliencyErr.Error()
	}
	if res.PersistErr != nil {
		out.PersistError = res.PersistErr.Error()
	}
	if res.NarrativeErr != nil {
		out.NarrativeErr = res.NarrativeErr.Error()
	}
	return out
}

// Analyze принимает multipart-форму: файл image и необязательное поле model.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadSize+1<<20)
	if err := r.ParseMultipartForm(imaging.MaxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "Failed to parse form")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No image file provided. Use 'image' as the form field name")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, imaging.MaxUploadSize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read image")
		return
	}

	model := h.defaultModel
	if raw := r.FormValue("model"); raw != "" {
		if model, err = entity.ParseModelID(raw); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	log.Printf("Received file: %s, size: %d bytes, model: %s", header.Filename, len(data), model)

	res, err := h.analyzer.Analyze(r.Context(), app.AnalyzeRequest{Model: model, FileName: header.Filename, Data: data})
	if err != nil {
		log.Printf("Analyze error: %v", err)
		switch {
		case errors.Is(err, entity.ErrInputValidation):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, entity.ErrModelLoad):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "Analysis failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, newAnalyzeResponse(res))
}

// Analyses последние записи истории, ?limit=N (по умолчанию 20).
func (h *Handler) Analyses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	items, err := h.analyzer.History(r.Context(), limit)
	if err != nil {
		log.Printf("History error: %v", err)
		writeError(w, http.StatusInternalServerError, "History is unavailable")
		return
	}
	if items == nil {
		items = []*entity.Analysis{}
	}
	writeJSON(w, http.StatusOK, items)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func enableCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next(w, r)
	}
}
