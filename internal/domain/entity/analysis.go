package entity

import "time"

// Analysis запись истории: один снимок, один прогон конвейера.
type Analysis struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	FileName     string    `json:"file_name"`
	Model        ModelID   `json:"model"`
	Label        string    `json:"label"`
	Confidence   float64   `json:"confidence"`
	OverlayPath  string    `json:"overlay_path,omitempty"`
	Explanation  string    `json:"explanation,omitempty"`
	SaliencyErr  string    `json:"saliency_error,omitempty"`
	NarrativeErr string    `json:"narrative_error,omitempty"`
}
