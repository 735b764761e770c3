package onnx

import (
	"encoding/json"
	"fmt"
	"image"
	"os"
	"strings"

	"mri-bot/internal/domain/entity"
)

// Layout раскладка входного тензора сети.
type Layout string

const (
	LayoutNHWC Layout = "nhwc" // Keras по умолчанию
	LayoutNCHW Layout = "nchw"
)

// Metadata описание экспортированной модели, лежит рядом с .onnx.
type Metadata struct {
	InputShape  []int64  `json:"input_shape"`
	OutputShape []int64  `json:"output_shape"`
	Classes     []string `json:"classes"`
	ImageSize   int      `json:"image_size"`
	Layout      Layout   `json:"layout"`
	InputName   string   `json:"input_name"`
	OutputName  string   `json:"output_name"`

	// Граф градиента: вход сети + one-hot класса, выход d score / d input.
	GradientClassInput string `json:"gradient_class_input"`
	GradientOutput     string `json:"gradient_output"`
}

// LoadMetadata читает и проверяет метаданные модели.
func LoadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read metadata: %v", entity.ErrModelLoad, err)
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("%w: parse metadata %s: %v", entity.ErrModelLoad, path, err)
	}
	meta.applyDefaults()
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (m *Metadata) applyDefaults() {
	if m.Layout == "" {
		m.Layout = LayoutNHWC
	}
	m.Layout = Layout(strings.ToLower(string(m.Layout)))
	if m.InputName == "" {
		m.InputName = "input"
	}
	if m.OutputName == "" {
		m.OutputName = "output"
	}
	if m.GradientClassInput == "" {
		m.GradientClassInput = "class_onehot"
	}
	if m.GradientOutput == "" {
		m.GradientOutput = "gradient"
	}
}

// Validate сверяет форму входа с рабочим разрешением, а классы с фиксированным порядком меток.
func (m *Metadata) Validate() error {
	if len(m.InputShape) != 4 || m.InputShape[0] != 1 {
		return fmt.Errorf("%w: input shape %v, want rank 4 with batch 1", entity.ErrModelLoad, m.InputShape)
	}
	size := m.InputSize()
	var channels int64
	switch m.Layout {
	case LayoutNHWC:
		channels = m.InputShape[3]
	case LayoutNCHW:
		channels = m.InputShape[1]
	default:
		return fmt.Errorf("%w: unknown layout %q", entity.ErrModelLoad, m.Layout)
	}
	if channels != 3 || size != entity.WorkingSize {
		return fmt.Errorf("%w: input shape %v (%s), want %dx%dx3", entity.ErrModelLoad, m.InputShape, m.Layout,
			entity.WorkingSize.X, entity.WorkingSize.Y)
	}
	if m.ImageSize != 0 && (m.ImageSize != size.X || m.ImageSize != size.Y) {
		return fmt.Errorf("%w: image_size %d does not match input shape %v", entity.ErrModelLoad, m.ImageSize, m.InputShape)
	}
	if len(m.OutputShape) != 2 || m.OutputShape[0] != 1 || m.OutputShape[1] != int64(len(entity.Labels)) {
		return fmt.Errorf("%w: output shape %v, want [1 %d]", entity.ErrModelLoad, m.OutputShape, len(entity.Labels))
	}
	if len(m.Classes) != len(entity.Labels) {
		return fmt.Errorf("%w: %d classes, want %d", entity.ErrModelLoad, len(m.Classes), len(entity.Labels))
	}
	for i, c := range m.Classes {
		if !strings.EqualFold(strings.TrimSpace(c), entity.Labels[i]) {
			return fmt.Errorf("%w: class %d is %q, want %q", entity.ErrModelLoad, i, c, entity.Labels[i])
		}
	}
	return nil
}

// InputSize ширина и высота входа.
func (m *Metadata) InputSize() image.Point {
	if m.Layout == LayoutNCHW {
		return image.Pt(int(m.InputShape[3]), int(m.InputShape[2]))
	}
	return image.Pt(int(m.InputShape[2]), int(m.InputShape[1]))
}

// pack копирует HWC-тензор в буфер сети.
func (m *Metadata) pack(t *entity.Tensor, dst []float32) {
	if m.Layout == LayoutNHWC {
		copy(dst, t.Data)
		return
	}
	plane := t.Width * t.Height
	for y := 0; y < t.Height; y++ {
		for x := 0; x < t.Width; x++ {
			for c := 0; c < t.Channels; c++ {
				dst[c*plane+y*t.Width+x] = t.At(x, y, c)
			}
		}
	}
}

// unpack обратное к pack.
func (m *Metadata) unpack(src []float32, t *entity.Tensor) {
	if m.Layout == LayoutNHWC {
		copy(t.Data, src)
		return
	}
	plane := t.Width * t.Height
	for y := 0; y < t.Height; y++ {
		for x := 0; x < t.Width; x++ {
			for c := 0; c < t.Channels; c++ {
				t.Set(x, y, c, src[c*plane+y*t.Width+x])
			}
		}
	}
}
