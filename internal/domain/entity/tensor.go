package entity

import (
	"fmt"
	"image"
)

// Tensor хранит изображение в раскладке HWC (одна картинка, без батча).
// Значения каналов нормированы в [0,1].
type Tensor struct {
	Width    int
	Height   int
	Channels int
	Data     []float32
}

// NewTensor создаёт тензор, заполненный нулями.
func NewTensor(width, height, channels int) *Tensor {
	return &Tensor{
		Width:    width,
		Height:   height,
		Channels: channels,
		Data:     make([]float32, width*height*channels),
	}
}

// Index возвращает смещение значения (x, y, c) в Data.
func (t *Tensor) Index(x, y, c int) int {
	return (y*t.Width+x)*t.Channels + c
}

// At возвращает значение канала c в точке (x, y).
func (t *Tensor) At(x, y, c int) float32 {
	return t.Data[t.Index(x, y, c)]
}

// Set записывает значение канала c в точке (x, y).
func (t *Tensor) Set(x, y, c int, v float32) {
	t.Data[t.Index(x, y, c)] = v
}

// Validate проверяет, что размеры согласованы с длиной данных.
func (t *Tensor) Validate() error {
	if t == nil {
		return fmt.Errorf("%w: tensor is nil", ErrInputValidation)
	}
	if t.Width <= 0 || t.Height <= 0 || t.Channels <= 0 {
		return fmt.Errorf("%w: bad tensor shape %dx%dx%d", ErrInputValidation, t.Width, t.Height, t.Channels)
	}
	if len(t.Data) != t.Width*t.Height*t.Channels {
		return fmt.Errorf("%w: tensor has %d values, want %d", ErrInputValidation, len(t.Data), t.Width*t.Height*t.Channels)
	}
	return nil
}

// SameShape сообщает, совпадает ли форма двух тензоров.
func (t *Tensor) SameShape(o *Tensor) bool {
	return t.Width == o.Width && t.Height == o.Height && t.Channels == o.Channels
}

// WorkingSize рабочее разрешение всех классификаторов.
var WorkingSize = image.Pt(128, 128)
