package port

import (
	"image"

	"gonum.org/v1/gonum/mat"
)

// SaliencyOps примитивы обработки изображений для карты значимости.
// Реализации: чистый Go (imaging) и OpenCV (vision, тег gocv).
type SaliencyOps interface {
	// Name короткое имя бэкенда для логов
	Name() string

	// ResizeMap билинейно масштабирует одноканальную карту до size (X ширина, Y высота)
	ResizeMap(src *mat.Dense, size image.Point) (*mat.Dense, error)

	// GaussianBlur сглаживает карту ядром ksize×ksize с автоматической сигмой
	GaussianBlur(src *mat.Dense, ksize int) (*mat.Dense, error)

	// ColorizeJet переводит значения [0,1] в 8 бит и раскрашивает палитрой jet в порядке RGB
	ColorizeJet(src *mat.Dense) (*image.RGBA, error)

	// ResizeImage билинейно масштабирует цветное изображение до size
	ResizeImage(src image.Image, size image.Point) (*image.RGBA, error)
}
