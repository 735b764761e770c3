//go:build !gocv
// +build !gocv

package vision

import (
	"errors"
	"image"

	"gonum.org/v1/gonum/mat"

	"mri-bot/internal/domain/port"
)

// Available сообщает, собран ли бэкенд с OpenCV.
const Available = false

var errNoGoCV = errors.New("gocv build tag is not enabled")

// GoCVOps заглушка бэкенда OpenCV (сборка без тега gocv).
type GoCVOps struct{}

// NewGoCVOps возвращает ошибку, если сборка без тега gocv.
func NewGoCVOps() (*GoCVOps, error) {
	return nil, errNoGoCV
}

func (o *GoCVOps) Name() string { return "gocv" }

// ResizeMap возвращает ошибку, если сборка без тега gocv.
func (o *GoCVOps) ResizeMap(*mat.Dense, image.Point) (*mat.Dense, error) {
	return nil, errNoGoCV
}

// GaussianBlur возвращает ошибку, если сборка без тега gocv.
func (o *GoCVOps) GaussianBlur(*mat.Dense, int) (*mat.Dense, error) {
	return nil, errNoGoCV
}

// ColorizeJet возвращает ошибку, если сборка без тега gocv.
func (o *GoCVOps) ColorizeJet(*mat.Dense) (*image.RGBA, error) {
	return nil, errNoGoCV
}

// ResizeImage возвращает ошибку, если сборка без тега gocv.
func (o *GoCVOps) ResizeImage(image.Image, image.Point) (*image.RGBA, error) {
	return nil, errNoGoCV
}

var _ port.SaliencyOps = (*GoCVOps)(nil)
