//go:build gocv
// +build gocv

package vision

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/mat"

	"mri-bot/internal/domain/port"
	"mri-bot/internal/infrastructure/imaging"
)

// Available сообщает, собран ли бэкенд с OpenCV.
const Available = true

// GoCVOps примитивы карты значимости поверх OpenCV.
type GoCVOps struct{}

// NewGoCVOps создаёт бэкенд OpenCV.
func NewGoCVOps() (*GoCVOps, error) {
	return &GoCVOps{}, nil
}

func (o *GoCVOps) Name() string { return "gocv" }

// ResizeMap масштабирует карту через cv::resize с INTER_LINEAR.
func (o *GoCVOps) ResizeMap(src *mat.Dense, size image.Point) (*mat.Dense, error) {
	if size.X <= 0 || size.Y <= 0 {
		return nil, fmt.Errorf("bad target size %v", size)
	}
	m := denseToMat(src)
	defer m.Close()

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(m, &resized, size, 0, 0, gocv.InterpolationLinear)
	if resized.Empty() {
		return nil, errors.New("resize produced empty mat")
	}
	return matToDense(resized), nil
}

// GaussianBlur сглаживает карту; при sigma=0 OpenCV выводит её из размера ядра.
func (o *GoCVOps) GaussianBlur(src *mat.Dense, ksize int) (*mat.Dense, error) {
	if ksize <= 0 || ksize%2 == 0 {
		return nil, fmt.Errorf("kernel size must be odd and positive, got %d", ksize)
	}
	m := denseToMat(src)
	defer m.Close()

	blur := gocv.NewMat()
	defer blur.Close()
	gocv.GaussianBlur(m, &blur, image.Pt(ksize, ksize), 0, 0, gocv.BorderDefault)
	if blur.Empty() {
		return nil, errors.New("blur produced empty mat")
	}
	return matToDense(blur), nil
}

// ColorizeJet раскрашивает карту палитрой COLORMAP_JET и переводит BGR в RGB.
func (o *GoCVOps) ColorizeJet(src *mat.Dense) (*image.RGBA, error) {
	rows, cols := src.Dims()
	gray := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV8U)
	defer gray.Close()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			gray.SetUCharAt(r, c, imaging.ToByte(src.At(r, c)))
		}
	}

	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.ApplyColorMap(gray, &bgr, gocv.ColormapJet)

	rgb := gocv.NewMat()
	defer rgb.Close()
	gocv.CvtColor(bgr, &rgb, gocv.ColorBGRToRGB)

	return rgbMatToImage(rgb)
}

// ResizeImage масштабирует цветное изображение через cv::resize.
func (o *GoCVOps) ResizeImage(src image.Image, size image.Point) (*image.RGBA, error) {
	if src == nil {
		return nil, errors.New("image is nil")
	}
	if size.X <= 0 || size.Y <= 0 {
		return nil, fmt.Errorf("bad target size %v", size)
	}
	b := src.Bounds()
	buf := make([]byte, 0, b.Dx()*b.Dy()*3)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := src.At(x, y).RGBA()
			buf = append(buf, uint8(r>>8), uint8(g>>8), uint8(bl>>8))
		}
	}
	m, err := gocv.NewMatFromBytes(b.Dy(), b.Dx(), gocv.MatTypeCV8UC3, buf)
	if err != nil {
		return nil, fmt.Errorf("image to mat: %w", err)
	}
	defer m.Close()

	if b.Dx() == size.X && b.Dy() == size.Y {
		return rgbMatToImage(m)
	}

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(m, &resized, size, 0, 0, gocv.InterpolationLinear)
	return rgbMatToImage(resized)
}

// denseToMat копирует карту в одноканальный CV_32F.
func denseToMat(d *mat.Dense) gocv.Mat {
	rows, cols := d.Dims()
	m := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV32F)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			m.SetFloatAt(r, c, float32(d.At(r, c)))
		}
	}
	return m
}

func matToDense(m gocv.Mat) *mat.Dense {
	d := mat.NewDense(m.Rows(), m.Cols(), nil)
	for r := 0; r < m.Rows(); r++ {
		for c := 0; c < m.Cols(); c++ {
			d.Set(r, c, float64(m.GetFloatAt(r, c)))
		}
	}
	return d
}

// rgbMatToImage читает трёхканальный Mat, каналы уже в порядке RGB.
func rgbMatToImage(m gocv.Mat) (*image.RGBA, error) {
	if m.Empty() || m.Channels() != 3 {
		return nil, fmt.Errorf("expected 3-channel mat, got %d channels", m.Channels())
	}
	data := m.ToBytes()
	out := image.NewRGBA(image.Rect(0, 0, m.Cols(), m.Rows()))
	for i, j := 0, 0; i+2 < len(data); i, j = i+3, j+4 {
		out.Pix[j] = data[i]
		out.Pix[j+1] = data[i+1]
		out.Pix[j+2] = data[i+2]
		out.Pix[j+3] = 0xff
	}
	return out, nil
}

var _ port.SaliencyOps = (*GoCVOps)(nil)
