package imaging

import (
	"errors"
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/mat"

	"mri-bot/internal/domain/port"
)

// NativeOps примитивы карты значимости на чистом Go для сборок без OpenCV.
// Билинейная интерполяция с центрами пикселей, Гаусс с автоматической сигмой
// и границей reflect-101, палитра jet. Совпадение с бэкендом gocv проверяется
// тестами с тегом gocv.
type NativeOps struct{}

// NewNativeOps создаёт бэкенд без cgo.
func NewNativeOps() *NativeOps {
	return &NativeOps{}
}

func (o *NativeOps) Name() string { return "native" }

// ResizeMap билинейно масштабирует карту.
func (o *NativeOps) ResizeMap(src *mat.Dense, size image.Point) (*mat.Dense, error) {
	if size.X <= 0 || size.Y <= 0 {
		return nil, fmt.Errorf("bad target size %v", size)
	}
	rows, cols := src.Dims()
	if rows == size.Y && cols == size.X {
		return mat.DenseCopyOf(src), nil
	}

	out := mat.NewDense(size.Y, size.X, nil)
	sy := float64(rows) / float64(size.Y)
	sx := float64(cols) / float64(size.X)
	for r := 0; r < size.Y; r++ {
		y0, y1, wy := linearCoord(r, sy, rows)
		for c := 0; c < size.X; c++ {
			x0, x1, wx := linearCoord(c, sx, cols)
			top := src.At(y0, x0)*(1-wx) + src.At(y0, x1)*wx
			bottom := src.At(y1, x0)*(1-wx) + src.At(y1, x1)*wx
			out.Set(r, c, top*(1-wy)+bottom*wy)
		}
	}
	return out, nil
}

// linearCoord соседние индексы и вес второго соседа для выходной координаты i.
func linearCoord(i int, scale float64, n int) (int, int, float64) {
	f := (float64(i)+0.5)*scale - 0.5
	if f <= 0 {
		return 0, 0, 0
	}
	i0 := int(math.Floor(f))
	if i0 >= n-1 {
		return n - 1, n - 1, 0
	}
	return i0, i0 + 1, f - float64(i0)
}

// GaussianBlur сглаживает карту ядром ksize×ksize.
func (o *NativeOps) GaussianBlur(src *mat.Dense, ksize int) (*mat.Dense, error) {
	if ksize <= 0 || ksize%2 == 0 {
		return nil, fmt.Errorf("kernel size must be odd and positive, got %d", ksize)
	}
	kernel := gaussianKernel(ksize)
	half := ksize / 2
	rows, cols := src.Dims()

	tmp := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			var sum float64
			for k, w := range kernel {
				sum += w * src.At(r, reflect101(c+k-half, cols))
			}
			tmp.Set(r, c, sum)
		}
	}

	out := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			var sum float64
			for k, w := range kernel {
				sum += w * tmp.At(reflect101(r+k-half, rows), c)
			}
			out.Set(r, c, sum)
		}
	}
	return out, nil
}

// gaussianKernel одномерное нормированное ядро; сигма как у OpenCV при sigma=0.
func gaussianKernel(ksize int) []float64 {
	sigma := 0.3*(float64(ksize-1)*0.5-1) + 0.8
	half := ksize / 2
	kernel := make([]float64, ksize)
	var sum float64
	for i := range kernel {
		d := float64(i - half)
		kernel[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

// reflect101 отражение индекса без повторения крайнего пикселя: gfedcb|abcdefgh|gfedcba.
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		} else {
			i = 2*n - 2 - i
		}
	}
	return i
}

// ColorizeJet переводит карту в 8 бит (с отбрасыванием дробной части) и раскрашивает.
func (o *NativeOps) ColorizeJet(src *mat.Dense) (*image.RGBA, error) {
	rows, cols := src.Dims()
	out := image.NewRGBA(image.Rect(0, 0, cols, rows))
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			rgb := jetLUT[ToByte(src.At(r, c))]
			i := out.PixOffset(c, r)
			out.Pix[i] = rgb[0]
			out.Pix[i+1] = rgb[1]
			out.Pix[i+2] = rgb[2]
			out.Pix[i+3] = 0xff
		}
	}
	return out, nil
}

// ToByte переводит значение [0,1] в 8 бит с отбрасыванием дробной части, как np.uint8(255*x).
func ToByte(v float64) uint8 {
	v *= 255
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}

// jetLUT палитра jet в порядке RGB: синий для низких значений, красный для высоких.
var jetLUT = buildJetLUT()

func buildJetLUT() [256][3]uint8 {
	var lut [256][3]uint8
	for i := range lut {
		x := float64(i) / 255
		lut[i] = [3]uint8{
			jetChannel(x, 3),
			jetChannel(x, 2),
			jetChannel(x, 1),
		}
	}
	return lut
}

func jetChannel(x, shift float64) uint8 {
	v := 1.5 - math.Abs(4*x-shift)
	v = math.Max(0, math.Min(1, v))
	return uint8(math.Round(v * 255))
}

// ResizeImage масштабирует изображение той же билинейной схемой, что и ResizeMap
// (центры пикселей, два соседа по оси, как INTER_LINEAR). OpenCV считает 8-битный
// случай в фиксированной точке, поэтому отдельные каналы могут отличаться на 1.
func (o *NativeOps) ResizeImage(src image.Image, size image.Point) (*image.RGBA, error) {
	if src == nil {
		return nil, errors.New("image is nil")
	}
	if size.X <= 0 || size.Y <= 0 {
		return nil, fmt.Errorf("bad target size %v", size)
	}
	sb := src.Bounds()
	in := image.NewRGBA(image.Rect(0, 0, sb.Dx(), sb.Dy()))
	draw.Copy(in, image.Point{}, src, sb, draw.Src, nil)
	if sb.Size() == size {
		return in, nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, size.X, size.Y))
	sy := float64(sb.Dy()) / float64(size.Y)
	sx := float64(sb.Dx()) / float64(size.X)
	for y := 0; y < size.Y; y++ {
		y0, y1, wy := linearCoord(y, sy, sb.Dy())
		for x := 0; x < size.X; x++ {
			x0, x1, wx := linearCoord(x, sx, sb.Dx())
			p00, p01 := in.PixOffset(x0, y0), in.PixOffset(x1, y0)
			p10, p11 := in.PixOffset(x0, y1), in.PixOffset(x1, y1)
			d := dst.PixOffset(x, y)
			for c := 0; c < 3; c++ {
				top := float64(in.Pix[p00+c])*(1-wx) + float64(in.Pix[p01+c])*wx
				bottom := float64(in.Pix[p10+c])*(1-wx) + float64(in.Pix[p11+c])*wx
				dst.Pix[d+c] = roundByte(top*(1-wy) + bottom*wy)
			}
			dst.Pix[d+3] = 0xff
		}
	}
	return dst, nil
}

func roundByte(v float64) uint8 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(math.Round(v))
}

var _ port.SaliencyOps = (*NativeOps)(nil)
