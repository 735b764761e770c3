package imaging

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestResizeMap_SameSizeCopies(t *testing.T) {
	src := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	out, err := NewNativeOps().ResizeMap(src, image.Pt(2, 2))
	require.NoError(t, err)
	require.Equal(t, src.RawMatrix().Data, out.RawMatrix().Data)

	out.Set(0, 0, 9)
	require.Equal(t, 1.0, src.At(0, 0))
}

func TestResizeMap_BilinearHalfPixelCenters(t *testing.T) {
	src := mat.NewDense(1, 2, []float64{0, 4})
	out, err := NewNativeOps().ResizeMap(src, image.Pt(4, 1))
	require.NoError(t, err)
	require.Equal(t, []float64{0, 1, 3, 4}, out.RawRowView(0))
}

func TestResizeMap_BadSize(t *testing.T) {
	_, err := NewNativeOps().ResizeMap(mat.NewDense(1, 1, nil), image.Pt(0, 3))
	require.Error(t, err)
}

func TestGaussianKernel_AutoSigma(t *testing.T) {
	k := gaussianKernel(11)
	require.Len(t, k, 11)
	var sum float64
	for _, v := range k {
		sum += v
	}
	require.InDelta(t, 1.0, sum, 1e-12)
	require.InDelta(t, k[0], k[10], 1e-15)
	// сигма = 2.0 для ядра 11: отношение центра к соседу exp(1/8)
	require.InDelta(t, 1.1331484530668263, k[5]/k[4], 1e-12)
}

func TestReflect101(t *testing.T) {
	require.Equal(t, 1, reflect101(-1, 5))
	require.Equal(t, 3, reflect101(5, 5))
	require.Equal(t, 0, reflect101(-3, 1))
	require.Equal(t, 2, reflect101(2, 5))
}

func TestGaussianBlur_ConstantStaysConstant(t *testing.T) {
	src := mat.NewDense(20, 20, nil)
	for r := 0; r < 20; r++ {
		for c := 0; c < 20; c++ {
			src.Set(r, c, 0.5)
		}
	}
	out, err := NewNativeOps().GaussianBlur(src, 11)
	require.NoError(t, err)
	for r := 0; r < 20; r++ {
		for c := 0; c < 20; c++ {
			require.InDelta(t, 0.5, out.At(r, c), 1e-12)
		}
	}
}

func TestGaussianBlur_ImpulseSpreadsSymmetrically(t *testing.T) {
	src := mat.NewDense(31, 31, nil)
	src.Set(15, 15, 1)
	out, err := NewNativeOps().GaussianBlur(src, 11)
	require.NoError(t, err)

	require.InDelta(t, out.At(15, 12), out.At(15, 18), 1e-15)
	require.InDelta(t, out.At(12, 15), out.At(18, 15), 1e-15)
	require.Less(t, out.At(15, 15), 1.0)
	require.Equal(t, 0.0, out.At(15, 21))
	require.InDelta(t, 1.0, mat.Sum(out), 1e-12)
}

func TestGaussianBlur_EvenKernelRejected(t *testing.T) {
	_, err := NewNativeOps().GaussianBlur(mat.NewDense(3, 3, nil), 4)
	require.Error(t, err)
}

func TestJetLUT_Endpoints(t *testing.T) {
	require.Equal(t, [3]uint8{0, 0, 128}, jetLUT[0])
	require.Equal(t, [3]uint8{128, 0, 0}, jetLUT[255])
	require.Equal(t, uint8(255), jetLUT[128][1])
}

func TestToByte(t *testing.T) {
	require.Equal(t, uint8(0), ToByte(-1))
	require.Equal(t, uint8(0), ToByte(math.NaN()))
	require.Equal(t, uint8(255), ToByte(1))
	require.Equal(t, uint8(255), ToByte(7))
	require.Equal(t, uint8(127), ToByte(0.5))
}

func TestColorizeJet_TruncatesToByte(t *testing.T) {
	src := mat.NewDense(1, 3, []float64{0, 1, 2.0 / 255 * 0.999})
	out, err := NewNativeOps().ColorizeJet(src)
	require.NoError(t, err)
	require.Equal(t, color.RGBA{R: 0, G: 0, B: 128, A: 255}, out.RGBAAt(0, 0))
	require.Equal(t, color.RGBA{R: 128, G: 0, B: 0, A: 255}, out.RGBAAt(1, 0))
	want := jetLUT[1]
	require.Equal(t, color.RGBA{R: want[0], G: want[1], B: want[2], A: 255}, out.RGBAAt(2, 0))
}

func rowImage(vals ...uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, len(vals), 1))
	for x, v := range vals {
		img.SetRGBA(x, 0, color.RGBA{R: v, G: v, B: v, A: 255})
	}
	return img
}

func redRow(img *image.RGBA) []uint8 {
	out := make([]uint8, img.Bounds().Dx())
	for x := range out {
		out[x] = img.RGBAAt(x, 0).R
	}
	return out
}

func TestResizeImage_UpscaleUsesPixelCenters(t *testing.T) {
	out, err := NewNativeOps().ResizeImage(rowImage(0, 200), image.Pt(4, 1))
	require.NoError(t, err)
	require.Equal(t, []uint8{0, 50, 150, 200}, redRow(out))
}

func TestResizeImage_DownscaleSamplesTwoNeighbours(t *testing.T) {
	out, err := NewNativeOps().ResizeImage(rowImage(0, 100, 200, 40), image.Pt(2, 1))
	require.NoError(t, err)
	require.Equal(t, []uint8{50, 120}, redRow(out))
	require.Equal(t, uint8(255), out.RGBAAt(1, 0).A)
}

func TestResizeImage_ExactSize(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 50, 30))
	out, err := NewNativeOps().ResizeImage(src, image.Pt(17, 90))
	require.NoError(t, err)
	require.Equal(t, image.Pt(17, 90), out.Bounds().Size())

	_, err = NewNativeOps().ResizeImage(nil, image.Pt(1, 1))
	require.Error(t, err)
}
