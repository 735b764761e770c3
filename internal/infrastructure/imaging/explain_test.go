package imaging_test

import (
	"bytes"
	"context"
	"image"
	"testing"

	"github.com/stretchr/testify/require"

	"mri-bot/internal/domain/entity"
	"mri-bot/internal/domain/saliency"
	"mri-bot/internal/infrastructure/imaging"
)

type fixedGradClassifier struct {
	grad func(in *entity.Tensor) *entity.Tensor
}

func (f fixedGradClassifier) Labels() []string       { return entity.Labels }
func (f fixedGradClassifier) InputSize() image.Point { return entity.WorkingSize }
func (f fixedGradClassifier) Predict(context.Context, *entity.Tensor) ([]float32, error) {
	return []float32{0.1, 0.05, 0.8, 0.05}, nil
}
func (f fixedGradClassifier) Gradient(_ context.Context, in *entity.Tensor, _ int) (*entity.Tensor, error) {
	return f.grad(in), nil
}

func grayImage(w, h int, v uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = v, v, v, 255
	}
	return img
}

func grayTensor(v float32) *entity.Tensor {
	tn := entity.NewTensor(128, 128, 3)
	for i := range tn.Data {
		tn.Data[i] = v
	}
	return tn
}

// ramp градиент растёт к правому нижнему углу, с одним выбросом в центре.
func ramp(in *entity.Tensor) *entity.Tensor {
	g := entity.NewTensor(in.Width, in.Height, in.Channels)
	for y := 0; y < in.Height; y++ {
		for x := 0; x < in.Width; x++ {
			g.Set(x, y, x%3, float32(x*y)/1000)
		}
	}
	g.Set(64, 64, 0, -50)
	return g
}

func newExplainer(t *testing.T) *saliency.Explainer {
	t.Helper()
	e, err := saliency.NewExplainer(imaging.NewNativeOps(), saliency.DefaultParams())
	require.NoError(t, err)
	return e
}

func TestExplain_ZeroGradientUniformGray(t *testing.T) {
	clf := fixedGradClassifier{grad: func(in *entity.Tensor) *entity.Tensor {
		return entity.NewTensor(in.Width, in.Height, in.Channels)
	}}

	out, err := newExplainer(t).Explain(context.Background(), saliency.Request{
		Classifier: clf,
		Input:      grayTensor(128.0 / 255),
		ClassIndex: entity.ClassNoTumor,
		OutputSize: image.Pt(128, 128),
		Original:   grayImage(128, 128, 128),
	})
	require.NoError(t, err)

	// палитра в нуле даёт (0,0,128), смешивание 0.7/0.3 с серым 128
	for y := 0; y < 128; y++ {
		for x := 0; x < 128; x++ {
			c := out.RGBAAt(x, y)
			require.Equal(t, uint8(38), c.R)
			require.Equal(t, uint8(38), c.G)
			require.Equal(t, uint8(128), c.B)
			require.Equal(t, uint8(255), c.A)
		}
	}
}

func TestExplain_OutputMatchesRequestedSize(t *testing.T) {
	e := newExplainer(t)
	for _, size := range []image.Point{{128, 128}, {300, 200}, {64, 256}} {
		out, err := e.Explain(context.Background(), saliency.Request{
			Classifier: fixedGradClassifier{grad: ramp},
			Input:      grayTensor(0.5),
			ClassIndex: entity.ClassGlioma,
			OutputSize: size,
			Original:   grayImage(size.X/2+1, size.Y/3+1, 90),
		})
		require.NoError(t, err)
		require.Equal(t, size, out.Bounds().Size())
		for i := 3; i < len(out.Pix); i += 4 {
			require.Equal(t, uint8(255), out.Pix[i])
		}
	}
}

func TestExplain_Deterministic(t *testing.T) {
	e := newExplainer(t)
	req := saliency.Request{
		Classifier: fixedGradClassifier{grad: ramp},
		Input:      grayTensor(0.5),
		ClassIndex: entity.ClassPituitary,
		OutputSize: image.Pt(180, 150),
		Original:   grayImage(180, 150, 40),
	}

	first, err := e.Explain(context.Background(), req)
	require.NoError(t, err)
	second, err := e.Explain(context.Background(), req)
	require.NoError(t, err)
	require.True(t, bytes.Equal(first.Pix, second.Pix))

	a, err := imaging.EncodePNG(first)
	require.NoError(t, err)
	b, err := imaging.EncodePNG(second)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestExplain_CornersCarryOnlyPaletteFloor(t *testing.T) {
	out, err := newExplainer(t).Explain(context.Background(), saliency.Request{
		Classifier: fixedGradClassifier{grad: ramp},
		Input:      grayTensor(0.5),
		ClassIndex: entity.ClassMeningioma,
		OutputSize: image.Pt(128, 128),
		Original:   grayImage(128, 128, 0),
	})
	require.NoError(t, err)

	// вне маски и вдали от порога: синий нуля палитры * 0.7
	for _, p := range []image.Point{{0, 0}, {127, 0}, {0, 127}, {127, 127}} {
		c := out.RGBAAt(p.X, p.Y)
		require.Equal(t, uint8(0), c.R)
		require.Equal(t, uint8(0), c.G)
		require.Equal(t, uint8(90), c.B)
	}
	// выброс в центре переживает порог и сглаживание
	require.NotEqual(t, out.RGBAAt(0, 0), out.RGBAAt(64, 64))
}
