package saliency

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	"gonum.org/v1/gonum/mat"

	"mri-bot/internal/domain/entity"
	"mri-bot/internal/domain/port"
)

// Params константы построения карты. Значения по умолчанию дают
// эталонное поведение, менять их стоит только осознанно.
type Params struct {
	MaskMargin     int     // отступ круглой маски от края, пикселей
	Percentile     float64 // порог по перцентилю значений внутри маски
	BlurKernel     int     // размер ядра Гаусса, нечётный
	HeatmapWeight  float64 // вес тепловой карты при смешивании
	OriginalWeight float64 // вес оригинала при смешивании
}

// DefaultParams эталонные параметры.
func DefaultParams() Params {
	return Params{
		MaskMargin:     10,
		Percentile:     80,
		BlurKernel:     11,
		HeatmapWeight:  0.7,
		OriginalWeight: 0.3,
	}
}

// Validate проверяет параметры.
func (p Params) Validate() error {
	if p.MaskMargin < 0 {
		return fmt.Errorf("mask margin must be >= 0, got %d", p.MaskMargin)
	}
	if p.Percentile < 0 || p.Percentile > 100 {
		return fmt.Errorf("percentile must be in [0,100], got %v", p.Percentile)
	}
	if p.BlurKernel <= 0 || p.BlurKernel%2 == 0 {
		return fmt.Errorf("blur kernel must be odd and positive, got %d", p.BlurKernel)
	}
	return nil
}

// Request входные данные одного объяснения.
type Request struct {
	Classifier port.Classifier
	Input      *entity.Tensor // тензор в рабочем разрешении классификатора
	ClassIndex int
	OutputSize image.Point // ширина и высота результата
	// MapSize разрешение, в котором строятся маска, порог и размытие.
	// Нулевое значение означает OutputSize.
	MapSize  image.Point
	Original image.Image // загруженное изображение, смешивается с картой
}

func (r Request) mapSize() image.Point {
	if r.MapSize == (image.Point{}) {
		return r.OutputSize
	}
	return r.MapSize
}

// Explainer строит карту значимости для выбранного класса.
type Explainer struct {
	ops    port.SaliencyOps
	params Params
}

// NewExplainer создаёт объяснитель поверх набора примитивов.
func NewExplainer(ops port.SaliencyOps, params Params) (*Explainer, error) {
	if ops == nil {
		return nil, errors.New("saliency ops are not configured")
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrConfiguration, err)
	}
	return &Explainer{ops: ops, params: params}, nil
}

// Params текущие параметры.
func (e *Explainer) Params() Params {
	return e.params
}

// Explain возвращает наложение тепловой карты на оригинал размера OutputSize.
// Карта обрабатывается в разрешении MapSize, до OutputSize масштабируется
// только готовая цветная карта.
func (e *Explainer) Explain(ctx context.Context, req Request) (*image.RGBA, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	dc, ok := req.Classifier.(port.DifferentiableClassifier)
	if !ok {
		return nil, fmt.Errorf("%w: classifier does not expose gradients", entity.ErrUnsupportedModel)
	}

	grad, err := dc.Gradient(ctx, req.Input, req.ClassIndex)
	if err != nil {
		return nil, fmt.Errorf("gradient: %w", err)
	}
	if err := grad.Validate(); err != nil {
		return nil, fmt.Errorf("gradient: %w", err)
	}
	if !grad.SameShape(req.Input) {
		return nil, fmt.Errorf("gradient shape %dx%dx%d does not match input %dx%dx%d",
			grad.Width, grad.Height, grad.Channels, req.Input.Width, req.Input.Height, req.Input.Channels)
	}

	sens, err := e.ops.ResizeMap(SensitivityMap(grad), req.mapSize())
	if err != nil {
		return nil, fmt.Errorf("resize map: %w", err)
	}

	rows, cols := sens.Dims()
	mask := CircularMask(rows, cols, e.params.MaskMargin)
	mask.Apply(sens)
	NormalizeInMask(sens, mask)
	ThresholdBelow(sens, Percentile(mask.Values(sens), e.params.Percentile))

	sens, err = e.ops.GaussianBlur(sens, e.params.BlurKernel)
	if err != nil {
		return nil, fmt.Errorf("blur: %w", err)
	}

	heat, err := e.ops.ColorizeJet(sens)
	if err != nil {
		return nil, fmt.Errorf("colorize: %w", err)
	}
	if heat.Bounds().Size() != req.OutputSize {
		if heat, err = e.ops.ResizeImage(heat, req.OutputSize); err != nil {
			return nil, fmt.Errorf("resize heatmap: %w", err)
		}
	}

	orig, err := e.ops.ResizeImage(req.Original, req.OutputSize)
	if err != nil {
		return nil, fmt.Errorf("resize original: %w", err)
	}

	return Blend(heat, orig, e.params.HeatmapWeight, e.params.OriginalWeight)
}

// SensitivityMap модуль градиента, свёрнутый максимумом по каналам.
// Строки карты идут по высоте, столбцы по ширине. Нечисловые значения считаются нулём.
func SensitivityMap(grad *entity.Tensor) *mat.Dense {
	d := mat.NewDense(grad.Height, grad.Width, nil)
	for y := 0; y < grad.Height; y++ {
		for x := 0; x < grad.Width; x++ {
			var best float64
			for c := 0; c < grad.Channels; c++ {
				v := math.Abs(float64(grad.At(x, y, c)))
				if math.IsNaN(v) || math.IsInf(v, 0) {
					continue
				}
				if v > best {
					best = v
				}
			}
			d.Set(y, x, best)
		}
	}
	return d
}

func validateRequest(req Request) error {
	if req.Classifier == nil {
		return errors.New("classifier is nil")
	}
	if req.Original == nil {
		return fmt.Errorf("%w: original image is nil", entity.ErrInputValidation)
	}
	if req.OutputSize.X <= 0 || req.OutputSize.Y <= 0 {
		return fmt.Errorf("%w: output size must be positive, got %v", entity.ErrInputValidation, req.OutputSize)
	}
	if ms := req.mapSize(); ms.X <= 0 || ms.Y <= 0 {
		return fmt.Errorf("%w: map size must be positive, got %v", entity.ErrInputValidation, req.MapSize)
	}
	if err := req.Input.Validate(); err != nil {
		return err
	}
	want := req.Classifier.InputSize()
	if req.Input.Width != want.X || req.Input.Height != want.Y || req.Input.Channels != 3 {
		return fmt.Errorf("%w: input %dx%dx%d, classifier expects %dx%dx3", entity.ErrInputValidation,
			req.Input.Width, req.Input.Height, req.Input.Channels, want.X, want.Y)
	}
	if n := len(req.Classifier.Labels()); req.ClassIndex < 0 || req.ClassIndex >= n {
		return fmt.Errorf("%w: class index %d out of range [0,%d)", entity.ErrInputValidation, req.ClassIndex, n)
	}
	return nil
}
