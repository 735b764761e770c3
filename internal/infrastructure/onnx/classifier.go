package onnx

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"mri-bot/internal/domain/entity"
	"mri-bot/internal/domain/port"
)

// ModelFiles пути к файлам одной модели.
type ModelFiles struct {
	Model    string // основной граф
	Metadata string // json с формами и классами
	Gradient string // граф градиента; без него модель не строит карты
}

// Classifier классификатор поверх onnxruntime.
type Classifier struct {
	meta *Metadata

	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]

	gradSession *ort.AdvancedSession
	gradInput   *ort.Tensor[float32]
	gradClass   *ort.Tensor[float32]
	gradOutput  *ort.Tensor[float32]
}

// Load загружает модель. Любая ошибка оборачивает entity.ErrModelLoad.
func Load(rt *Runtime, files ModelFiles) (*Classifier, error) {
	if err := rt.init(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(files.Model); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrModelLoad, err)
	}

	meta, err := LoadMetadata(files.Metadata)
	if err != nil {
		return nil, err
	}

	c := &Classifier{meta: meta}
	if err := c.openSession(files.Model); err != nil {
		c.Close()
		return nil, err
	}
	if files.Gradient != "" {
		if err := c.openGradient(files.Gradient); err != nil {
			c.Close()
			return nil, err
		}
	}
	return c, nil
}

func (c *Classifier) openSession(path string) error {
	var err error
	c.inputTensor, err = ort.NewEmptyTensor[float32](ort.NewShape(c.meta.InputShape...))
	if err != nil {
		return fmt.Errorf("%w: create input tensor: %v", entity.ErrModelLoad, err)
	}
	c.outputTensor, err = ort.NewEmptyTensor[float32](ort.NewShape(c.meta.OutputShape...))
	if err != nil {
		return fmt.Errorf("%w: create output tensor: %v", entity.ErrModelLoad, err)
	}
	c.session, err = ort.NewAdvancedSession(path,
		[]string{c.meta.InputName}, []string{c.meta.OutputName},
		[]ort.ArbitraryTensor{c.inputTensor}, []ort.ArbitraryTensor{c.outputTensor},
		nil)
	if err != nil {
		return fmt.Errorf("%w: create session for %s: %v", entity.ErrModelLoad, path, err)
	}
	return nil
}

func (c *Classifier) openGradient(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: gradient graph: %v", entity.ErrModelLoad, err)
	}
	var err error
	c.gradInput, err = ort.NewEmptyTensor[float32](ort.NewShape(c.meta.InputShape...))
	if err != nil {
		return fmt.Errorf("%w: create gradient input: %v", entity.ErrModelLoad, err)
	}
	c.gradClass, err = ort.NewEmptyTensor[float32](ort.NewShape(c.meta.OutputShape...))
	if err != nil {
		return fmt.Errorf("%w: create class input: %v", entity.ErrModelLoad, err)
	}
	c.gradOutput, err = ort.NewEmptyTensor[float32](ort.NewShape(c.meta.InputShape...))
	if err != nil {
		return fmt.Errorf("%w: create gradient output: %v", entity.ErrModelLoad, err)
	}
	c.gradSession, err = ort.NewAdvancedSession(path,
		[]string{c.meta.InputName, c.meta.GradientClassInput}, []string{c.meta.GradientOutput},
		[]ort.ArbitraryTensor{c.gradInput, c.gradClass}, []ort.ArbitraryTensor{c.gradOutput},
		nil)
	if err != nil {
		return fmt.Errorf("%w: create gradient session for %s: %v", entity.ErrModelLoad, path, err)
	}
	return nil
}

// Labels фиксированный порядок меток; классы метаданных с ним уже сверены.
func (c *Classifier) Labels() []string { return entity.Labels }

func (c *Classifier) InputSize() image.Point { return c.meta.InputSize() }

// Differentiable сообщает, загружен ли граф градиента.
func (c *Classifier) Differentiable() bool { return c.gradSession != nil }

// Predict прогоняет тензор через сеть и возвращает вероятности классов.
func (c *Classifier) Predict(ctx context.Context, input *entity.Tensor) ([]float32, error) {
	if err := c.checkInput(ctx, input); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.meta.pack(input, c.inputTensor.GetData())
	if err := c.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	out := c.outputTensor.GetData()
	return append([]float32(nil), out...), nil
}

// Gradient считает градиент оценки класса по входу через экспортированный граф.
func (c *Classifier) Gradient(ctx context.Context, input *entity.Tensor, classIndex int) (*entity.Tensor, error) {
	if c.gradSession == nil {
		return nil, fmt.Errorf("%w: no gradient graph loaded", entity.ErrUnsupportedModel)
	}
	if err := c.checkInput(ctx, input); err != nil {
		return nil, err
	}
	if classIndex < 0 || classIndex >= len(c.meta.Classes) {
		return nil, fmt.Errorf("%w: class index %d out of range", entity.ErrInputValidation, classIndex)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.meta.pack(input, c.gradInput.GetData())
	onehot := c.gradClass.GetData()
	for i := range onehot {
		onehot[i] = 0
	}
	onehot[classIndex] = 1

	if err := c.gradSession.Run(); err != nil {
		return nil, fmt.Errorf("gradient inference failed: %w", err)
	}

	grad := entity.NewTensor(input.Width, input.Height, input.Channels)
	c.meta.unpack(c.gradOutput.GetData(), grad)
	return grad, nil
}

func (c *Classifier) checkInput(ctx context.Context, input *entity.Tensor) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := input.Validate(); err != nil {
		return err
	}
	size := c.InputSize()
	if input.Width != size.X || input.Height != size.Y || input.Channels != 3 {
		return fmt.Errorf("%w: input %dx%dx%d, model expects %dx%dx3", entity.ErrInputValidation,
			input.Width, input.Height, input.Channels, size.X, size.Y)
	}
	return nil
}

// Close освобождает сессии и тензоры.
func (c *Classifier) Close() error {
	var errs []error
	for _, s := range []*ort.AdvancedSession{c.session, c.gradSession} {
		if s != nil {
			errs = append(errs, s.Destroy())
		}
	}
	for _, t := range []*ort.Tensor[float32]{c.inputTensor, c.outputTensor, c.gradInput, c.gradClass, c.gradOutput} {
		if t != nil {
			errs = append(errs, t.Destroy())
		}
	}
	return errors.Join(errs...)
}

var _ port.DifferentiableClassifier = (*Classifier)(nil)
