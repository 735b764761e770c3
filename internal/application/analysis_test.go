package app

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"mri-bot/internal/domain/entity"
	"mri-bot/internal/domain/port"
	"mri-bot/internal/domain/saliency"
	"mri-bot/internal/infrastructure/imaging"
	"mri-bot/internal/infrastructure/storage"
)

type fakeClassifier struct {
	probs []float32
}

func (c *fakeClassifier) Labels() []string       { return entity.Labels }
func (c *fakeClassifier) InputSize() image.Point { return entity.WorkingSize }
func (c *fakeClassifier) Predict(ctx context.Context, in *entity.Tensor) ([]float32, error) {
	return c.probs, nil
}

type fakeGradClassifier struct {
	fakeClassifier
	hot    *image.Point // единственный ненулевой пиксель градиента
	closed bool
}

func (c *fakeGradClassifier) Gradient(ctx context.Context, in *entity.Tensor, classIndex int) (*entity.Tensor, error) {
	grad := entity.NewTensor(in.Width, in.Height, in.Channels)
	if c.hot != nil {
		grad.Set(c.hot.X, c.hot.Y, 0, 1)
	}
	return grad, nil
}

func (c *fakeGradClassifier) Close() error {
	c.closed = true
	return nil
}

type fakeNarrator struct {
	err  error
	got  port.NarrativeRequest
	text string
}

func (n *fakeNarrator) Name() string { return "fake" }

func (n *fakeNarrator) Explain(ctx context.Context, req port.NarrativeRequest) (string, error) {
	n.got = req
	if n.err != nil {
		return "", n.err
	}
	return n.text, nil
}

func grayPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 128, G: 128, B: 128, A: 255})
		}
	}
	data, err := imaging.EncodePNG(img)
	require.NoError(t, err)
	return data
}

type fixture struct {
	svc      *AnalysisService
	users    *UserService
	registry *ClassifierRegistry
	narrator *fakeNarrator
	history  *storage.MemoryAnalysisRepository
	dir      string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	probs := []float32{0.1, 0.05, 0.8, 0.05}

	registry := NewClassifierRegistry()
	registry.Register(entity.ModelXception, func() (port.Classifier, error) {
		return &fakeGradClassifier{fakeClassifier: fakeClassifier{probs: probs}}, nil
	})
	registry.Register(entity.ModelCustomCNN, func() (port.Classifier, error) {
		return &fakeClassifier{probs: probs}, nil
	})

	explainer, err := saliency.NewExplainer(imaging.NewNativeOps(), saliency.DefaultParams())
	require.NoError(t, err)

	dir := t.TempDir()
	overlays, err := storage.NewFileOverlayStore(dir)
	require.NoError(t, err)

	users := NewUserService(storage.NewMemoryUserRepository(entity.ModelXception), registry)
	narrator := &fakeNarrator{text: "Highlighted sellar region."}
	history := storage.NewMemoryAnalysisRepository()

	svc := NewAnalysisService(users, registry, explainer, narrator, overlays, history)
	svc.newID = func() string { return "req-1" }

	return &fixture{svc: svc, users: users, registry: registry, narrator: narrator, history: history, dir: dir}
}

func TestAnalysisService_FullPipeline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Analyze(ctx, AnalyzeRequest{Model: entity.ModelXception, FileName: "scan.png", Data: grayPNG(t, 64, 48)})
	require.NoError(t, err)

	require.Equal(t, "No tumor", res.Prediction.Label())
	require.Equal(t, "80.00%", res.Prediction.ConfidencePercent())

	require.NoError(t, res.SaliencyErr)
	require.NoError(t, res.PersistErr)
	require.NoError(t, res.NarrativeErr)
	require.Equal(t, image.Pt(64, 48), res.Overlay.Bounds().Size())
	require.Equal(t, color.RGBA{R: 38, G: 38, B: 128, A: 255}, res.Overlay.RGBAAt(10, 10))

	require.FileExists(t, res.OverlayPath)
	require.Contains(t, res.OverlayPath, "req-1_scan.png")

	require.NotEmpty(t, res.OverlayJPEG)
	require.Equal(t, res.OverlayJPEG, f.narrator.got.Overlay)
	require.Equal(t, "No tumor", f.narrator.got.Label)
	require.InDelta(t, 0.8, f.narrator.got.Confidence, 1e-6)
	require.Equal(t, "Highlighted sellar region.", res.Explanation)

	rec, err := f.history.Get(ctx, "req-1")
	require.NoError(t, err)
	require.Equal(t, entity.ModelXception, rec.Model)
	require.Equal(t, "No tumor", rec.Label)
	require.Equal(t, res.OverlayPath, rec.OverlayPath)
	require.Empty(t, rec.SaliencyErr)
}

func TestAnalysisService_MaskUsesWorkingResolution(t *testing.T) {
	f := newFixture(t)
	// (8,64) в 56 пикселях от центра карты 128×128, радиус маски 54
	hot := image.Pt(8, 64)
	f.registry.Register(entity.ModelXception, func() (port.Classifier, error) {
		return &fakeGradClassifier{fakeClassifier: fakeClassifier{probs: []float32{0.1, 0.05, 0.8, 0.05}}, hot: &hot}, nil
	})

	res, err := f.svc.Analyze(context.Background(), AnalyzeRequest{Model: entity.ModelXception, FileName: "big.png", Data: grayPNG(t, 512, 512)})
	require.NoError(t, err)
	require.NoError(t, res.SaliencyErr)
	require.Equal(t, image.Pt(512, 512), res.Overlay.Bounds().Size())

	want := color.RGBA{R: 38, G: 38, B: 128, A: 255}
	diff := 0
	for y := 0; y < 512; y++ {
		for x := 0; x < 512; x++ {
			if res.Overlay.RGBAAt(x, y) != want {
				diff++
			}
		}
	}
	require.Zero(t, diff)
}

func TestAnalysisService_RejectsGIFBeforeLoadingModel(t *testing.T) {
	f := newFixture(t)
	loads := 0
	f.registry.Register(entity.ModelResNet50, func() (port.Classifier, error) {
		loads++
		return &fakeClassifier{}, nil
	})

	_, err := f.svc.Analyze(context.Background(), AnalyzeRequest{
		Model:    entity.ModelResNet50,
		FileName: "scan.gif",
		Data:     []byte("GIF89a\x01\x00\x01\x00"),
	})
	require.True(t, errors.Is(err, entity.ErrInputValidation))
	require.Zero(t, loads)
}

func TestAnalysisService_UnknownModel(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Analyze(context.Background(), AnalyzeRequest{Model: "vgg", FileName: "a.png", Data: grayPNG(t, 8, 8)})
	require.True(t, errors.Is(err, entity.ErrInputValidation))
}

func TestAnalysisService_UnsupportedModelKeepsPrediction(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Analyze(context.Background(), AnalyzeRequest{Model: entity.ModelCustomCNN, FileName: "a.png", Data: grayPNG(t, 32, 32)})
	require.NoError(t, err)
	require.Equal(t, entity.ClassNoTumor, res.Prediction.ClassIndex)
	require.True(t, errors.Is(res.SaliencyErr, entity.ErrUnsupportedModel))
	require.Nil(t, res.Overlay)
	require.Empty(t, res.OverlayPath)
	require.Error(t, res.NarrativeErr)

	rec, err := f.history.Get(context.Background(), res.ID)
	require.NoError(t, err)
	require.NotEmpty(t, rec.SaliencyErr)
}

func TestAnalysisService_NarrativeFailureKeepsOverlay(t *testing.T) {
	f := newFixture(t)
	f.narrator.err = errors.Join(entity.ErrRemoteService, errors.New("quota exceeded"))

	res, err := f.svc.Analyze(context.Background(), AnalyzeRequest{Model: entity.ModelXception, FileName: "a.jpg", Data: grayPNG(t, 32, 32)})
	require.NoError(t, err)
	require.NotNil(t, res.Overlay)
	require.True(t, errors.Is(res.NarrativeErr, entity.ErrRemoteService))
	require.Empty(t, res.Explanation)
}

func TestAnalysisService_PersistFailureIsReported(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.RemoveAll(f.dir))
	require.NoError(t, os.WriteFile(f.dir, []byte("not a dir"), 0o644))

	res, err := f.svc.Analyze(context.Background(), AnalyzeRequest{Model: entity.ModelXception, FileName: "a.png", Data: grayPNG(t, 32, 32)})
	require.NoError(t, err)
	require.Error(t, res.PersistErr)
	require.NotNil(t, res.Overlay)
	require.NoError(t, res.NarrativeErr)
}

func TestAnalysisService_AnalyzeForUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.users.SelectModel(ctx, 7, 70, "CNN")
	require.NoError(t, err)

	res, err := f.svc.AnalyzeForUser(ctx, 7, 70, "a.png", grayPNG(t, 16, 16))
	require.NoError(t, err)
	require.Equal(t, entity.ModelCustomCNN, res.Model)

	user, err := f.users.Get(ctx, 7, 70)
	require.NoError(t, err)
	require.Equal(t, entity.StateMainMenu, user.State)
}

func TestClassifierRegistry_LoadFailureIsNotCached(t *testing.T) {
	r := NewClassifierRegistry()
	calls := 0
	r.Register(entity.ModelResNet50, func() (port.Classifier, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("weights file is truncated")
		}
		return &fakeClassifier{}, nil
	})

	_, err := r.Get(entity.ModelResNet50)
	require.True(t, errors.Is(err, entity.ErrModelLoad))

	c1, err := r.Get(entity.ModelResNet50)
	require.NoError(t, err)
	c2, err := r.Get(entity.ModelResNet50)
	require.NoError(t, err)
	require.Same(t, c1, c2)
	require.Equal(t, 2, calls)
}

func TestClassifierRegistry_IDsAndClose(t *testing.T) {
	r := NewClassifierRegistry()
	clf := &fakeGradClassifier{}
	r.Register(entity.ModelXception, func() (port.Classifier, error) { return clf, nil })
	r.Register(entity.ModelCustomCNN, func() (port.Classifier, error) { return &fakeClassifier{}, nil })

	require.Equal(t, []entity.ModelID{entity.ModelXception, entity.ModelCustomCNN}, r.IDs())
	require.True(t, r.Has(entity.ModelCustomCNN))
	require.False(t, r.Has(entity.ModelResNet50))

	_, err := r.Get(entity.ModelXception)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.True(t, clf.closed)
}
