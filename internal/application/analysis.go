package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"time"

	"github.com/google/uuid"

	"mri-bot/internal/domain/entity"
	"mri-bot/internal/domain/port"
	"mri-bot/internal/domain/saliency"
	"mri-bot/internal/infrastructure/imaging"
)

// overlayJPEGQuality качество JPEG, который уходит в сервис пояснений.
const overlayJPEGQuality = 90

// AnalyzeRequest один загруженный снимок.
type AnalyzeRequest struct {
	Model    entity.ModelID
	FileName string
	Data     []byte
}

// AnalysisResult результат прогона конвейера. Ошибки поздних стадий лежат рядом
// с результатом и не отменяют классификацию.
type AnalysisResult struct {
	ID          string
	Model       entity.ModelID
	FileName    string
	Prediction  *entity.Prediction
	Overlay     *image.RGBA
	OverlayJPEG []byte
	OverlayPath string
	Explanation string

	SaliencyErr  error
	PersistErr   error
	NarrativeErr error
}

// Record запись для истории.
func (r *AnalysisResult) Record(at time.Time) *entity.Analysis {
	a := &entity.Analysis{
		ID:          r.ID,
		CreatedAt:   at,
		FileName:    r.FileName,
		Model:       r.Model,
		OverlayPath: r.OverlayPath,
		Explanation: r.Explanation,
	}
	if r.Prediction != nil {
		a.Label = r.Prediction.Label()
		a.Confidence = r.Prediction.Confidence()
	}
	if r.SaliencyErr != nil {
		a.SaliencyErr = r.SaliencyErr.Error()
	}
	if r.NarrativeErr != nil {
		a.NarrativeErr = r.NarrativeErr.Error()
	}
	return a
}

// AnalysisService конвейер: классификация, карта значимости, сохранение, пояснение.
type AnalysisService struct {
	users     *UserService
	registry  *ClassifierRegistry
	explainer *saliency.Explainer
	narrator  port.Narrator
	overlays  port.OverlayStore
	history   port.AnalysisRepository

	newID func() string
	now   func() time.Time
}

// NewAnalysisService собирает конвейер; narrator, overlays и history могут быть nil.
func NewAnalysisService(
	users *UserService,
	registry *ClassifierRegistry,
	explainer *saliency.Explainer,
	narrator port.Narrator,
	overlays port.OverlayStore,
	history port.AnalysisRepository,
) *AnalysisService {
	return &AnalysisService{
		users:     users,
		registry:  registry,
		explainer: explainer,
		narrator:  narrator,
		overlays:  overlays,
		history:   history,
		newID:     uuid.NewString,
		now:       time.Now,
	}
}

// Analyze выполняет конвейер для одного снимка. Ошибка возвращается только если
// классификация не состоялась.
func (s *AnalysisService) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalysisResult, error) {
	if err := imaging.ValidateUpload(req.FileName, req.Data); err != nil {
		return nil, err
	}
	img, _, err := imaging.Decode(req.Data)
	if err != nil {
		return nil, err
	}

	clf, err := s.registry.Get(req.Model)
	if err != nil {
		return nil, err
	}

	size := clf.InputSize()
	if size.X <= 0 || size.Y <= 0 {
		size = entity.WorkingSize
	}
	input := imaging.ToTensor(img, size)

	probs, err := clf.Predict(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	pred, err := entity.NewPrediction(clf.Labels(), probs)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}

	res := &AnalysisResult{
		ID:         s.newID(),
		Model:      req.Model,
		FileName:   req.FileName,
		Prediction: pred,
	}
	log.Printf("analysis %s: model=%s file=%q label=%s confidence=%s",
		res.ID, req.Model, req.FileName, pred.Label(), pred.ConfidencePercent())

	s.explain(ctx, res, clf, input, img, size)
	s.narrate(ctx, res)
	s.record(ctx, res)
	return res, nil
}

func (s *AnalysisService) explain(ctx context.Context, res *AnalysisResult, clf port.Classifier, input *entity.Tensor, img image.Image, mapSize image.Point) {
	if s.explainer == nil {
		res.SaliencyErr = fmt.Errorf("%w: saliency explainer is not configured", entity.ErrConfiguration)
		return
	}
	overlay, err := s.explainer.Explain(ctx, saliency.Request{
		Classifier: clf,
		Input:      input,
		ClassIndex: res.Prediction.ClassIndex,
		OutputSize: img.Bounds().Size(),
		MapSize:    mapSize,
		Original:   img,
	})
	if err != nil {
		res.SaliencyErr = err
		log.Printf("analysis %s: saliency failed: %v", res.ID, err)
		return
	}
	res.Overlay = overlay

	if s.overlays != nil {
		path, err := s.overlays.Save(ctx, res.ID, res.FileName, overlay)
		if err != nil {
			res.PersistErr = err
			log.Printf("analysis %s: save overlay failed: %v", res.ID, err)
		} else {
			res.OverlayPath = path
		}
	}

	jpg, err := imaging.EncodeJPEG(imaging.Preview(overlay, imaging.PreviewMaxSide), overlayJPEGQuality)
	if err != nil {
		res.SaliencyErr = fmt.Errorf("encode overlay: %w", err)
		log.Printf("analysis %s: %v", res.ID, res.SaliencyErr)
		return
	}
	res.OverlayJPEG = jpg
}

func (s *AnalysisService) narrate(ctx context.Context, res *AnalysisResult) {
	switch {
	case s.narrator == nil:
		res.NarrativeErr = fmt.Errorf("%w: narrative service is not configured", entity.ErrConfiguration)
		return
	case len(res.OverlayJPEG) == 0:
		res.NarrativeErr = errors.New("no saliency map to explain")
		return
	}

	text, err := s.narrator.Explain(ctx, port.NarrativeRequest{
		Overlay:    res.OverlayJPEG,
		Label:      res.Prediction.Label(),
		Confidence: res.Prediction.Confidence(),
	})
	if err != nil {
		res.NarrativeErr = err
		log.Printf("analysis %s: narrative via %s failed: %v", res.ID, s.narrator.Name(), err)
		return
	}
	res.Explanation = text
}

func (s *AnalysisService) record(ctx context.Context, res *AnalysisResult) {
	if s.history == nil {
		return
	}
	if err := s.history.Save(ctx, res.Record(s.now())); err != nil {
		log.Printf("analysis %s: save history failed: %v", res.ID, err)
	}
}

// AnalyzeForUser прогоняет конвейер с моделью пользователя и ведёт его по состояниям.
func (s *AnalysisService) AnalyzeForUser(ctx context.Context, userID, chatID int64, fileName string, data []byte) (*AnalysisResult, error) {
	user, err := s.users.SetState(ctx, userID, chatID, entity.StateProcessing)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := s.users.Release(ctx, userID); err != nil {
			log.Printf("user %d: reset state: %v", userID, err)
		}
	}()

	return s.Analyze(ctx, AnalyzeRequest{Model: user.Model, FileName: fileName, Data: data})
}

// History последние записи истории.
func (s *AnalysisService) History(ctx context.Context, limit int) ([]*entity.Analysis, error) {
	if s.history == nil {
		return nil, nil
	}
	return s.history.List(ctx, limit)
}

// Models зарегистрированные модели.
func (s *AnalysisService) Models() []entity.ModelID {
	return s.registry.IDs()
}
