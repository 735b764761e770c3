package port

import (
	"context"

	"mri-bot/internal/domain/entity"
)

// AnalysisRepository история анализов
type AnalysisRepository interface {
	// Save сохраняет запись анализа
	Save(ctx context.Context, a *entity.Analysis) error

	// Get возвращает запись по ID
	Get(ctx context.Context, id string) (*entity.Analysis, error)

	// List возвращает последние записи, новые первыми
	List(ctx context.Context, limit int) ([]*entity.Analysis, error)
}
