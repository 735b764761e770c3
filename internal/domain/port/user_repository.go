package port

import (
	"context"

	"mri-bot/internal/domain/entity"
)

// UserRepository сессии пользователей: шаг сценария и выбранная модель
type UserRepository interface {
	// Get возвращает сессию пользователя; новая сессия получает модель по умолчанию
	Get(ctx context.Context, userID, chatID int64) (*entity.User, error)

	// Save сохраняет сессию целиком (состояние и модель)
	Save(ctx context.Context, user *entity.User) error

	// UpdateState меняет только шаг сценария, модель не трогает
	UpdateState(ctx context.Context, userID int64, state entity.UserState) error
}
