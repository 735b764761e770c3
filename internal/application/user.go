package app

import (
	"context"
	"fmt"

	"mri-bot/internal/domain/entity"
	"mri-bot/internal/domain/port"
)

type UserService struct {
	repo   port.UserRepository
	models *ClassifierRegistry
}

func NewUserService(repo port.UserRepository, models *ClassifierRegistry) *UserService {
	return &UserService{repo: repo, models: models}
}

func (s *UserService) Get(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.repo.Get(ctx, userID, chatID)
}

func (s *UserService) SetState(ctx context.Context, userID, chatID int64, state entity.UserState) (*entity.User, error) {
	user, err := s.repo.Get(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}

	user.SetState(state)
	if err := s.repo.Save(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// SelectModel меняет классификатор пользователя; модель должна быть зарегистрирована.
func (s *UserService) SelectModel(ctx context.Context, userID, chatID int64, raw string) (*entity.User, error) {
	id, err := entity.ParseModelID(raw)
	if err != nil {
		return nil, err
	}
	if s.models != nil && !s.models.Has(id) {
		return nil, fmt.Errorf("%w: unknown model %q", entity.ErrInputValidation, id)
	}

	user, err := s.repo.Get(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}
	user.SetModel(id)
	if err := s.repo.Save(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) BeginScan(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.SetState(ctx, userID, chatID, entity.StateAwaitingScan)
}

func (s *UserService) Cancel(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.SetState(ctx, userID, chatID, entity.StateMainMenu)
}

// Release возвращает пользователя в главное меню после обработки снимка.
func (s *UserService) Release(ctx context.Context, userID int64) error {
	return s.repo.UpdateState(ctx, userID, entity.StateMainMenu)
}
