package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"mri-bot/internal/domain/entity"
	"mri-bot/internal/domain/port"
	"mri-bot/internal/infrastructure/storage"
)

func newUserService() *UserService {
	registry := NewClassifierRegistry()
	registry.Register(entity.ModelXception, func() (port.Classifier, error) { return &fakeClassifier{}, nil })
	registry.Register(entity.ModelResNet50, func() (port.Classifier, error) { return &fakeClassifier{}, nil })
	return NewUserService(storage.NewMemoryUserRepository(entity.ModelXception), registry)
}

func TestUserService_BeginScanAndCancel(t *testing.T) {
	svc := newUserService()
	ctx := context.Background()

	user, err := svc.BeginScan(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateAwaitingScan, user.State)

	user, err = svc.Cancel(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateMainMenu, user.State)
}

func TestUserService_SetState(t *testing.T) {
	svc := newUserService()
	ctx := context.Background()

	user, err := svc.SetState(ctx, 2, 20, entity.StateProcessing)
	require.NoError(t, err)
	require.Equal(t, entity.StateProcessing, user.State)
}

func TestUserService_SelectModel(t *testing.T) {
	svc := newUserService()
	ctx := context.Background()

	user, err := svc.Get(ctx, 3, 30)
	require.NoError(t, err)
	require.Equal(t, entity.ModelXception, user.Model)

	user, err = svc.SelectModel(ctx, 3, 30, " ResNet50 ")
	require.NoError(t, err)
	require.Equal(t, entity.ModelResNet50, user.Model)

	_, err = svc.SelectModel(ctx, 3, 30, "cnn")
	require.True(t, errors.Is(err, entity.ErrInputValidation))

	user, err = svc.Get(ctx, 3, 30)
	require.NoError(t, err)
	require.Equal(t, entity.ModelResNet50, user.Model)
}

func TestUserService_Release(t *testing.T) {
	svc := newUserService()
	ctx := context.Background()

	_, err := svc.SetState(ctx, 4, 40, entity.StateProcessing)
	require.NoError(t, err)
	require.NoError(t, svc.Release(ctx, 4))

	user, err := svc.Get(ctx, 4, 40)
	require.NoError(t, err)
	require.Equal(t, entity.StateMainMenu, user.State)
}
