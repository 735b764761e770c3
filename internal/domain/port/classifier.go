package port

import (
	"context"
	"image"

	"mri-bot/internal/domain/entity"
)

// Classifier интерфейс классификатора снимков
type Classifier interface {
	// Labels возвращает метки классов в порядке выхода сети
	Labels() []string

	// InputSize рабочее разрешение входа (ширина, высота)
	InputSize() image.Point

	// Predict возвращает вектор вероятностей по классам
	Predict(ctx context.Context, input *entity.Tensor) ([]float32, error)
}

// DifferentiableClassifier классификатор, умеющий считать градиент оценки класса по входу
type DifferentiableClassifier interface {
	Classifier

	// Gradient возвращает d score[classIndex] / d input той же формы, что input
	Gradient(ctx context.Context, input *entity.Tensor, classIndex int) (*entity.Tensor, error)
}

// ClassifierFactory загружает классификатор. Ошибки оборачивают entity.ErrModelLoad.
type ClassifierFactory func() (Classifier, error)
