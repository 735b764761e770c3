package port

import "context"

// NarrativeRequest данные для текстового пояснения
type NarrativeRequest struct {
	Overlay    []byte  // карта значимости в JPEG
	Label      string  // предсказанный класс
	Confidence float64 // вероятность класса, [0,1]
}

// Narrator интерфейс генератора медицинских пояснений
type Narrator interface {
	// Name имя провайдера, например "groq" или "gemini"
	Name() string

	// Explain отправляет карту в удалённую модель и возвращает текст.
	// Ошибки оборачивают entity.ErrRemoteService.
	Explain(ctx context.Context, req NarrativeRequest) (string, error)
}
