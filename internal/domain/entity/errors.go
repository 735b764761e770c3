package entity

import "errors"

// Классы ошибок конвейера. Адаптеры оборачивают их через fmt.Errorf("%w: ..."),
// вызывающий код проверяет через errors.Is.
var (
	// ErrConfiguration: не хватает настроек или ключей при старте.
	ErrConfiguration = errors.New("configuration error")
	// ErrModelLoad: файл модели не найден, повреждён или не подходит по форме.
	ErrModelLoad = errors.New("model load error")
	// ErrUnsupportedModel: модель не умеет считать градиенты.
	ErrUnsupportedModel = errors.New("unsupported model")
	// ErrInputValidation: неверный формат или размер входного изображения.
	ErrInputValidation = errors.New("input validation error")
	// ErrRemoteService: сбой удалённого сервиса пояснений.
	ErrRemoteService = errors.New("remote service error")
)
