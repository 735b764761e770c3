package port

import (
	"context"
	"image"
)

// OverlayStore сохраняет карты значимости
type OverlayStore interface {
	// Save записывает изображение под ключом запроса и исходным именем файла, возвращает путь
	Save(ctx context.Context, key, fileName string, img image.Image) (string, error)
}
