package storage

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"mri-bot/internal/domain/port"
	"mri-bot/internal/infrastructure/imaging"
)

// FileOverlayStore пишет карты значимости в каталог на диске.
// Имя файла: <ключ запроса>_<исходное имя>, чтобы одинаковые имена от разных пользователей не перетирали друг друга.
type FileOverlayStore struct {
	dir string
}

// NewFileOverlayStore создаёт каталог, если его нет.
func NewFileOverlayStore(dir string) (*FileOverlayStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create overlay dir %s: %w", dir, err)
	}
	return &FileOverlayStore{dir: dir}, nil
}

// Dir каталог хранилища.
func (s *FileOverlayStore) Dir() string { return s.dir }

// Save кодирует изображение по расширению исходного файла (PNG или JPEG) и пишет атомарно.
func (s *FileOverlayStore) Save(ctx context.Context, key, fileName string, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := OverlayFileName(key, fileName)

	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(name), ".png") {
		data, err = imaging.EncodePNG(img)
	} else {
		data, err = imaging.EncodeJPEG(img, 95)
	}
	if err != nil {
		return "", fmt.Errorf("encode overlay: %w", err)
	}

	path := filepath.Join(s.dir, name)
	tmp, err := os.CreateTemp(s.dir, ".overlay-*")
	if err != nil {
		return "", fmt.Errorf("write overlay: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write overlay: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("write overlay: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("write overlay: %w", err)
	}
	return path, nil
}

// OverlayFileName безопасное имя файла карты.
func OverlayFileName(key, fileName string) string {
	base := filepath.Base(strings.ReplaceAll(fileName, "\\", "/"))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == "_" {
		base = "scan.jpg"
	}
	if key == "" {
		return base
	}
	return key + "_" + base
}

var _ port.OverlayStore = (*FileOverlayStore)(nil)
