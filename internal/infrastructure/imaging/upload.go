package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/nfnt/resize"
	"golang.org/x/image/draw"

	"mri-bot/internal/domain/entity"
)

// MaxUploadSize предел размера загружаемого файла.
const MaxUploadSize = 10 << 20

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// ValidateUpload пропускает только JPEG и PNG: по расширению имени и по содержимому.
// Вызывается до загрузки модели.
func ValidateUpload(fileName string, data []byte) error {
	ext := strings.ToLower(filepath.Ext(fileName))
	if !allowedExtensions[ext] {
		return fmt.Errorf("%w: unsupported file type %q, only JPEG and PNG are accepted", entity.ErrInputValidation, ext)
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: empty file", entity.ErrInputValidation)
	}
	if len(data) > MaxUploadSize {
		return fmt.Errorf("%w: file is too large (%d bytes)", entity.ErrInputValidation, len(data))
	}
	switch mime := http.DetectContentType(data); mime {
	case "image/jpeg", "image/png":
		return nil
	default:
		return fmt.Errorf("%w: content type %s is not JPEG or PNG", entity.ErrInputValidation, mime)
	}
}

// Decode декодирует JPEG или PNG.
func Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: decode image: %v", entity.ErrInputValidation, err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, "", fmt.Errorf("%w: empty image", entity.ErrInputValidation)
	}
	return img, format, nil
}

// ToTensor приводит снимок к рабочему разрешению ближайшим соседом
// и нормирует каналы RGB в [0,1]. Альфа-канал отбрасывается.
// Каждый пиксель результата берётся из одного пикселя источника, без усреднения.
func ToTensor(img image.Image, size image.Point) *entity.Tensor {
	resized := image.NewNRGBA(image.Rect(0, 0, size.X, size.Y))
	draw.NearestNeighbor.Scale(resized, resized.Bounds(), img, img.Bounds(), draw.Src, nil)

	t := entity.NewTensor(size.X, size.Y, 3)
	for y := 0; y < size.Y; y++ {
		for x := 0; x < size.X; x++ {
			c := resized.NRGBAAt(x, y)
			t.Set(x, y, 0, float32(c.R)/255)
			t.Set(x, y, 1, float32(c.G)/255)
			t.Set(x, y, 2, float32(c.B)/255)
		}
	}
	return t
}

// PreviewMaxSide предел стороны изображения, которое уходит в Telegram и в LLM.
const PreviewMaxSide = 2048

// Preview уменьшает изображение с сохранением пропорций так, чтобы обе стороны
// не превышали maxSide. Изображение, которое уже помещается, возвращается как есть.
func Preview(img image.Image, maxSide int) image.Image {
	if maxSide <= 0 {
		return img
	}
	return resize.Thumbnail(uint(maxSide), uint(maxSide), img, resize.Lanczos3)
}

// EncodeJPEG кодирует изображение в JPEG.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodePNG кодирует изображение в PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
