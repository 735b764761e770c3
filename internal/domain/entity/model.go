package entity

import (
	"fmt"
	"strings"
)

// ModelID идентификатор классификатора в реестре.
type ModelID string

const (
	ModelXception  ModelID = "xception" // Transfer learning поверх Xception
	ModelResNet50  ModelID = "resnet50" // Transfer learning поверх ResNet50
	ModelCustomCNN ModelID = "cnn"      // Собственная свёрточная сеть
)

// DefaultModelIDs порядок моделей, известных из коробки.
var DefaultModelIDs = []ModelID{ModelXception, ModelResNet50, ModelCustomCNN}

var modelTitles = map[ModelID]string{
	ModelXception:  "Transfer Learning - Xception",
	ModelResNet50:  "Transfer Learning - ResNet50",
	ModelCustomCNN: "Custom CNN",
}

// Title возвращает человекочитаемое название модели.
func (id ModelID) Title() string {
	if t, ok := modelTitles[id]; ok {
		return t
	}
	return string(id)
}

// ParseModelID нормализует строку пользователя в ModelID.
func ParseModelID(s string) (ModelID, error) {
	id := ModelID(strings.ToLower(strings.TrimSpace(s)))
	if id == "" {
		return "", fmt.Errorf("%w: empty model id", ErrInputValidation)
	}
	return id, nil
}
