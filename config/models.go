package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"mri-bot/internal/domain/entity"
)

// ModelSpec файлы одного классификатора.
type ModelSpec struct {
	ID       entity.ModelID `yaml:"id"`
	Model    string         `yaml:"model"`
	Metadata string         `yaml:"metadata"`
	Gradient string         `yaml:"gradient"`
}

type modelsFile struct {
	Models []ModelSpec `yaml:"models"`
}

// DefaultModels три стандартные модели: <id>.onnx, <id>.json и граф градиента <id>_grad.onnx.
func DefaultModels(dir string) []ModelSpec {
	specs := make([]ModelSpec, 0, len(entity.DefaultModelIDs))
	for _, id := range entity.DefaultModelIDs {
		specs = append(specs, ModelSpec{
			ID:       id,
			Model:    filepath.Join(dir, string(id)+".onnx"),
			Metadata: filepath.Join(dir, string(id)+".json"),
			Gradient: filepath.Join(dir, string(id)+"_grad.onnx"),
		})
	}
	return specs
}

// LoadModels читает YAML-реестр. Относительные пути считаются от каталога файла.
//
//	models:
//	  - id: xception
//	    model: xception.onnx
//	    metadata: xception.json
//	    gradient: xception_grad.onnx
func LoadModels(path string) ([]ModelSpec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read models file: %v", entity.ErrConfiguration, err)
	}

	var f modelsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%w: parse models file %s: %v", entity.ErrConfiguration, path, err)
	}
	if len(f.Models) == 0 {
		return nil, fmt.Errorf("%w: models file %s lists no models", entity.ErrConfiguration, path)
	}

	base := filepath.Dir(path)
	seen := make(map[entity.ModelID]bool, len(f.Models))
	for i := range f.Models {
		m := &f.Models[i]
		id, err := entity.ParseModelID(string(m.ID))
		if err != nil {
			return nil, fmt.Errorf("%w: models[%d]: %v", entity.ErrConfiguration, i, err)
		}
		if seen[id] {
			return nil, fmt.Errorf("%w: duplicate model id %q", entity.ErrConfiguration, id)
		}
		seen[id] = true
		m.ID = id

		if m.Model == "" || m.Metadata == "" {
			return nil, fmt.Errorf("%w: model %s needs both model and metadata paths", entity.ErrConfiguration, id)
		}
		m.Model = resolve(base, m.Model)
		m.Metadata = resolve(base, m.Metadata)
		if m.Gradient != "" {
			m.Gradient = resolve(base, m.Gradient)
		}
	}
	return f.Models, nil
}

func resolve(base, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// Models реестр из MODELS_FILE либо стандартный набор из MODELS_DIR.
func (c *Config) Models() ([]ModelSpec, error) {
	if c.ModelsFile != "" {
		return LoadModels(c.ModelsFile)
	}
	return DefaultModels(c.ModelsDir), nil
}
