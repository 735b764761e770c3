package onnx

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"mri-bot/internal/domain/entity"
)

// Runtime окружение onnxruntime. Инициализируется один раз при первой загрузке модели.
type Runtime struct {
	libPath string
	once    sync.Once
	ready   bool
	err     error
}

// NewRuntime создаёт окружение; libPath путь к libonnxruntime, пустой означает системный.
func NewRuntime(libPath string) *Runtime {
	return &Runtime{libPath: libPath}
}

func (r *Runtime) init() error {
	r.once.Do(func() {
		if r.libPath != "" {
			ort.SetSharedLibraryPath(r.libPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			r.err = fmt.Errorf("%w: initialize onnxruntime: %v", entity.ErrModelLoad, err)
			return
		}
		r.ready = true
	})
	return r.err
}

// Close освобождает окружение.
func (r *Runtime) Close() error {
	if !r.ready {
		return nil
	}
	return ort.DestroyEnvironment()
}
