package app

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"mri-bot/internal/domain/entity"
	"mri-bot/internal/domain/port"
)

// ClassifierRegistry набор классификаторов по идентификатору.
// Модели загружаются при первом обращении и кешируются; неудачная загрузка не кешируется,
// поэтому сбой одной модели не мешает выбирать остальные.
type ClassifierRegistry struct {
	mu        sync.Mutex
	order     []entity.ModelID
	factories map[entity.ModelID]port.ClassifierFactory
	loaded    map[entity.ModelID]port.Classifier
}

func NewClassifierRegistry() *ClassifierRegistry {
	return &ClassifierRegistry{
		factories: make(map[entity.ModelID]port.ClassifierFactory),
		loaded:    make(map[entity.ModelID]port.Classifier),
	}
}

// Register добавляет модель; повторная регистрация заменяет фабрику.
func (r *ClassifierRegistry) Register(id entity.ModelID, factory port.ClassifierFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.factories[id]; !ok {
		r.order = append(r.order, id)
	}
	r.factories[id] = factory
	delete(r.loaded, id)
}

// Has проверяет, зарегистрирована ли модель.
func (r *ClassifierRegistry) Has(id entity.ModelID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.factories[id]
	return ok
}

// IDs идентификаторы в порядке регистрации.
func (r *ClassifierRegistry) IDs() []entity.ModelID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]entity.ModelID, len(r.order))
	copy(out, r.order)
	return out
}

// Get возвращает загруженный классификатор.
func (r *ClassifierRegistry) Get(id entity.ModelID) (port.Classifier, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.loaded[id]; ok {
		return c, nil
	}
	factory, ok := r.factories[id]
	if !ok {
		return nil, fmt.Errorf("%w: unknown model %q (available: %s)", entity.ErrInputValidation, id, r.available())
	}

	c, err := factory()
	if err != nil {
		if errors.Is(err, entity.ErrModelLoad) {
			return nil, fmt.Errorf("model %s: %w", id, err)
		}
		return nil, fmt.Errorf("%w: model %s: %v", entity.ErrModelLoad, id, err)
	}
	if c == nil {
		return nil, fmt.Errorf("%w: model %s: factory returned nil", entity.ErrModelLoad, id)
	}
	r.loaded[id] = c
	return c, nil
}

func (r *ClassifierRegistry) available() string {
	ids := make([]string, 0, len(r.order))
	for _, id := range r.order {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)
	return fmt.Sprint(ids)
}

// Close освобождает загруженные модели.
func (r *ClassifierRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for id, c := range r.loaded {
		if cl, ok := c.(io.Closer); ok {
			if err := cl.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", id, err))
			}
		}
		delete(r.loaded, id)
	}
	return errors.Join(errs...)
}
