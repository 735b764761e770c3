package storage

import (
	"context"
	"database/sql"
	"sort"
	"sync"

	"mri-bot/internal/domain/entity"
	"mri-bot/internal/domain/port"
)

// ErrNotFound запись не найдена
var ErrNotFound = sql.ErrNoRows

// DefaultListLimit размер выборки истории, если limit не задан
const DefaultListLimit = 50

// MemoryAnalysisRepository история анализов в памяти процесса
type MemoryAnalysisRepository struct {
	mu    sync.RWMutex
	items map[string]*entity.Analysis
}

// NewMemoryAnalysisRepository создаёт пустую историю
func NewMemoryAnalysisRepository() *MemoryAnalysisRepository {
	return &MemoryAnalysisRepository{items: make(map[string]*entity.Analysis)}
}

// Save сохраняет копию записи
func (r *MemoryAnalysisRepository) Save(ctx context.Context, a *entity.Analysis) error {
	cp := *a
	r.mu.Lock()
	r.items[a.ID] = &cp
	r.mu.Unlock()
	return nil
}

// Get возвращает запись по ID
func (r *MemoryAnalysisRepository) Get(ctx context.Context, id string) (*entity.Analysis, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

// List возвращает последние записи, новые первыми
func (r *MemoryAnalysisRepository) List(ctx context.Context, limit int) ([]*entity.Analysis, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	r.mu.RLock()
	out := make([]*entity.Analysis, 0, len(r.items))
	for _, a := range r.items {
		cp := *a
		out = append(out, &cp)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ port.AnalysisRepository = (*MemoryAnalysisRepository)(nil)
