package models

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryImageRepository keeps items in process memory. It is used when no
// database is configured; items are returned as copies.
type MemoryImageRepository struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*ImageItem
	order []uuid.UUID
}

func NewMemoryImageRepository() *MemoryImageRepository {
	return &MemoryImageRepository{items: make(map[uuid.UUID]*ImageItem)}
}

func (r *MemoryImageRepository) Create(item *ImageItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	r.items[item.ID] = item.Clone()
	r.order = append(r.order, item.ID)
	return nil
}

func (r *MemoryImageRepository) GetByID(id uuid.UUID) (*ImageItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return item.Clone(), nil
}

func (r *MemoryImageRepository) List() ([]*ImageItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ImageItem, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.items[id].Clone())
	}
	return out, nil
}

func (r *MemoryImageRepository) Update(item *ImageItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[item.ID]; !ok {
		return ErrNotFound
	}
	r.items[item.ID] = item.Clone()
	return nil
}

func (r *MemoryImageRepository) Delete(id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return ErrNotFound
	}
	delete(r.items, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *MemoryImageRepository) DeleteAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = make(map[uuid.UUID]*ImageItem)
	r.order = nil
	return nil
}

func (r *MemoryImageRepository) Count() (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items), nil
}
