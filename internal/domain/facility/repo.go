package facility

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/edflow/edflow/pkg/pagination"
)

// ErrNotFound is returned when no facility has the requested id.
var ErrNotFound = errors.New("facility not found")

// ValidationError rejects a facility before it reaches the repository.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Reason
}

type Repository interface {
	GetByID(ctx context.Context, id string) (*Facility, error)
	Upsert(ctx context.Context, f *Facility) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, limit, offset int) ([]*Facility, int, error)
}

// memoryRepo backs the directory when no database is configured.
type memoryRepo struct {
	mu    sync.RWMutex
	items map[string]*Facility
}

func NewMemoryRepo() Repository {
	return &memoryRepo{items: make(map[string]*Facility)}
}

func (r *memoryRepo) GetByID(_ context.Context, id string) (*Facility, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (r *memoryRepo) Upsert(_ context.Context, f *Facility) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	if existing, ok := r.items[f.ID]; ok {
		f.CreatedAt = existing.CreatedAt
	} else {
		f.CreatedAt = now
	}
	f.UpdatedAt = now
	cp := *f
	r.items[f.ID] = &cp
	return nil
}

func (r *memoryRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *memoryRepo) List(_ context.Context, limit, offset int) ([]*Facility, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.items))
	for id := range r.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	start, end := pagination.Params{Limit: limit, Offset: offset}.Window(len(ids))
	items := make([]*Facility, 0, end-start)
	for _, id := range ids[start:end] {
		cp := *r.items[id]
		items = append(items, &cp)
	}
	return items, len(ids), nil
}
