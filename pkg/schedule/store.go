package schedule

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Store persists schedule specs. Implementations must return copies so
// callers never alias stored state.
type Store interface {
	Create(ctx context.Context, spec *Spec) error
	Get(ctx context.Context, id uuid.UUID) (*Spec, error)
	Update(ctx context.Context, spec *Spec) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]*Spec, error)
}

// MemoryStore keeps specs in memory, for tests and throwaway sessions.
type MemoryStore struct {
	mu    sync.RWMutex
	specs map[uuid.UUID]*Spec
}

// NewMemoryStore creates an empty in-memory spec store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{specs: make(map[uuid.UUID]*Spec)}
}

func cloneSpec(s *Spec) *Spec {
	c := *s
	if s.Request.Options != nil {
		c.Request.Options = make(map[string]string, len(s.Request.Options))
		for k, v := range s.Request.Options {
			c.Request.Options[k] = v
		}
	}
	return &c
}

func (ms *MemoryStore) Create(ctx context.Context, spec *Spec) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.specs[spec.ID]; exists {
		return fmt.Errorf("%w: %s", ErrSpecExists, spec.ID)
	}

	ms.specs[spec.ID] = cloneSpec(spec)
	return nil
}

func (ms *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*Spec, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	s, ok := ms.specs[id]
	if !ok {
		return nil, ErrSpecNotFound
	}
	return cloneSpec(s), nil
}

func (ms *MemoryStore) Update(ctx context.Context, spec *Spec) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, ok := ms.specs[spec.ID]; !ok {
		return ErrSpecNotFound
	}

	ms.specs[spec.ID] = cloneSpec(spec)
	return nil
}

func (ms *MemoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, ok := ms.specs[id]; !ok {
		return ErrSpecNotFound
	}

	delete(ms.specs, id)
	return nil
}

func (ms *MemoryStore) List(ctx context.Context) ([]*Spec, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	out := make([]*Spec, 0, len(ms.specs))
	for _, s := range ms.specs {
		out = append(out, cloneSpec(s))
	}

	sort.Slice(out, func(i, k int) bool {
		return out[i].CreatedAt.Before(out[k].CreatedAt)
	})
	return out, nil
}
