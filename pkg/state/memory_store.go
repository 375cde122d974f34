package state

import (
	"context"
	"sync"
)

// MemoryStore keeps snapshots in process, keyed by Ref.Identifier(). Snapshots
// implementing Clone() T are copied on the way in and out.
type MemoryStore[T any] struct {
	mu      sync.RWMutex
	records map[string]memoryRecord[T]
}

type memoryRecord[T any] struct {
	snapshot T
	meta     Meta
}

func NewMemoryStore[T any]() *MemoryStore[T] {
	return &MemoryStore[T]{records: map[string]memoryRecord[T]{}}
}

func (s *MemoryStore[T]) Load(ctx context.Context, ref Ref) (T, Meta, bool, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, Meta{}, false, err
	}
	key, err := ref.Identifier()
	if err != nil {
		return zero, Meta{}, false, err
	}

	s.mu.RLock()
	record, ok := s.records[key]
	s.mu.RUnlock()
	if !ok {
		return zero, Meta{}, false, nil
	}
	return cloneSnapshot(record.snapshot), cloneMeta(record.meta), true, nil
}

func (s *MemoryStore[T]) Save(ctx context.Context, ref Ref, snapshot T, meta Meta) (Meta, error) {
	if err := ctx.Err(); err != nil {
		return Meta{}, err
	}
	key, err := ref.Identifier()
	if err != nil {
		return Meta{}, err
	}

	s.mu.Lock()
	s.records[key] = memoryRecord[T]{snapshot: cloneSnapshot(snapshot), meta: cloneMeta(meta)}
	s.mu.Unlock()
	return cloneMeta(meta), nil
}

// Delete drops the snapshot stored for ref.
func (s *MemoryStore[T]) Delete(_ context.Context, ref Ref) error {
	key, err := ref.Identifier()
	if err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.records, key)
	s.mu.Unlock()
	return nil
}
