package wrap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// ErrKeyNotFound is returned by MemoryStore.Get for missing keys.
var ErrKeyNotFound = errors.New("key not found")

type memoryEntry struct {
	Value     any
	UpdatedAt time.Time
}

// MemoryStore is an in-memory NamespacedStore.
// It uses sync.Map for concurrent-safe storage; namespaces share the map and
// prefix their keys.
type MemoryStore struct {
	data   *sync.Map // map[string]memoryEntry
	prefix string
}

var _ NamespacedStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: &sync.Map{}}
}

func (s *MemoryStore) key(k string) string { return s.prefix + k }

func (s *MemoryStore) Has(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, ok := s.data.Load(s.key(key))
	return ok, nil
}

func (s *MemoryStore) Get(ctx context.Context, key string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, ok := s.data.Load(s.key(key))
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	return raw.(memoryEntry).Value, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, value any) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.data.Store(s.key(key), memoryEntry{Value: value, UpdatedAt: time.Now()})
	return nil
}

func (s *MemoryStore) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.data.Delete(s.key(key))
	return nil
}

// Clear removes every key of this namespace, including nested namespaces.
func (s *MemoryStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.data.Range(func(k, _ any) bool {
		if strings.HasPrefix(k.(string), s.prefix) {
			s.data.Delete(k)
		}
		return true
	})
	return nil
}

// Namespace returns a view of the store whose keys live under name.
func (s *MemoryStore) Namespace(name string) Store {
	return &MemoryStore{data: s.data, prefix: s.prefix + name + "\x00"}
}

// Count returns the number of keys in this namespace
func (s *MemoryStore) Count() int {
	count := 0
	s.data.Range(func(k, _ any) bool {
		if strings.HasPrefix(k.(string), s.prefix) {
			count++
		}
		return true
	})
	return count
}
