package store

import (
	"context"
	"sync"

	"github.com/canopyhq/canopy/pkg/errors"
)

// MemoryStore keeps every item in a map. It is the default backend for
// tests and for ephemeral sessions with no configured database.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]Item
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]Item)}
}

// Get implements [Tx].
func (s *MemoryStore) Get(ctx context.Context, id string) (Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getItem(s.items, id)
}

// Put implements [Tx].
func (s *MemoryStore) Put(ctx context.Context, item Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return putItem(s.items, item)
}

// Delete implements [Tx].
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}

// QueryByIndex implements [Tx].
func (s *MemoryStore) QueryByIndex(ctx context.Context, field, value string) ([]Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryItems(s.items, field, value)
}

// Transaction implements [Store]. Mutations run against a staged copy of
// the map; the copy replaces the live state only when fn succeeds.
func (s *MemoryStore) Transaction(ctx context.Context, mode Mode, tables []string, fn func(tx Tx) error) error {
	if mode == ReadOnly {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return fn(readonlyTx{&memTx{items: s.items}})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	staged := make(map[string]Item, len(s.items))
	for k, v := range s.items {
		staged[k] = v
	}
	if err := fn(&memTx{items: staged}); err != nil {
		return err
	}
	s.items = staged
	return nil
}

// Close implements [Store].
func (s *MemoryStore) Close() error { return nil }

// memTx operates on a map the enclosing Transaction call already guards.
type memTx struct {
	items map[string]Item
}

func (t *memTx) Get(ctx context.Context, id string) (Item, error) {
	return getItem(t.items, id)
}

func (t *memTx) Put(ctx context.Context, item Item) error {
	return putItem(t.items, item)
}

func (t *memTx) Delete(ctx context.Context, id string) error {
	delete(t.items, id)
	return nil
}

func (t *memTx) QueryByIndex(ctx context.Context, field, value string) ([]Item, error) {
	return queryItems(t.items, field, value)
}

func getItem(items map[string]Item, id string) (Item, error) {
	item, ok := items[id]
	if !ok {
		return Item{}, errors.New(errors.ErrCodeNotFound, "item %s", id)
	}
	item.Data = cloneBytes(item.Data)
	return item, nil
}

func putItem(items map[string]Item, item Item) error {
	if item.ID == "" {
		return errors.New(errors.ErrCodeInvalidInput, "item has no id")
	}
	item.Data = cloneBytes(item.Data)
	items[item.ID] = item
	return nil
}

func queryItems(items map[string]Item, field, value string) ([]Item, error) {
	if _, ok := columnFor(field); !ok {
		return nil, errors.New(errors.ErrCodeInvalidInput, "field %q is not indexed", field)
	}
	var out []Item
	for _, item := range items {
		var got string
		switch field {
		case IndexKind:
			got = string(item.Kind)
		case IndexVault:
			got = item.VaultID
		case IndexName:
			got = item.Name
		}
		if got == value {
			item.Data = cloneBytes(item.Data)
			out = append(out, item)
		}
	}
	return out, nil
}

// cloneBytes keeps stored payloads isolated from caller mutation.
func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
