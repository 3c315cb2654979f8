package memory

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"gymweb/internal/storage"

	"github.com/patrickmn/go-cache"
)

type Storage struct {
	mu    sync.RWMutex
	items *cache.Cache
	path  string
}

// New returns an in-process store. When path is set the contents are loaded
// from it on start and written back after every change.
func New(path string) (*Storage, error) {
	const op = "storage.memory.New"

	items := cache.New(cache.NoExpiration, 0)
	if path != "" {
		if err := items.LoadFile(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	return &Storage{items: items, path: path}, nil
}

func (s *Storage) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.items.Get(key)
	if !ok {
		return "", storage.ErrKeyNotFound
	}

	str, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("storage.memory.Get: unexpected value type %T for %q", v, key)
	}

	return str, nil
}

func (s *Storage) SetMany(_ context.Context, values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range values {
		s.items.Set(k, v, cache.NoExpiration)
	}

	return s.persist()
}

func (s *Storage) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range keys {
		s.items.Delete(k)
	}

	return s.persist()
}

func (s *Storage) persist() error {
	if s.path == "" {
		return nil
	}
	if err := s.items.SaveFile(s.path); err != nil {
		return fmt.Errorf("storage.memory.persist: %w", err)
	}
	return nil
}
