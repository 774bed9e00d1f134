// Package cache provides an in-process TTL cache and a read-through
// sections.Store decorator for slow remote backends.
package cache

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"networth/internal/core"
	applog "networth/internal/log"
	"networth/internal/sections"
)

const documentKey = "document"

// Store serves reads from a cached copy of the document for up to ttl. Any
// write, successful or not, drops the cached copy. A read that overlapped a
// write does not populate the cache.
type Store struct {
	inner  sections.Store
	docs   *LRUCache[[]core.Section]
	logger *slog.Logger

	mu  sync.Mutex
	gen uint64 // bumped when a write starts and when it ends
}

var _ sections.Store = (*Store)(nil)

// NewStore wraps inner with a document cache.
func NewStore(inner sections.Store, ttl time.Duration, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		inner:  inner,
		docs:   NewLRUCache[[]core.Section](1, ttl),
		logger: logger.With(applog.FieldComponent, applog.ComponentStorage),
	}
}

func (s *Store) ReadAll(ctx context.Context) ([]core.Section, error) {
	if all, ok := s.docs.Get(documentKey); ok {
		s.logger.DebugContext(ctx, "Document cache hit")
		return core.CloneSections(all), nil
	}
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()

	all, err := s.inner.ReadAll(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.gen == gen {
		s.docs.Set(documentKey, core.CloneSections(all))
	}
	s.mu.Unlock()
	return all, nil
}

func (s *Store) ReadByName(ctx context.Context, name string) (core.Section, error) {
	all, err := s.ReadAll(ctx)
	if err != nil {
		return core.Section{}, err
	}
	return sections.FindByName(all, name)
}

func (s *Store) SaveSection(ctx context.Context, index int, sec core.Section) error {
	s.invalidate()
	defer s.invalidate()
	return s.inner.SaveSection(ctx, index, sec)
}

func (s *Store) SaveAll(ctx context.Context, all []core.Section) error {
	s.invalidate()
	defer s.invalidate()
	return s.inner.SaveAll(ctx, all)
}

func (s *Store) invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.docs.Delete(documentKey)
}

// Close closes the wrapped store when it holds resources.
func (s *Store) Close() error {
	if c, ok := s.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
