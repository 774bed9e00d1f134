// Package file stores the section document as one JSON file on disk.
//
// Writes go to a temporary file in the same directory which is synced and
// renamed over the document, so a failed save leaves the previous content in
// place. SaveSection is a read-modify-write of the whole document; it runs
// under an in-process mutex and an advisory lock on "<document>.lock" so two
// writers cannot interleave and silently drop each other's section.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"networth/internal/core"
	applog "networth/internal/log"
	"networth/internal/sections"
)

type Store struct {
	path   string
	logger *slog.Logger

	mu         sync.Mutex
	renameFile func(oldpath, newpath string) error
}

var _ sections.Store = (*Store)(nil)

// New returns a store for the document at path. The file does not need to
// exist yet; reads report sections.ErrNotFound until the first save.
func New(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		path:       path,
		logger:     logger.With(applog.FieldComponent, applog.ComponentStorage, "path", path),
		renameFile: os.Rename,
	}
}

// Path returns the document location.
func (s *Store) Path() string { return s.path }

// ReadAll returns every section in the document.
func (s *Store) ReadAll(ctx context.Context) ([]core.Section, error) {
	return s.read(ctx)
}

// ReadByName returns the section called name.
func (s *Store) ReadByName(ctx context.Context, name string) (core.Section, error) {
	all, err := s.read(ctx)
	if err != nil {
		return core.Section{}, err
	}
	return sections.FindByName(all, name)
}

// SaveSection replaces the section at index and rewrites the document.
func (s *Store) SaveSection(ctx context.Context, index int, sec core.Section) error {
	return s.withWriteLock(ctx, func() error {
		all, err := s.read(ctx)
		if err != nil {
			return err
		}
		next, err := sections.Replace(all, index, sec)
		if err != nil {
			return err
		}
		return s.write(ctx, next)
	})
}

// SaveAll replaces the whole document.
func (s *Store) SaveAll(ctx context.Context, all []core.Section) error {
	return s.withWriteLock(ctx, func() error {
		return s.write(ctx, all)
	})
}

func (s *Store) withWriteLock(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		s.logger.ErrorContext(ctx, "Create document directory failed", applog.FieldError, err)
		return fmt.Errorf("create document directory: %v: %w", err, sections.ErrIOFailure)
	}
	unlock, err := lockFile(s.path + ".lock")
	if err != nil {
		s.logger.ErrorContext(ctx, "Acquire document lock failed", applog.FieldError, err)
		return fmt.Errorf("lock document: %v: %w", err, sections.ErrIOFailure)
	}
	defer unlock()
	return fn()
}

func (s *Store) read(ctx context.Context) ([]core.Section, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("document %s: %w", s.path, sections.ErrNotFound)
		}
		s.logger.ErrorContext(ctx, "Error reading document", applog.FieldError, err, applog.FieldOperation, applog.OpRead)
		return nil, fmt.Errorf("read document: %v: %w", err, sections.ErrIOFailure)
	}
	all, err := sections.Decode(data)
	if err != nil {
		s.logger.WarnContext(ctx, "Document could not be parsed", applog.FieldError, err)
		return nil, err
	}
	return all, nil
}

func (s *Store) write(ctx context.Context, all []core.Section) error {
	data, err := sections.Encode(all)
	if err != nil {
		return fmt.Errorf("%v: %w", err, sections.ErrIOFailure)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+"-*.tmp")
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving document", applog.FieldError, err, applog.FieldOperation, applog.OpUpdate)
		return fmt.Errorf("create temp document: %v: %w", err, sections.ErrIOFailure)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		s.logger.ErrorContext(ctx, "Error saving document", applog.FieldError, err, applog.FieldOperation, applog.OpUpdate)
		return fmt.Errorf("write temp document: %v: %w", err, sections.ErrIOFailure)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		s.logger.ErrorContext(ctx, "Error saving document", applog.FieldError, err, applog.FieldOperation, applog.OpUpdate)
		return fmt.Errorf("sync temp document: %v: %w", err, sections.ErrIOFailure)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp document: %v: %w", err, sections.ErrIOFailure)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("chmod temp document: %v: %w", err, sections.ErrIOFailure)
	}
	if err := s.renameFile(tmpPath, s.path); err != nil {
		cleanup()
		s.logger.ErrorContext(ctx, "Error saving document", applog.FieldError, err, applog.FieldOperation, applog.OpUpdate)
		return fmt.Errorf("replace document: %v: %w", err, sections.ErrIOFailure)
	}

	s.logger.DebugContext(ctx, "Document saved", "bytes", len(data), "sections", len(all))
	return nil
}
