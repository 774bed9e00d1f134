package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"networth/internal/core"
	"networth/internal/sections"
)

// SeedFile is the document name looked up by NewFromFiles.
const SeedFile = "NetWorthData.json"

// Store keeps the document as encoded bytes, so nothing a caller holds ever
// aliases the stored state.
type Store struct {
	mu  sync.Mutex
	doc []byte
}

var _ sections.Store = (*Store)(nil)

// New returns a store holding all.
func New(all []core.Section) *Store {
	s := &Store{}
	if all != nil {
		doc, err := sections.Encode(all)
		if err == nil {
			s.doc = doc
		}
	}
	return s
}

// NewFromFiles seeds the store from base/NetWorthData.json. A missing or
// unreadable file falls back to empty Assets and Liabilities sections.
func NewFromFiles(base string) *Store {
	data, err := os.ReadFile(filepath.Join(base, SeedFile))
	if err == nil {
		if all, err := sections.Decode(data); err == nil {
			return New(all)
		}
	}
	return New(DefaultSections())
}

// DefaultSections is the starting document of a fresh installation.
func DefaultSections() []core.Section {
	return []core.Section{
		{Name: "Assets", Role: core.RoleAssets, Groups: []core.Group{}},
		{Name: "Liabilities", Role: core.RoleLiabilities, Groups: []core.Group{}},
	}
}

// ReadAll returns the whole document.
func (s *Store) ReadAll(_ context.Context) ([]core.Section, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.decode()
}

// ReadByName returns one section.
func (s *Store) ReadByName(_ context.Context, name string) (core.Section, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.decode()
	if err != nil {
		return core.Section{}, err
	}
	return sections.FindByName(all, name)
}

// SaveSection replaces the element at index.
func (s *Store) SaveSection(_ context.Context, index int, sec core.Section) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.decode()
	if err != nil {
		return err
	}
	next, err := sections.Replace(all, index, sec)
	if err != nil {
		return err
	}
	return s.encode(next)
}

// SaveAll replaces the document.
func (s *Store) SaveAll(_ context.Context, all []core.Section) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.encode(all)
}

func (s *Store) decode() ([]core.Section, error) {
	if s.doc == nil {
		return nil, fmt.Errorf("memory document: %w", sections.ErrNotFound)
	}
	return sections.Decode(s.doc)
}

func (s *Store) encode(all []core.Section) error {
	doc, err := sections.Encode(all)
	if err != nil {
		return fmt.Errorf("%w: %v", sections.ErrIOFailure, err)
	}
	s.doc = doc
	return nil
}
