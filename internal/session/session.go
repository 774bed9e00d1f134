// Package session holds the editable working copy of every section.
//
// A Session owns its collection: callers only ever receive deep copies, and
// every change goes through one of its methods, after which all totals are
// recomputed. The authoritative copy lives in a sections.Store; a section is
// written back with SaveSection and discarded with ReloadSection, which always
// refetches from the store rather than restoring an in-memory snapshot.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"networth/internal/core"
	applog "networth/internal/log"
	"networth/internal/sections"
)

// ErrIndexOutOfRange is returned for a section, group or category position
// that does not exist in the working copy.
var ErrIndexOutOfRange = errors.New("index out of range")

// Session is the single editing session over the store.
type Session struct {
	store  sections.Store
	logger *applog.Logger
	events *applog.StructuredLogger

	mu      sync.Mutex
	working []core.Section
	modes   map[int]Mode
}

// New creates an empty session; call LoadAll to populate it.
func New(store sections.Store, logger *applog.Logger) *Session {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentSession)
	return &Session{
		store:   store,
		logger:  logger,
		events:  applog.NewStructuredLogger(logger),
		working: []core.Section{},
		modes:   make(map[int]Mode),
	}
}

// Snapshot returns a copy of the whole working collection.
func (s *Session) Snapshot() []core.Section {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.CloneSections(s.working)
}

// Section returns a copy of the working section at si.
func (s *Session) Section(si int) (core.Section, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkSection(si); err != nil {
		return core.Section{}, err
	}
	return s.working[si].Clone(), nil
}

// NetWorth summarises the working copy.
func (s *Session) NetWorth() core.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.NetWorth(s.working)
}

// LoadAll replaces the working collection with the store's document. When the
// store has no usable document the session is left empty and the error is
// returned so the caller can report "no data".
func (s *Session) LoadAll(ctx context.Context) ([]core.Section, error) {
	all, err := s.store.ReadAll(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.modes = make(map[int]Mode)
	if err != nil {
		s.working = []core.Section{}
		if sections.IsNoData(err) {
			s.logger.WarnContext(ctx, "No section data available", applog.FieldError, err, applog.FieldOperation, applog.OpLoad)
		} else {
			s.logger.ErrorContext(ctx, "Loading sections failed", applog.FieldError, err, applog.FieldOperation, applog.OpLoad)
		}
		return core.CloneSections(s.working), fmt.Errorf("load sections: %w", err)
	}
	s.working = core.Recalculate(all)
	s.logger.InfoContext(ctx, "Sections loaded", "sections", len(s.working))
	return core.CloneSections(s.working), nil
}

// ReloadSection fetches the section called name from the store and puts it at
// si, discarding unsaved edits to that section only. On error the working
// copy is unchanged.
func (s *Session) ReloadSection(ctx context.Context, name string, si int) ([]core.Section, error) {
	s.mu.Lock()
	if err := s.checkSection(si); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	fresh, err := s.store.ReadByName(ctx, name)
	if err != nil {
		s.logger.ErrorContext(ctx, "Reloading section failed", applog.FieldSection, name, applog.FieldSectionIndex, si, applog.FieldError, err)
		return nil, fmt.Errorf("reload section %q: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkSection(si); err != nil {
		return nil, err
	}
	s.working[si] = fresh
	s.working = core.Recalculate(s.working)
	s.events.LogSectionReloaded(ctx, name, si)
	return core.CloneSections(s.working), nil
}

// ResetSection reloads the section at si using its current name.
func (s *Session) ResetSection(ctx context.Context, si int) ([]core.Section, error) {
	sec, err := s.Section(si)
	if err != nil {
		return nil, err
	}
	return s.ReloadSection(ctx, sec.Name, si)
}

// SaveSection writes the working section at si to the store at the same
// index. Other sections in the store are not affected.
func (s *Session) SaveSection(ctx context.Context, si int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkSection(si); err != nil {
		return err
	}
	s.working = core.Recalculate(s.working)
	sec := s.working[si].Clone()
	if err := s.store.SaveSection(ctx, si, sec); err != nil {
		s.logger.ErrorContext(ctx, "Saving section failed", applog.FieldSection, sec.Name, applog.FieldSectionIndex, si, applog.FieldError, err)
		return fmt.Errorf("save section %q: %w", sec.Name, err)
	}
	s.events.LogSectionSaved(ctx, sec.Name, si, sec.TotalValue.String())
	return nil
}

// SetCategoryValue coerces raw with core.ParseCategoryValue and stores it.
func (s *Session) SetCategoryValue(si, gi, ci int, raw string) ([]core.Section, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkCategory(si, gi, ci); err != nil {
		return nil, err
	}
	value := core.ParseCategoryValue(raw)
	cat := &s.working[si].Groups[gi].Categories[ci]
	if value.String() != strings.TrimSpace(raw) {
		fields := applog.NewFields().
			WithSection(s.working[si].Name, si).
			WithGroup(s.working[si].Groups[gi].Name, gi).
			WithCategory(cat.Name, ci).
			ToSlice()
		s.logger.Debug("Category value coerced", append(fields, "input", raw, "value", value.String())...)
	}
	cat.Value = value
	return s.recalculate(), nil
}

// AddGroup appends an empty group. Empty or duplicate names are rejected with
// core.ErrValidationRejected and leave the section unchanged.
func (s *Session) AddGroup(ctx context.Context, si int, name string) ([]core.Section, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkSection(si); err != nil {
		return nil, err
	}
	sec := &s.working[si]
	if err := core.ValidateNewName(sec.GroupNames(), name); err != nil {
		s.events.LogRejected(ctx, "Add group rejected", err, applog.NewFields().WithSection(sec.Name, si))
		return nil, err
	}
	sec.Groups = append(sec.Groups, core.Group{Name: name, Categories: []core.Category{}})
	return s.recalculate(), nil
}

// AddCategory appends a zero-valued category to a group, with the same name
// rules as AddGroup scoped to the group.
func (s *Session) AddCategory(ctx context.Context, si, gi int, name string) ([]core.Section, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkGroup(si, gi); err != nil {
		return nil, err
	}
	g := &s.working[si].Groups[gi]
	if err := core.ValidateNewName(g.CategoryNames(), name); err != nil {
		fields := applog.NewFields().WithSection(s.working[si].Name, si).WithGroup(g.Name, gi)
		s.events.LogRejected(ctx, "Add category rejected", err, fields)
		return nil, err
	}
	g.Categories = append(g.Categories, core.Category{Name: name})
	return s.recalculate(), nil
}

// DeleteGroup removes a group and its categories. Remaining groups keep their
// relative order.
func (s *Session) DeleteGroup(si, gi int) ([]core.Section, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkGroup(si, gi); err != nil {
		return nil, err
	}
	groups := s.working[si].Groups
	s.working[si].Groups = append(groups[:gi:gi], groups[gi+1:]...)
	return s.recalculate(), nil
}

// DeleteCategory removes one category; the group stays even when it becomes
// empty.
func (s *Session) DeleteCategory(si, gi, ci int) ([]core.Section, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkCategory(si, gi, ci); err != nil {
		return nil, err
	}
	cats := s.working[si].Groups[gi].Categories
	s.working[si].Groups[gi].Categories = append(cats[:ci:ci], cats[ci+1:]...)
	return s.recalculate(), nil
}

// recalculate must be called with mu held.
func (s *Session) recalculate() []core.Section {
	s.working = core.Recalculate(s.working)
	return core.CloneSections(s.working)
}

func (s *Session) checkSection(si int) error {
	if si < 0 || si >= len(s.working) {
		return fmt.Errorf("section %d: %w", si, ErrIndexOutOfRange)
	}
	return nil
}

func (s *Session) checkGroup(si, gi int) error {
	if err := s.checkSection(si); err != nil {
		return err
	}
	if gi < 0 || gi >= len(s.working[si].Groups) {
		return fmt.Errorf("section %d group %d: %w", si, gi, ErrIndexOutOfRange)
	}
	return nil
}

func (s *Session) checkCategory(si, gi, ci int) error {
	if err := s.checkGroup(si, gi); err != nil {
		return err
	}
	if ci < 0 || ci >= len(s.working[si].Groups[gi].Categories) {
		return fmt.Errorf("section %d group %d category %d: %w", si, gi, ci, ErrIndexOutOfRange)
	}
	return nil
}
