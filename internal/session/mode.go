package session

import (
	"context"

	applog "networth/internal/log"
)

// Mode is the per-section view/edit toggle.
type Mode string

const (
	Viewing Mode = "viewing"
	Editing Mode = "editing"
)

// Mode returns the current mode of section si; unknown sections are viewing.
func (s *Session) Mode(si int) Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.modes[si]; ok {
		return m
	}
	return Viewing
}

// BeginEdit switches si to editing. Nothing is snapshotted: cancelling goes
// back to the store.
func (s *Session) BeginEdit(si int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkSection(si); err != nil {
		return err
	}
	s.modes[si] = Editing
	return nil
}

// CancelEdit discards every change made to si, structural ones included, by
// reloading it from the store, then returns to viewing. If the reload fails
// the section stays in editing.
func (s *Session) CancelEdit(ctx context.Context, si int) error {
	if _, err := s.ResetSection(ctx, si); err != nil {
		return err
	}
	s.setMode(ctx, si, Viewing)
	return nil
}

// SubmitEdit saves si and returns to viewing. If the save fails the section
// stays in editing.
func (s *Session) SubmitEdit(ctx context.Context, si int) error {
	if err := s.SaveSection(ctx, si); err != nil {
		return err
	}
	s.setMode(ctx, si, Viewing)
	return nil
}

func (s *Session) setMode(ctx context.Context, si int, m Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modes[si] = m
	s.logger.DebugContext(ctx, "Section mode changed", applog.FieldSectionIndex, si, applog.FieldMode, string(m))
}
