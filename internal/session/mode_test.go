package session

import (
	"context"
	"errors"
	"testing"

	"networth/internal/core"
	"networth/internal/sections"
)

func TestCancelEditRefetchesStructuralChanges(t *testing.T) {
	s, _ := newLoaded(t)
	ctx := context.Background()

	if s.Mode(0) != Viewing {
		t.Fatalf("sections start in viewing mode")
	}
	if err := s.BeginEdit(0); err != nil {
		t.Fatalf("begin edit: %v", err)
	}
	if s.Mode(0) != Editing || s.Mode(1) != Viewing {
		t.Fatalf("mode must be per section")
	}
	s.AddGroup(ctx, 0, "Investments")
	s.AddCategory(ctx, 0, 0, "Savings")

	if err := s.CancelEdit(ctx, 0); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	sec, _ := s.Section(0)
	if len(sec.Groups) != 1 || len(sec.Groups[0].Categories) != 1 {
		t.Fatalf("structural edits survived cancel: %+v", sec)
	}
	if s.Mode(0) != Viewing {
		t.Fatalf("cancel should return to viewing")
	}
}

func TestSubmitEditSaves(t *testing.T) {
	s, store := newLoaded(t)
	ctx := context.Background()
	s.BeginEdit(1)
	s.AddGroup(ctx, 1, "Loans")
	if err := s.SubmitEdit(ctx, 1); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if s.Mode(1) != Viewing {
		t.Fatalf("submit should return to viewing")
	}
	got, _ := store.ReadByName(ctx, "Liabilities")
	if len(got.Groups) != 1 || got.Groups[0].Name != "Loans" {
		t.Fatalf("submitted section not stored: %+v", got)
	}
}

// brokenWrites reads from an inner store but fails every write.
type brokenWrites struct {
	sections.Store
}

func (brokenWrites) SaveSection(context.Context, int, core.Section) error {
	return sections.ErrIOFailure
}

func TestFailedSubmitStaysInEditing(t *testing.T) {
	s, store := newLoaded(t)
	ctx := context.Background()
	s.store = brokenWrites{Store: store}

	s.BeginEdit(0)
	if err := s.SubmitEdit(ctx, 0); !errors.Is(err, sections.ErrIOFailure) {
		t.Fatalf("expected ErrIOFailure, got %v", err)
	}
	if s.Mode(0) != Editing {
		t.Fatalf("failed submit should keep editing mode")
	}
}
