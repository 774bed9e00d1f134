package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"networth/internal/core"
	"networth/internal/sections"
)

func TestMemoryStoreSaveAndRead(t *testing.T) {
	ctx := context.Background()
	s := New(DefaultSections())

	all, err := s.ReadAll(ctx)
	if err != nil || len(all) != 2 {
		t.Fatalf("unexpected read: %v err=%v", all, err)
	}

	assets := all[0]
	assets.Groups = append(assets.Groups, core.Group{
		Name:       "Cash",
		Categories: []core.Category{{Name: "Checking", Value: core.MustAmount("100")}},
	})
	if err := s.SaveSection(ctx, 0, assets); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.ReadByName(ctx, "Assets")
	if err != nil {
		t.Fatalf("read by name: %v", err)
	}
	if !got.TotalValue.Equal(core.MustAmount("100")) {
		t.Fatalf("totals should be recomputed on save, got %s", got.TotalValue)
	}

	// Mutating what we got back must not leak into the store.
	got.Groups[0].Name = "Changed"
	again, _ := s.ReadByName(ctx, "Assets")
	if again.Groups[0].Name != "Cash" {
		t.Fatalf("store state aliased by caller")
	}
}

func TestMemoryStoreErrors(t *testing.T) {
	ctx := context.Background()

	empty := New(nil)
	if _, err := empty.ReadAll(ctx); !errors.Is(err, sections.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	s := New(DefaultSections())
	if _, err := s.ReadByName(ctx, "Equity"); !errors.Is(err, sections.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.SaveSection(ctx, 5, core.Section{Name: "X"}); !errors.Is(err, sections.ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestNewFromFilesSeeds(t *testing.T) {
	dir := t.TempDir()
	// No file -> defaults
	s := NewFromFiles(dir)
	all, _ := s.ReadAll(context.Background())
	if len(all) != 2 || all[0].Role != core.RoleAssets {
		t.Fatalf("expected default sections, got %+v", all)
	}

	doc := `[{"Name":"Mine","Groups":[{"Name":"Cash","Categories":[{"Name":"Checking","Value":5}],"TotalValue":0}],"TotalValue":0}]`
	if err := os.WriteFile(filepath.Join(dir, SeedFile), []byte(doc), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	s = NewFromFiles(dir)
	all, _ = s.ReadAll(context.Background())
	if len(all) != 1 || all[0].Name != "Mine" || !all[0].TotalValue.Equal(core.MustAmount("5")) {
		t.Fatalf("unexpected seeded sections: %+v", all)
	}
}
