package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"networth/internal/core"
	"networth/internal/sections"
	"networth/internal/sections/memory"
)

func writeDoc(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write doc: %v", err)
	}
	return path
}

const doc = `[{"Name":"Assets","Groups":[{"Name":"Cash","Categories":[{"Name":"Checking","Value":12.5},{"Name":"Savings","Value":7.5}],"TotalValue":0}],"TotalValue":0}]`

func TestSeed_DefaultsIntoEmptyStore(t *testing.T) {
	store := memory.New(nil)

	n, err := seed(context.Background(), store, "", false, false)
	if err != nil || n != 2 {
		t.Fatalf("seed = %d, %v", n, err)
	}
	all, err := store.ReadAll(context.Background())
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if all[0].Role != core.RoleAssets || all[1].Role != core.RoleLiabilities {
		t.Fatalf("roles = %q, %q", all[0].Role, all[1].Role)
	}
}

func TestSeed_FreshBackendNeedsNothing(t *testing.T) {
	store := memory.New(memory.DefaultSections())
	n, err := seed(context.Background(), store, "", false, true)
	if err != nil || n != 2 {
		t.Fatalf("seed = %d, %v", n, err)
	}
}

func TestSeed_FileIsRecalculated(t *testing.T) {
	store := memory.New(nil)
	path := writeDoc(t, doc)

	if _, err := seed(context.Background(), store, path, false, false); err != nil {
		t.Fatalf("seed: %v", err)
	}
	sec, err := store.ReadByName(context.Background(), "Assets")
	if err != nil {
		t.Fatalf("ReadByName: %v", err)
	}
	if got := sec.TotalValue.String(); got != "20" {
		t.Fatalf("total = %s, want 20", got)
	}
}

func TestSeed_ExistingDocument(t *testing.T) {
	store := memory.New(memory.DefaultSections())
	path := writeDoc(t, doc)

	if _, err := seed(context.Background(), store, path, false, false); !errors.Is(err, errDocumentExists) {
		t.Fatalf("err = %v, want errDocumentExists", err)
	}
	if _, err := seed(context.Background(), store, path, true, false); err != nil {
		t.Fatalf("forced seed: %v", err)
	}
	all, _ := store.ReadAll(context.Background())
	if len(all) != 1 {
		t.Fatalf("sections = %d, want 1", len(all))
	}
}

func TestSeed_FreshBackendAcceptsFile(t *testing.T) {
	store := memory.New(memory.DefaultSections())
	path := writeDoc(t, doc)

	if _, err := seed(context.Background(), store, path, false, true); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestSeed_BadFile(t *testing.T) {
	store := memory.New(nil)

	if _, err := seed(context.Background(), store, filepath.Join(t.TempDir(), "missing.json"), false, false); err == nil {
		t.Fatal("expected error for missing file")
	}
	if _, err := seed(context.Background(), store, writeDoc(t, "{not json"), false, false); !errors.Is(err, sections.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	if _, err := store.ReadAll(context.Background()); !errors.Is(err, sections.ErrNotFound) {
		t.Fatalf("store should still be empty, got %v", err)
	}
}
