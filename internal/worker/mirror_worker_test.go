package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"networth/internal/amqp"
	"networth/internal/core"
	"networth/internal/sections"
	"networth/internal/sections/memory"
)

type failingWriter struct{ calls int }

func (f *failingWriter) SaveSection(context.Context, int, core.Section) error { return nil }
func (f *failingWriter) SaveAll(context.Context, []core.Section) error {
	f.calls++
	return sections.ErrIOFailure
}

func TestMirrorWorker_HandleSectionSavedCopiesDocument(t *testing.T) {
	src := memory.New(memory.DefaultSections())
	dst := memory.New(nil)
	w := NewMirrorWorker(src, dst)
	ctx := context.Background()

	sec := core.Section{Name: "Assets", Role: core.RoleAssets, Groups: []core.Group{
		{Name: "Cash", Categories: []core.Category{{Name: "Checking", Value: core.MustAmount("42.5")}}},
	}}
	if err := src.SaveSection(ctx, 0, sec); err != nil {
		t.Fatalf("SaveSection: %v", err)
	}

	if err := w.HandleSectionSaved(ctx, amqp.NewSectionSavedMessage("Assets", 0, "42.5")); err != nil {
		t.Fatalf("HandleSectionSaved: %v", err)
	}

	got, err := dst.ReadAll(ctx)
	if err != nil {
		t.Fatalf("mirror ReadAll: %v", err)
	}
	if len(got) != 2 || !got[0].TotalValue.Equal(core.MustAmount("42.5")) {
		t.Fatalf("unexpected mirror contents: %+v", got)
	}
	if w.LastSync().IsZero() {
		t.Fatal("LastSync should be set")
	}
}

func TestMirrorWorker_MissingSourceIsSkipped(t *testing.T) {
	dst := &failingWriter{}
	w := NewMirrorWorker(memory.New(nil), dst)

	if err := w.Sync(context.Background()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if dst.calls != 0 {
		t.Fatalf("mirror should not be written, got %d calls", dst.calls)
	}
}

func TestMirrorWorker_MirrorFailureIsReturned(t *testing.T) {
	w := NewMirrorWorker(memory.New(memory.DefaultSections()), &failingWriter{})

	err := w.HandleSectionSaved(context.Background(), amqp.NewSectionSavedMessage("Assets", 0, "0"))
	if !errors.Is(err, sections.ErrIOFailure) {
		t.Fatalf("expected ErrIOFailure for requeue, got %v", err)
	}
	if !w.LastSync().IsZero() {
		t.Fatal("LastSync should stay zero after a failure")
	}
}

func TestMirrorWorker_RunStopsOnCancel(t *testing.T) {
	dst := memory.New(nil)
	w := NewMirrorWorker(memory.New(memory.DefaultSections()), dst)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, 10*time.Millisecond) }()

	deadline := time.After(2 * time.Second)
	for w.LastSync().IsZero() {
		select {
		case <-deadline:
			t.Fatal("initial sync did not happen")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}

	if _, err := dst.ReadAll(context.Background()); err != nil {
		t.Fatalf("mirror should hold the document: %v", err)
	}
}
