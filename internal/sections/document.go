package sections

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"networth/internal/core"
)

// Decode parses a persisted document: one JSON array of sections.
// Empty input and malformed JSON both report ErrUnavailable.
func Decode(data []byte) ([]core.Section, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("decode document: empty: %w", ErrUnavailable)
	}
	var all []core.Section
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("decode document: %v: %w", err, ErrUnavailable)
	}
	if all == nil {
		all = []core.Section{}
	}
	return all, nil
}

// Encode serialises sections after recomputing their totals, so a document
// never hits storage with stale aggregates.
func Encode(all []core.Section) ([]byte, error) {
	all = core.Recalculate(all)
	data, err := json.Marshal(all)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return data, nil
}

// FindByName returns the section called name from all, or ErrNotFound.
func FindByName(all []core.Section, name string) (core.Section, error) {
	i := core.FindSection(all, name)
	if i < 0 {
		return core.Section{}, fmt.Errorf("section %q: %w", name, ErrNotFound)
	}
	return all[i].Clone(), nil
}

// Replace returns a copy of all with the element at index swapped for s.
func Replace(all []core.Section, index int, s core.Section) ([]core.Section, error) {
	if index < 0 || index >= len(all) {
		return nil, fmt.Errorf("save section %d of %d: %w", index, len(all), ErrIndexOutOfRange)
	}
	out := core.CloneSections(all)
	out[index] = s.Clone()
	return out, nil
}

// EnsureDocument writes seed when the store holds no document yet. An existing
// document is never touched, even when it cannot be parsed.
func EnsureDocument(ctx context.Context, store Store, seed []core.Section) (bool, error) {
	_, err := store.ReadAll(ctx)
	if err == nil || !errors.Is(err, ErrNotFound) {
		return false, err
	}
	if err := store.SaveAll(ctx, seed); err != nil {
		return false, fmt.Errorf("seed document: %w", err)
	}
	return true, nil
}
