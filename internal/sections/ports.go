package sections

import (
	"context"

	"networth/internal/core"
)

// Ports for outbound adapters.
type (
	// SectionReader reads the authoritative document.
	SectionReader interface {
		// ReadAll returns every section in document order.
		ReadAll(ctx context.Context) ([]core.Section, error)
		// ReadByName returns the first section whose name matches exactly.
		ReadByName(ctx context.Context, name string) (core.Section, error)
	}

	// SectionWriter replaces parts of the authoritative document.
	SectionWriter interface {
		// SaveSection replaces the element at index, whatever its name, and
		// rewrites the whole document.
		SaveSection(ctx context.Context, index int, s core.Section) error
		// SaveAll replaces the whole document.
		SaveAll(ctx context.Context, all []core.Section) error
	}

	Store interface {
		SectionReader
		SectionWriter
	}
)
