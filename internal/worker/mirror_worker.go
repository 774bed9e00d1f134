package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"networth/internal/amqp"
	applog "networth/internal/log"
	"networth/internal/sections"
)

// MirrorWorker copies the document from the primary backend into a mirror
// store, typically the Google Sheets adapter.
type MirrorWorker struct {
	source sections.SectionReader
	mirror sections.SectionWriter
	logger *slog.Logger

	mu       sync.Mutex
	lastSync time.Time
}

func NewMirrorWorker(source sections.SectionReader, mirror sections.SectionWriter) *MirrorWorker {
	return &MirrorWorker{
		source: source,
		mirror: mirror,
		logger: slog.Default().With(applog.FieldComponent, applog.ComponentSheets),
	}
}

// HandleSectionSaved processes a single section saved message from AMQP.
// The whole document is copied so redelivered or reordered messages are harmless.
func (w *MirrorWorker) HandleSectionSaved(ctx context.Context, msg *amqp.SectionSavedMessage) error {
	w.logger.InfoContext(ctx, "Processing section saved message",
		applog.FieldSection, msg.Section,
		applog.FieldSectionIndex, msg.Index)
	return w.Sync(ctx)
}

// Sync copies the whole document. A missing source document is not an error.
func (w *MirrorWorker) Sync(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	all, err := w.source.ReadAll(ctx)
	if err != nil {
		if errors.Is(err, sections.ErrNotFound) || errors.Is(err, sections.ErrUnavailable) {
			w.logger.WarnContext(ctx, "No source document to mirror", applog.FieldError, err)
			return nil
		}
		return fmt.Errorf("read source document: %w", err)
	}

	if err := w.mirror.SaveAll(ctx, all); err != nil {
		return fmt.Errorf("write mirror document: %w", err)
	}

	w.lastSync = time.Now()
	w.logger.InfoContext(ctx, "Document mirrored", "sections", len(all))
	return nil
}

// LastSync returns the time of the last successful copy.
func (w *MirrorWorker) LastSync() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSync
}

// Run copies once immediately and then every interval until ctx is done.
// This is a backup mechanism in case AMQP messages are lost. A zero
// interval only performs the initial copy.
func (w *MirrorWorker) Run(ctx context.Context, interval time.Duration) error {
	if err := w.Sync(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Initial mirror failed", applog.FieldError, err)
	}
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := w.Sync(ctx); err != nil {
				w.logger.ErrorContext(ctx, "Periodic mirror failed", applog.FieldError, err)
			}
		}
	}
}
