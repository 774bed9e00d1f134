package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"networth/internal/amqp"
	"networth/internal/core"
	applog "networth/internal/log"
	"networth/internal/sections"
)

// Publisher sends section saved events.
type Publisher interface {
	PublishSectionSaved(ctx context.Context, msg *amqp.SectionSavedMessage) error
	Close() error
}

// SectionService orchestrates section saves across the store and AMQP
type SectionService struct {
	store     sections.Store
	publisher Publisher
	logger    *slog.Logger
}

var _ sections.Store = (*SectionService)(nil)

// NewSectionService creates the service. publisher may be nil.
func NewSectionService(store sections.Store, publisher Publisher) *SectionService {
	return &SectionService{
		store:     store,
		publisher: publisher,
		logger:    slog.Default().With(applog.FieldComponent, applog.ComponentStorage),
	}
}

func (s *SectionService) ReadAll(ctx context.Context) ([]core.Section, error) {
	return s.store.ReadAll(ctx)
}

func (s *SectionService) ReadByName(ctx context.Context, name string) (core.Section, error) {
	return s.store.ReadByName(ctx, name)
}

// SaveSection saves a section and publishes a section saved message
func (s *SectionService) SaveSection(ctx context.Context, index int, sec core.Section) error {
	if err := s.store.SaveSection(ctx, index, sec); err != nil {
		return fmt.Errorf("save section: %w", err)
	}

	// Don't fail the request - the section is saved
	s.publish(ctx, index, core.RecalculateSection(sec))
	return nil
}

// SaveAll replaces the document and publishes one message per section
func (s *SectionService) SaveAll(ctx context.Context, all []core.Section) error {
	if err := s.store.SaveAll(ctx, all); err != nil {
		return fmt.Errorf("save document: %w", err)
	}

	for i, sec := range core.Recalculate(all) {
		s.publish(ctx, i, sec)
	}
	return nil
}

func (s *SectionService) publish(ctx context.Context, index int, sec core.Section) {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "AMQP client not available, skipping section saved message",
			applog.FieldSection, sec.Name)
		return
	}

	msg := amqp.NewSectionSavedMessage(sec.Name, index, sec.TotalValue.String())
	if err := s.publisher.PublishSectionSaved(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish section saved message",
			applog.FieldOperation, applog.OpPublish,
			applog.FieldSection, sec.Name,
			applog.FieldSectionIndex, index,
			applog.FieldError, err)
	}
}

// Close closes the store, when it holds resources, and the AMQP connection
func (s *SectionService) Close() error {
	var errs []error

	if closer, ok := s.store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close section service: %w", err)
	}
	return nil
}
