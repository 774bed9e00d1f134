package backend

import (
	"context"
	"fmt"
	"log/slog"

	"networth/internal/amqp"
	"networth/internal/cache"
	applog "networth/internal/log"
	"networth/internal/sections"
	"networth/internal/sections/file"
	"networth/internal/sections/google"
	"networth/internal/sections/memory"
	"networth/internal/services"
	"networth/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger.With(applog.FieldComponent, applog.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend. The returned store
// publishes section saved messages when AMQP is configured, and a default
// document is written when none exists yet.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		store sections.Store
		err   error
	)
	switch config.Type {
	case FileBackend:
		store = f.createFileBackend(config)
	case SQLiteBackend:
		store, err = f.createSQLiteBackend(config)
	case SheetsBackend:
		store, err = OpenSheets(ctx, config)
		if err == nil && config.CacheTTL > 0 {
			store = cache.NewStore(store, config.CacheTTL, f.logger)
			f.logger.Info("Enabled read cache", "ttl", config.CacheTTL.String())
		}
	case MemoryBackend:
		store = f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	service := services.NewSectionService(store, f.createPublisher(config))
	result := &BackendResult{
		Store:   service,
		Cleanup: service.Close,
	}

	seeded, err := sections.EnsureDocument(ctx, service, memory.DefaultSections())
	if err != nil {
		_ = service.Close()
		return nil, fmt.Errorf("initialize document: %w", err)
	}
	if seeded {
		f.logger.InfoContext(ctx, "Created default document", applog.FieldBackend, config.Type.String())
	}
	result.Seeded = seeded

	return result, nil
}

func (f *DefaultFactory) createFileBackend(config Config) sections.Store {
	store := file.New(config.DataFile, f.logger)
	f.logger.Info("Initialized file backend", "path", store.Path())
	return store
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (sections.Store, error) {
	sqliteRepo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return sqliteRepo, nil
}

// OpenSheets connects the Google Sheets store described by config.
func OpenSheets(ctx context.Context, config Config) (*google.Client, error) {
	cli, err := google.NewWithOptions(ctx, google.Options{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		SheetName:       config.GoogleSheetName,
		CredentialsJSON: config.GoogleServiceAccountJSON,
		CredentialsFile: config.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	slog.InfoContext(ctx, "Initialized Google Sheets backend",
		applog.FieldComponent, applog.ComponentBackend,
		"sheet", config.GoogleSheetName)
	return cli, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) sections.Store {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data" // Default directory
	}

	store := memory.NewFromFiles(dataDir)

	f.logger.Info("Initialized memory backend", "data_directory", dataDir)
	return store
}

// createPublisher returns nil when AMQP is disabled or unreachable.
func (f *DefaultFactory) createPublisher(config Config) services.Publisher {
	if config.AMQPURL == "" {
		return nil
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without events", applog.FieldError, err)
		return nil
	}
	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client
}
