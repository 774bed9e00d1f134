package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"networth/internal/core"
	applog "networth/internal/log"
	"networth/internal/sections"

	_ "modernc.org/sqlite"
)

// documentID is the only row of the documents table.
const documentID = 1

const (
	selectDocument = `SELECT body FROM documents WHERE id = ?`
	upsertDocument = `INSERT INTO documents (id, body, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`
)

// SQLiteRepository keeps the section document in a single SQLite row.
type SQLiteRepository struct {
	db     *sql.DB
	logger *slog.Logger

	// mu serialises read-modify-write saves; the transaction makes each one
	// atomic on disk.
	mu sync.Mutex
}

var _ sections.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:     db,
		logger: slog.Default().With(applog.FieldComponent, applog.ComponentStorage, applog.FieldBackend, "sqlite"),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// ReadAll implements sections.SectionReader
func (r *SQLiteRepository) ReadAll(ctx context.Context) ([]core.Section, error) {
	return r.load(ctx, r.db)
}

// ReadByName implements sections.SectionReader
func (r *SQLiteRepository) ReadByName(ctx context.Context, name string) (core.Section, error) {
	all, err := r.load(ctx, r.db)
	if err != nil {
		return core.Section{}, err
	}
	return sections.FindByName(all, name)
}

// SaveSection implements sections.SectionWriter
func (r *SQLiteRepository) SaveSection(ctx context.Context, index int, s core.Section) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		all, err := r.load(ctx, tx)
		if err != nil {
			return err
		}
		next, err := sections.Replace(all, index, s)
		if err != nil {
			return err
		}
		return r.store(ctx, tx, next)
	})
}

// SaveAll implements sections.SectionWriter
func (r *SQLiteRepository) SaveAll(ctx context.Context, all []core.Section) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		return r.store(ctx, tx, all)
	})
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *SQLiteRepository) load(ctx context.Context, q querier) ([]core.Section, error) {
	var body string
	err := q.QueryRowContext(ctx, selectDocument, documentID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sqlite document: %w", sections.ErrNotFound)
	}
	if err != nil {
		r.logger.ErrorContext(ctx, "Error fetching document", applog.FieldError, err)
		return nil, fmt.Errorf("select document: %v: %w", err, sections.ErrIOFailure)
	}
	return sections.Decode([]byte(body))
}

func (r *SQLiteRepository) store(ctx context.Context, tx *sql.Tx, all []core.Section) error {
	body, err := sections.Encode(all)
	if err != nil {
		return fmt.Errorf("%v: %w", err, sections.ErrIOFailure)
	}
	if _, err := tx.ExecContext(ctx, upsertDocument, documentID, string(body)); err != nil {
		r.logger.ErrorContext(ctx, "Error saving document", applog.FieldError, err)
		return fmt.Errorf("upsert document: %v: %w", err, sections.ErrIOFailure)
	}
	return nil
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %v: %w", err, sections.ErrIOFailure)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		r.logger.ErrorContext(ctx, "Commit failed", applog.FieldError, err)
		return fmt.Errorf("commit: %v: %w", err, sections.ErrIOFailure)
	}
	return nil
}
