package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Dataset labels for uploaded sources.
const (
	DatasetCRM       = "crm"
	DatasetExcel2025 = "excel2025"
)

// UploadedSource is one registered upload: the file it came from, the
// logical source label the records were tagged with and how many records
// the backend accepted.
type UploadedSource struct {
	ID          int64     `json:"id"`
	Filename    string    `json:"filename"`
	Source      string    `json:"source"`
	Dataset     string    `json:"dataset"`
	RecordCount int64     `json:"record_count"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// GetState implements cache.StateStore.
func (s *SQLiteStore) GetState(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM client_state WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get state %s: %w", key, err)
	}
	return value, true, nil
}

// SetState implements cache.StateStore.
func (s *SQLiteStore) SetState(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO client_state (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, value)
	if err != nil {
		return fmt.Errorf("set state %s: %w", key, err)
	}
	return nil
}

// DeleteState implements cache.StateStore. All keys are removed in one
// transaction so a partial clear cannot survive a crash.
func (s *SQLiteStore) DeleteState(ctx context.Context, keys ...string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete state: %w", err)
	}
	defer tx.Rollback()

	for _, key := range keys {
		if _, err := tx.ExecContext(ctx, `DELETE FROM client_state WHERE key = ?`, key); err != nil {
			return fmt.Errorf("delete state %s: %w", key, err)
		}
	}
	return tx.Commit()
}

// RecordUpload registers an accepted upload.
func (s *SQLiteStore) RecordUpload(ctx context.Context, src UploadedSource) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO uploaded_sources (filename, source, dataset, record_count) VALUES (?, ?, ?, ?)`,
		src.Filename, src.Source, src.Dataset, src.RecordCount)
	if err != nil {
		return 0, fmt.Errorf("record upload: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("record upload id: %w", err)
	}

	slog.InfoContext(ctx, "Upload registered",
		"id", id,
		"filename", src.Filename,
		"dataset", src.Dataset,
		"records", src.RecordCount)
	return id, nil
}

// ListSources returns every registered upload, newest first.
func (s *SQLiteStore) ListSources(ctx context.Context) ([]UploadedSource, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, source, dataset, record_count, uploaded_at
		 FROM uploaded_sources ORDER BY uploaded_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	var sources []UploadedSource
	for rows.Next() {
		var src UploadedSource
		if err := rows.Scan(&src.ID, &src.Filename, &src.Source, &src.Dataset, &src.RecordCount, &src.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// DeleteByFilename removes every upload registered under a filename and
// returns how many rows were removed.
func (s *SQLiteStore) DeleteByFilename(ctx context.Context, filename string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM uploaded_sources WHERE filename = ?`, filename)
	if err != nil {
		return 0, fmt.Errorf("delete by filename: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete by filename rows: %w", err)
	}
	return n, nil
}

// DeleteBySourceLabel removes every upload tagged with a source label and
// returns how many rows were removed.
func (s *SQLiteStore) DeleteBySourceLabel(ctx context.Context, source string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM uploaded_sources WHERE source = ?`, source)
	if err != nil {
		return 0, fmt.Errorf("delete by source: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete by source rows: %w", err)
	}
	return n, nil
}

// DeleteByDataset removes every upload belonging to a dataset.
func (s *SQLiteStore) DeleteByDataset(ctx context.Context, dataset string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM uploaded_sources WHERE dataset = ?`, dataset)
	if err != nil {
		return 0, fmt.Errorf("delete by dataset: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete by dataset rows: %w", err)
	}
	return n, nil
}
