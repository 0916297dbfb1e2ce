package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
	_ "modernc.org/sqlite"

	"github.com/valpere/dwgtran/internal"
)

// ErrNotFound is returned when no history record matches.
var ErrNotFound = errors.New("history record not found")

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Several sessions may record concurrently during a batch run.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS job_history (
		id TEXT PRIMARY KEY,
		job_id TEXT NOT NULL UNIQUE,
		file_name TEXT NOT NULL,
		file_name_norm TEXT NOT NULL,
		extension TEXT NOT NULL,
		size_bytes INTEGER DEFAULT 0,
		api_url TEXT,
		phase TEXT NOT NULL,
		progress INTEGER DEFAULT 0,
		error TEXT DEFAULT '',
		saved_path TEXT DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		downloaded_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_history_file ON job_history(file_name_norm);
	CREATE INDEX IF NOT EXISTS idx_history_created ON job_history(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

const recordColumns = `id, job_id, file_name, extension, size_bytes, api_url, phase, progress, error, saved_path, created_at, updated_at, downloaded_at`

// SaveRecord inserts rec, assigning an ID and timestamps when missing.
func (s *Store) SaveRecord(ctx context.Context, rec *internal.JobRecord) error {
	if rec.JobID == "" {
		return errors.New("job id is required")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO job_history (id, job_id, file_name, file_name_norm, extension, size_bytes, api_url, phase, progress, error, saved_path, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.JobID, rec.FileName, normalizeText(rec.FileName), rec.Extension, rec.SizeBytes, rec.APIURL,
		rec.Phase, rec.Progress, rec.Error, rec.SavedPath, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

// UpdateRecord stores the latest phase, progress and error of a job.
func (s *Store) UpdateRecord(ctx context.Context, jobID, phase string, progress int, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE job_history SET phase = ?, progress = ?, error = ?, updated_at = ? WHERE job_id = ?`,
		phase, progress, errMsg, time.Now().UTC(), jobID)
	if err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}
	return expectRow(res)
}

// MarkDownloaded records where the artifact of jobID was saved.
func (s *Store) MarkDownloaded(ctx context.Context, jobID, savedPath string) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE job_history SET saved_path = ?, downloaded_at = ?, updated_at = ? WHERE job_id = ?`,
		savedPath, now, now, jobID)
	if err != nil {
		return fmt.Errorf("failed to mark download: %w", err)
	}
	return expectRow(res)
}

// GetRecord returns the record with the given history ID.
func (s *Store) GetRecord(ctx context.Context, id string) (*internal.JobRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM job_history WHERE id = ?`, id)
	return scanRecord(row)
}

// FindByJobID returns the record of a backend job.
func (s *Store) FindByJobID(ctx context.Context, jobID string) (*internal.JobRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM job_history WHERE job_id = ?`, jobID)
	return scanRecord(row)
}

// FindByFileName returns all submissions of a file name, newest first.
// Names are compared after NFC normalization, so composed and decomposed
// spellings of the same name match.
func (s *Store) FindByFileName(ctx context.Context, name string) ([]internal.JobRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM job_history WHERE file_name_norm = ? ORDER BY created_at DESC`,
		normalizeText(name))
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// ListRecords returns the most recent records. limit <= 0 returns all.
func (s *Store) ListRecords(ctx context.Context, limit int) ([]internal.JobRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM job_history ORDER BY created_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// DeleteRecord permanently removes a record by history ID.
func (s *Store) DeleteRecord(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM job_history WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// ClearRecords removes all history records.
func (s *Store) ClearRecords(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM job_history`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// HistoryStats summarises the local job history.
type HistoryStats struct {
	Total      int   `json:"total" yaml:"total"`
	Completed  int   `json:"completed" yaml:"completed"`
	Failed     int   `json:"failed" yaml:"failed"`
	Cancelled  int   `json:"cancelled" yaml:"cancelled"`
	InProgress int   `json:"in_progress" yaml:"in_progress"`
	Downloaded int   `json:"downloaded" yaml:"downloaded"`
	TotalBytes int64 `json:"total_bytes" yaml:"total_bytes"`
}

// Stats returns summary statistics for the history.
func (s *Store) Stats(ctx context.Context) (*HistoryStats, error) {
	stats := &HistoryStats{}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN phase = 'completed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN phase = 'failed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN phase = 'cancelled' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN phase IN ('uploading', 'processing') THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN downloaded_at IS NOT NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(size_bytes), 0)
		FROM job_history`).Scan(
		&stats.Total,
		&stats.Completed,
		&stats.Failed,
		&stats.Cancelled,
		&stats.InProgress,
		&stats.Downloaded,
		&stats.TotalBytes,
	)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*internal.JobRecord, error) {
	var rec internal.JobRecord
	var apiURL sql.NullString
	var downloaded sql.NullTime

	err := row.Scan(&rec.ID, &rec.JobID, &rec.FileName, &rec.Extension, &rec.SizeBytes, &apiURL,
		&rec.Phase, &rec.Progress, &rec.Error, &rec.SavedPath, &rec.CreatedAt, &rec.UpdatedAt, &downloaded)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rec.APIURL = apiURL.String
	if downloaded.Valid {
		t := downloaded.Time
		rec.DownloadedAt = &t
	}
	return &rec, nil
}

func collect(rows *sql.Rows) ([]internal.JobRecord, error) {
	defer rows.Close()

	var records []internal.JobRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// normalizeText trims whitespace and applies Unicode NFC normalization
// for consistent file name comparison.
func normalizeText(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}
