package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"igfetch/pkg/instagram"
)

// Supported database drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const schema = `CREATE TABLE IF NOT EXISTS download_jobs (
	id            TEXT PRIMARY KEY,
	url           TEXT NOT NULL,
	type          TEXT NOT NULL,
	status        TEXT NOT NULL,
	metadata      TEXT,
	file_path     TEXT NOT NULL DEFAULT '',
	file_size     BIGINT NOT NULL DEFAULT 0,
	error         TEXT NOT NULL DEFAULT '',
	downloaded_at BIGINT,
	created_at    BIGINT NOT NULL,
	updated_at    BIGINT NOT NULL
)`

const indexSchema = `CREATE INDEX IF NOT EXISTS download_jobs_created_at ON download_jobs (created_at)`

const jobColumns = `id, url, type, status, metadata, file_path, file_size, error, downloaded_at, created_at, updated_at`

// SQLRepository stores jobs in a download_jobs table over database/sql.
// Timestamps are stored as Unix nanoseconds so both dialects share one
// schema.
type SQLRepository struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

// OpenSQL opens dsn with driver (sqlite or postgres) and migrates the schema.
// For sqlite the parent directory of a file DSN is created.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQLRepository, error) {
	switch driver {
	case DriverSQLite:
		if path := sqliteFilePath(dsn); path != "" {
			if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
				return nil, fmt.Errorf("creating jobs database dir: %w", err)
			}
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported jobs driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening jobs database: %w", err)
	}
	if driver == DriverSQLite {
		// one writer avoids SQLITE_BUSY between workers
		db.SetMaxOpenConns(1)
	}

	repo, err := NewSQLRepository(ctx, db, driver)
	if err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

// NewSQLRepository wraps an open database and migrates the schema
func NewSQLRepository(ctx context.Context, db *sql.DB, driver string) (*SQLRepository, error) {
	r := &SQLRepository{db: db, driver: driver, now: time.Now}
	if err := r.migrate(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *SQLRepository) migrate(ctx context.Context) error {
	for _, stmt := range []string{schema, indexSchema} {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrating jobs schema: %w", err)
		}
	}
	return nil
}

func sqliteFilePath(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" || strings.Contains(dsn, "mode=memory") {
		return ""
	}
	return path
}

// rebind rewrites ? placeholders for the postgres dialect
func (r *SQLRepository) rebind(query string) string {
	if r.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

func (r *SQLRepository) Create(ctx context.Context, url string, contentType instagram.ContentType) (*Job, error) {
	now := r.now().UTC()
	job := &Job{
		ID:        uuid.NewString(),
		URL:       url,
		Type:      contentType,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := r.db.ExecContext(ctx, r.rebind(`INSERT INTO download_jobs
		(id, url, type, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`),
		job.ID, job.URL, string(job.Type), string(job.Status), now.UnixNano(), now.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("inserting job: %w", err)
	}
	return job, nil
}

func (r *SQLRepository) Update(ctx context.Context, id string, u Update) (*Job, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning job update: %w", err)
	}
	defer tx.Rollback()

	job, err := r.get(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := u.Apply(job, r.now().UTC()); err != nil {
		return nil, err
	}

	metadata, err := encodeMetadata(job.Metadata)
	if err != nil {
		return nil, err
	}
	var downloadedAt sql.NullInt64
	if job.DownloadedAt != nil {
		downloadedAt = sql.NullInt64{Int64: job.DownloadedAt.UnixNano(), Valid: true}
	}

	_, err = tx.ExecContext(ctx, r.rebind(`UPDATE download_jobs SET
		status = ?, metadata = ?, file_path = ?, file_size = ?, error = ?, downloaded_at = ?, updated_at = ?
		WHERE id = ?`),
		string(job.Status), metadata, job.FilePath, job.FileSize, job.Error, downloadedAt,
		job.UpdatedAt.UnixNano(), id)
	if err != nil {
		return nil, fmt.Errorf("updating job: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing job update: %w", err)
	}
	return job, nil
}

func (r *SQLRepository) Get(ctx context.Context, id string) (*Job, error) {
	return r.get(ctx, r.db, id)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (r *SQLRepository) get(ctx context.Context, q queryer, id string) (*Job, error) {
	row := q.QueryRowContext(ctx, r.rebind(`SELECT `+jobColumns+` FROM download_jobs WHERE id = ?`), id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return job, err
}

func (r *SQLRepository) ListRecent(ctx context.Context, limit int) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM download_jobs ORDER BY created_at DESC, id DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	defer rows.Close()

	var list []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading jobs: %w", err)
	}
	return list, nil
}

// Close closes the database
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(s scanner) (*Job, error) {
	var (
		job          Job
		contentType  string
		status       string
		metadata     sql.NullString
		downloadedAt sql.NullInt64
		createdAt    int64
		updatedAt    int64
	)
	err := s.Scan(&job.ID, &job.URL, &contentType, &status, &metadata, &job.FilePath,
		&job.FileSize, &job.Error, &downloadedAt, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning job: %w", err)
	}

	job.Type = instagram.ContentType(contentType)
	if job.Status, err = ParseStatus(status); err != nil {
		return nil, err
	}
	if metadata.Valid && metadata.String != "" {
		var result instagram.ExtractionResult
		if err := json.Unmarshal([]byte(metadata.String), &result); err != nil {
			return nil, fmt.Errorf("decoding job metadata: %w", err)
		}
		job.Metadata = &result
	}
	if downloadedAt.Valid {
		t := time.Unix(0, downloadedAt.Int64).UTC()
		job.DownloadedAt = &t
	}
	job.CreatedAt = time.Unix(0, createdAt).UTC()
	job.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return &job, nil
}

func encodeMetadata(result *instagram.ExtractionResult) (sql.NullString, error) {
	if result == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encoding job metadata: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// Open returns the repository selected by driver: memory, sqlite or postgres
func Open(ctx context.Context, driver, dsn string) (Repository, error) {
	if driver == "" || driver == "memory" {
		return NewMemoryRepository(), nil
	}
	return OpenSQL(ctx, driver, dsn)
}
