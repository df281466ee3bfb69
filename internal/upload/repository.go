// Package upload relays files to upload.ee on behalf of API callers and keeps
// a history of the outcomes.
package upload

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Status is the outcome of a relay.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Upload is one relayed file.
type Upload struct {
	ID          string    `json:"id"`
	FileName    string    `json:"fileName"`
	SizeBytes   int64     `json:"sizeBytes"`
	UploadID    *string   `json:"uploadId,omitempty"`
	Link        *string   `json:"link,omitempty"`
	ArchiveKey  *string   `json:"-"`
	ArchiveURL  *string   `json:"archiveUrl,omitempty"`
	Status      Status    `json:"status"`
	Error       *string   `json:"error,omitempty"`
	RequestedBy *string   `json:"requestedBy,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ErrNotFound is returned when an upload record does not exist.
var ErrNotFound = errors.New("upload not found")

// DB is the subset of pgxpool.Pool the repository needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository handles all upload history database operations.
type Repository struct {
	db DB
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

const selectColumns = `id, file_name, size_bytes, upload_id, link, archive_key, status, error, requested_by, created_at`

// Create inserts u and fills in its creation time.
func (r *Repository) Create(ctx context.Context, u *Upload) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO uploads (id, file_name, size_bytes, upload_id, link, archive_key, status, error, requested_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING created_at`,
		u.ID, u.FileName, u.SizeBytes, u.UploadID, u.Link, u.ArchiveKey, string(u.Status), u.Error, u.RequestedBy,
	).Scan(&u.CreatedAt)
	if err != nil {
		return fmt.Errorf("create upload: %w", err)
	}
	return nil
}

// GetByID fetches an upload by its UUID.
func (r *Repository) GetByID(ctx context.Context, id string) (*Upload, error) {
	u, err := scanUpload(r.db.QueryRow(ctx,
		`SELECT `+selectColumns+` FROM uploads WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get upload by id: %w", err)
	}
	return u, nil
}

// List returns the most recent uploads, newest first.
func (r *Repository) List(ctx context.Context, limit int) ([]Upload, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+selectColumns+` FROM uploads ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	defer rows.Close()

	uploads := make([]Upload, 0, limit)
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, fmt.Errorf("scan upload: %w", err)
		}
		uploads = append(uploads, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	return uploads, nil
}

func scanUpload(row pgx.Row) (*Upload, error) {
	u := &Upload{}
	var status string
	err := row.Scan(&u.ID, &u.FileName, &u.SizeBytes, &u.UploadID, &u.Link, &u.ArchiveKey,
		&status, &u.Error, &u.RequestedBy, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	u.Status = Status(status)
	return u, nil
}
