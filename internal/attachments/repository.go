package attachments

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/bootboard/bootboard/internal/platform/db"
	"github.com/bootboard/bootboard/internal/shared"
)

// Repository persists attachment metadata.
type Repository interface {
	Insert(ctx context.Context, a Attachment) (*Attachment, error)
	FindByID(ctx context.Context, id int64) (*Attachment, error)
	ListByBoard(ctx context.Context, boardID int64) ([]Attachment, error)
	Delete(ctx context.Context, id int64) error
	DeleteByBoard(ctx context.Context, boardID int64) ([]Attachment, error)
}

// ReferenceChecker answers whether a stored file is still in use.
type ReferenceChecker interface {
	StoredPathExists(ctx context.Context, relPath string) (bool, error)
	ContentReferences(ctx context.Context, storedName string) (bool, error)
}

// PGRepository implements Repository and ReferenceChecker using PostgreSQL.
type PGRepository struct {
	db db.DBTX
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(conn db.DBTX) *PGRepository {
	return &PGRepository{db: conn}
}

const attachmentColumns = `id, board_id, original_name, stored_path, size_bytes, mime_type, created_at`

func scanAttachment(row pgx.Row) (*Attachment, error) {
	var a Attachment
	if err := row.Scan(&a.ID, &a.BoardID, &a.OriginalName, &a.StoredPath, &a.SizeBytes, &a.MimeType, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func collect(rows pgx.Rows) ([]Attachment, error) {
	defer rows.Close()
	var out []Attachment
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// Insert records a stored file.
func (r *PGRepository) Insert(ctx context.Context, a Attachment) (*Attachment, error) {
	return scanAttachment(r.db.QueryRow(ctx, `INSERT INTO board_files (board_id, original_name, stored_path, size_bytes, mime_type)
VALUES ($1, $2, $3, $4, $5)
RETURNING `+attachmentColumns, a.BoardID, a.OriginalName, a.StoredPath, a.SizeBytes, a.MimeType))
}

// FindByID fetches one attachment.
func (r *PGRepository) FindByID(ctx context.Context, id int64) (*Attachment, error) {
	return scanAttachment(r.db.QueryRow(ctx, `SELECT `+attachmentColumns+` FROM board_files WHERE id = $1`, id))
}

// ListByBoard returns the attachments of a board in upload order.
func (r *PGRepository) ListByBoard(ctx context.Context, boardID int64) ([]Attachment, error) {
	rows, err := r.db.Query(ctx, `SELECT `+attachmentColumns+` FROM board_files WHERE board_id = $1 ORDER BY id`, boardID)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// Delete removes one attachment row.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM board_files WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// DeleteByBoard removes and returns every attachment row of a board.
func (r *PGRepository) DeleteByBoard(ctx context.Context, boardID int64) ([]Attachment, error) {
	rows, err := r.db.Query(ctx, `DELETE FROM board_files WHERE board_id = $1 RETURNING `+attachmentColumns, boardID)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// StoredPathExists reports whether a metadata row points at relPath.
func (r *PGRepository) StoredPathExists(ctx context.Context, relPath string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM board_files WHERE stored_path = $1)`, relPath).Scan(&exists)
	return exists, err
}

// ContentReferences reports whether any board content mentions storedName.
// Stored names are unique, so matching the name alone catches every
// spelling of the image URL.
func (r *PGRepository) ContentReferences(ctx context.Context, storedName string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM boards WHERE strpos(content, $1) > 0)`, storedName).Scan(&exists)
	return exists, err
}

var (
	_ Repository       = (*PGRepository)(nil)
	_ ReferenceChecker = (*PGRepository)(nil)
)
