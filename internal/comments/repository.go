package comments

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/bootboard/bootboard/internal/platform/db"
	"github.com/bootboard/bootboard/internal/shared"
)

// Repository persists comments.
type Repository interface {
	BoardExists(ctx context.Context, boardID int64) (bool, error)
	Insert(ctx context.Context, boardID, authorID int64, content string) (*Comment, error)
	FindByID(ctx context.Context, id int64) (*Comment, error)
	ListByBoard(ctx context.Context, boardID int64) ([]Comment, error)
	Delete(ctx context.Context, id int64) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	db db.DBTX
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(conn db.DBTX) *PGRepository {
	return &PGRepository{db: conn}
}

const selectComment = `
SELECT c.id, c.board_id, c.member_id, c.content, m.nickname, m.username, c.created_at
FROM comments c
JOIN members m ON m.id = c.member_id`

func scanComment(row pgx.Row) (*Comment, error) {
	var c Comment
	if err := row.Scan(&c.ID, &c.BoardID, &c.AuthorID, &c.Content, &c.Nickname, &c.Username, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// BoardExists reports whether the board is present.
func (r *PGRepository) BoardExists(ctx context.Context, boardID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM boards WHERE id = $1)`, boardID).Scan(&exists)
	return exists, err
}

// Insert stores a comment and returns it with the author's names.
func (r *PGRepository) Insert(ctx context.Context, boardID, authorID int64, content string) (*Comment, error) {
	var id int64
	err := r.db.QueryRow(ctx,
		`INSERT INTO comments (board_id, member_id, content) VALUES ($1, $2, $3) RETURNING id`,
		boardID, authorID, content).Scan(&id)
	if err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

// FindByID fetches a comment.
func (r *PGRepository) FindByID(ctx context.Context, id int64) (*Comment, error) {
	return scanComment(r.db.QueryRow(ctx, selectComment+` WHERE c.id = $1`, id))
}

// ListByBoard returns the comments of a board, newest first.
func (r *PGRepository) ListByBoard(ctx context.Context, boardID int64) ([]Comment, error) {
	rows, err := r.db.Query(ctx, selectComment+` WHERE c.board_id = $1 ORDER BY c.id DESC`, boardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Delete removes a comment.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ Repository = (*PGRepository)(nil)
