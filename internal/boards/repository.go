package boards

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bootboard/bootboard/internal/platform/db"
	"github.com/bootboard/bootboard/internal/shared"
)

// Repository persists boards.
type Repository interface {
	List(ctx context.Context, keyword string, limit, offset int) ([]Summary, int, error)
	Get(ctx context.Context, id int64) (*Board, error)
	Create(ctx context.Context, authorID int64, in Input) (int64, error)
	Update(ctx context.Context, id int64, in Input) error
	Delete(ctx context.Context, id int64) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// List returns one page of boards, newest first, optionally filtered by a
// case-insensitive keyword over title, content and author nickname.
func (r *PGRepository) List(ctx context.Context, keyword string, limit, offset int) ([]Summary, int, error) {
	var (
		where string
		args  []any
	)
	if keyword = strings.TrimSpace(keyword); keyword != "" {
		where = `WHERE b.title ILIKE $1 OR b.content ILIKE $1 OR m.nickname ILIKE $1`
		args = append(args, "%"+escapeLike(keyword)+"%")
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM boards b JOIN members m ON m.id = b.member_id ` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery := fmt.Sprintf(`
		SELECT b.id, b.title, m.nickname, b.created_at
		FROM boards b
		JOIN members m ON m.id = b.member_id
		%s
		ORDER BY b.id DESC
		LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)
	rows, err := r.pool.Query(ctx, listQuery, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ID, &s.Title, &s.Nickname, &s.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

// Get fetches a board with its author.
func (r *PGRepository) Get(ctx context.Context, id int64) (*Board, error) {
	var b Board
	err := r.pool.QueryRow(ctx, `
		SELECT b.id, b.title, b.content, b.member_id, m.username, m.nickname, b.created_at, b.updated_at
		FROM boards b
		JOIN members m ON m.id = b.member_id
		WHERE b.id = $1`, id).
		Scan(&b.ID, &b.Title, &b.Content, &b.AuthorID, &b.AuthorSubject, &b.AuthorNickname, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

// AuthorSubject returns the username of the board's author.
func (r *PGRepository) AuthorSubject(ctx context.Context, boardID int64) (string, error) {
	var subject string
	err := r.pool.QueryRow(ctx, `
		SELECT m.username FROM boards b JOIN members m ON m.id = b.member_id WHERE b.id = $1`, boardID).Scan(&subject)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", shared.ErrNotFound
	}
	return subject, err
}

// Create inserts a board.
func (r *PGRepository) Create(ctx context.Context, authorID int64, in Input) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO boards (title, content, member_id) VALUES ($1, $2, $3) RETURNING id`,
		in.Title, in.Content, authorID).Scan(&id)
	return id, err
}

// Update replaces title and content.
func (r *PGRepository) Update(ctx context.Context, id int64, in Input) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE boards SET title = $2, content = $3, updated_at = NOW() WHERE id = $1`,
		id, in.Title, in.Content)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes a board and its comments in one transaction.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM comments WHERE board_id = $1`, id); err != nil {
			return fmt.Errorf("delete comments: %w", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM boards WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete board: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

var _ Repository = (*PGRepository)(nil)
