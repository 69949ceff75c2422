package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bootboard/bootboard/internal/platform/db"
	"github.com/bootboard/bootboard/internal/shared"
)

// Repository defines persistence operations for identities.
type Repository interface {
	FindBySubject(ctx context.Context, subject string) (*Identity, error)
	FindByID(ctx context.Context, id int64) (*Identity, error)
	ExistsBySubject(ctx context.Context, subject string) (bool, error)
	Save(ctx context.Context, identity Identity) (*Identity, error)
	List(ctx context.Context) ([]Identity, error)
	UpdateRole(ctx context.Context, id int64, role Role) (*Identity, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	db db.DBTX
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(conn db.DBTX) *PGRepository {
	return &PGRepository{db: conn}
}

const identityColumns = `id, username, nickname, password_hash, role, created_at`

func scanIdentity(row pgx.Row) (*Identity, error) {
	var (
		out  Identity
		role string
	)
	if err := row.Scan(&out.ID, &out.Subject, &out.DisplayName, &out.PasswordHash, &role, &out.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	out.Role = Role(role)
	return &out, nil
}

// FindBySubject fetches an identity by username.
func (r *PGRepository) FindBySubject(ctx context.Context, subject string) (*Identity, error) {
	return scanIdentity(r.db.QueryRow(ctx, `SELECT `+identityColumns+` FROM members WHERE username = $1`, subject))
}

// FindByID fetches an identity by primary key.
func (r *PGRepository) FindByID(ctx context.Context, id int64) (*Identity, error) {
	return scanIdentity(r.db.QueryRow(ctx, `SELECT `+identityColumns+` FROM members WHERE id = $1`, id))
}

// ExistsBySubject reports whether the username is taken.
func (r *PGRepository) ExistsBySubject(ctx context.Context, subject string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM members WHERE username = $1)`, subject).Scan(&exists)
	return exists, err
}

// Save inserts a new identity. A duplicate username maps to shared.ErrConflict.
func (r *PGRepository) Save(ctx context.Context, identity Identity) (*Identity, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO members (username, nickname, password_hash, role)
VALUES ($1, $2, $3, $4)
RETURNING `+identityColumns, identity.Subject, identity.DisplayName, identity.PasswordHash, string(identity.Role))
	saved, err := scanIdentity(row)
	if err != nil {
		if shared.IsUniqueViolation(err) {
			return nil, fmt.Errorf("username %q: %w", identity.Subject, shared.ErrConflict)
		}
		return nil, err
	}
	return saved, nil
}

// List returns every identity ordered by id.
func (r *PGRepository) List(ctx context.Context) ([]Identity, error) {
	rows, err := r.db.Query(ctx, `SELECT `+identityColumns+` FROM members ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Identity
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *identity)
	}
	return out, rows.Err()
}

// UpdateRole changes the role of the identity with id.
func (r *PGRepository) UpdateRole(ctx context.Context, id int64, role Role) (*Identity, error) {
	return scanIdentity(r.db.QueryRow(ctx, `UPDATE members SET role = $2, updated_at = NOW()
WHERE id = $1
RETURNING `+identityColumns, id, string(role)))
}

var _ Repository = (*PGRepository)(nil)
