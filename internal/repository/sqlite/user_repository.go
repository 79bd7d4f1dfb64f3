package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"streamtube/internal/domain"
	"streamtube/internal/repository"
)

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL UNIQUE,
	full_name TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	avatar_url TEXT NOT NULL,
	cover_image_url TEXT NOT NULL DEFAULT '',
	refresh_token TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
`

const userColumns = `id, username, email, full_name, password_hash, avatar_url, cover_image_url, refresh_token, created_at, updated_at`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createUsersTable); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}
	return nil
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (int64, error) {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	res, err := r.db.ExecContext(ctx, `
INSERT INTO users (username, email, full_name, password_hash, avatar_url, cover_image_url, refresh_token, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.Username,
		user.Email,
		user.FullName,
		user.PasswordHash,
		user.AvatarURL,
		user.CoverImageURL,
		user.RefreshToken,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("insert user: %w", repository.ErrConflict)
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("user last insert id: %w", err)
	}
	user.ID = id
	return id, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+userColumns+`
FROM users
WHERE id = ?`,
		id,
	)
	return scanUser(row)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+userColumns+`
FROM users
WHERE username = ?`,
		username,
	)
	return scanUser(row)
}

func (r *UserRepository) GetByUsernameOrEmail(ctx context.Context, username, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+userColumns+`
FROM users
WHERE username = ? OR email = ?`,
		username,
		email,
	)
	return scanUser(row)
}

func (r *UserRepository) UpdateAccount(ctx context.Context, id int64, update repository.AccountUpdate) error {
	sets := make([]string, 0, 3)
	args := make([]any, 0, 4)
	if update.FullName != nil {
		sets = append(sets, "full_name=?")
		args = append(args, *update.FullName)
	}
	if update.Email != nil {
		sets = append(sets, "email=?")
		args = append(args, *update.Email)
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at=?")
	args = append(args, time.Now().UTC(), id)

	_, err := r.db.ExecContext(ctx, `
UPDATE users
SET `+strings.Join(sets, ", ")+`
WHERE id=?`,
		args...,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update account: %w", repository.ErrConflict)
		}
		return fmt.Errorf("update account: %w", err)
	}
	return nil
}

func (r *UserRepository) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	return r.updateColumn(ctx, id, "password_hash", hash)
}

func (r *UserRepository) UpdateRefreshToken(ctx context.Context, id int64, token string) error {
	return r.updateColumn(ctx, id, "refresh_token", token)
}

func (r *UserRepository) UpdateAvatarURL(ctx context.Context, id int64, url string) error {
	return r.updateColumn(ctx, id, "avatar_url", url)
}

func (r *UserRepository) UpdateCoverImageURL(ctx context.Context, id int64, url string) error {
	return r.updateColumn(ctx, id, "cover_image_url", url)
}

func (r *UserRepository) updateColumn(ctx context.Context, id int64, column, value string) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE users
SET `+column+`=?, updated_at=?
WHERE id=?`,
		value,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return fmt.Errorf("update user %s: %w", column, err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique")
}

func scanUser(row interface {
	Scan(dest ...any) error
}) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.FullName,
		&user.PasswordHash,
		&user.AvatarURL,
		&user.CoverImageURL,
		&user.RefreshToken,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &user, nil
}
