package repository

import (
	"context"
	"errors"

	"streamtube/internal/domain"
)

var (
	// ErrNotFound indicates no record matched the lookup.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a unique index rejected the write.
	ErrConflict = errors.New("unique constraint violated")
)

// AccountUpdate carries the optional fields of a partial profile update.
// Nil fields are left untouched.
type AccountUpdate struct {
	FullName *string
	Email    *string
}

// UserRepository defines persistence operations for User entities.
type UserRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, user *domain.User) (int64, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	// GetByUsernameOrEmail resolves a record matching either unique
	// column. Callers pass the same identifier in both positions when
	// resolving a login.
	GetByUsernameOrEmail(ctx context.Context, username, email string) (*domain.User, error)
	UpdateAccount(ctx context.Context, id int64, update AccountUpdate) error
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error
	// UpdateRefreshToken overwrites the stored refresh token; an empty
	// token clears it.
	UpdateRefreshToken(ctx context.Context, id int64, token string) error
	UpdateAvatarURL(ctx context.Context, id int64, url string) error
	UpdateCoverImageURL(ctx context.Context, id int64, url string) error
}
