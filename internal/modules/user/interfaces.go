package user

import (
	"context"
	"time"

	"sessionauth/internal/domain"
)

type UserRepositoryInterface interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByPhone(ctx context.Context, phone string) (bool, error)
	UpdateProfile(ctx context.Context, id int64, fields map[string]any) error
	UpdatePassword(ctx context.Context, id int64, hash string) error
}

type SessionRepositoryInterface interface {
	InvalidateAllForUser(ctx context.Context, userID int64) (int64, error)
	InvalidateOwned(ctx context.Context, userID, id int64, now time.Time) (bool, error)
	ListActive(ctx context.Context, userID int64, now time.Time) ([]domain.Session, error)
}

type PasswordHasher interface {
	Hash(secret string) (string, error)
	Verify(secret, digest string) bool
}

type AvatarScheduler interface {
	Schedule(ctx context.Context, userID int64, path string) error
}
