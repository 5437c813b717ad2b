package auth

import (
	"context"
	"time"

	"sessionauth/internal/domain"
	"sessionauth/internal/pkg/jwt"
)

// UserRepositoryInterface lists only the methods the auth service uses
type UserRepositoryInterface interface {
	CreateWithSession(ctx context.Context, u *domain.User, build func(*domain.User) (*domain.Session, error)) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByEmailOrUsername(ctx context.Context, identifier string) (*domain.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByPhone(ctx context.Context, phone string) (bool, error)
}

// SessionRepositoryInterface is the storage for refresh-token sessions
type SessionRepositoryInterface interface {
	Create(ctx context.Context, s *domain.Session) error
	InvalidateActive(ctx context.Context, userID int64, token string, now time.Time) (bool, error)
	Consume(ctx context.Context, userID int64, token string, now time.Time) (*domain.Session, error)
	InvalidateAllForOrigin(ctx context.Context, userID int64, ip, userAgent string) (int64, error)
}

type TokenCodec interface {
	IssuePair(sub jwt.Subject) (jwt.TokenPair, error)
	VerifyRefresh(token string) (*jwt.Claims, error)
	RefreshTTL() time.Duration
}

type PasswordHasher interface {
	Hash(secret string) (string, error)
	Verify(secret, digest string) bool
	VerifyDummy(secret string)
}

// AvatarScheduler takes ownership of a staged avatar file.
type AvatarScheduler interface {
	Schedule(ctx context.Context, userID int64, path string) error
}
