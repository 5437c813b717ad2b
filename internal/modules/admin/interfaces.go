package admin

import (
	"context"
	"time"

	"sessionauth/internal/domain"
)

type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

type SessionRepository interface {
	ListActive(ctx context.Context, userID int64, now time.Time) ([]domain.Session, error)
	InvalidateAllForUser(ctx context.Context, userID int64) (int64, error)
	InvalidateOwned(ctx context.Context, userID, id int64, now time.Time) (bool, error)
}
