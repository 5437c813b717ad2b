package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sessionauth/internal/domain"
	"sessionauth/internal/pkg/apperror"
	"sessionauth/internal/pkg/metrics"
	"sessionauth/internal/repository"
)

var (
	ErrUserNotFound    = apperror.NotFound("User not found")
	ErrSessionNotFound = apperror.NotFound("Session not found or already revoked")
)

// Service lets administrators inspect and revoke other users' sessions.
type Service struct {
	userRepo    UserRepository
	sessionRepo SessionRepository
	metrics     *metrics.Metrics
	log         *slog.Logger
	now         func() time.Time
}

func NewService(userRepo UserRepository, sessionRepo SessionRepository, m *metrics.Metrics, log *slog.Logger, now func() time.Time) *Service {
	if m == nil {
		m = metrics.New()
	}
	if log == nil {
		log = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Service{userRepo: userRepo, sessionRepo: sessionRepo, metrics: m, log: log, now: now}
}

// -------------------- Users --------------------

func (s *Service) GetUser(ctx context.Context, userID int64) (*domain.User, error) {
	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, apperror.Internal(fmt.Errorf("load user: %w", err))
	}
	return u.Public(), nil
}

// -------------------- Sessions --------------------

func (s *Service) ListUserSessions(ctx context.Context, userID int64) ([]domain.Session, error) {
	if _, err := s.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	sessions, err := s.sessionRepo.ListActive(ctx, userID, s.now())
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("list sessions: %w", err))
	}
	return sessions, nil
}

// RevokeUserSessions signs the user out everywhere. Access tokens already issued stay valid
// until they expire.
func (s *Service) RevokeUserSessions(ctx context.Context, adminID, userID int64) (int64, error) {
	if _, err := s.GetUser(ctx, userID); err != nil {
		return 0, err
	}
	revoked, err := s.sessionRepo.InvalidateAllForUser(ctx, userID)
	if err != nil {
		return 0, apperror.Internal(fmt.Errorf("revoke sessions: %w", err))
	}
	s.metrics.SessionsInvalidated.WithLabelValues("admin_revoke").Add(float64(revoked))
	s.log.Warn("admin revoked all sessions", "admin_id", adminID, "user_id", userID, "revoked", revoked)
	return revoked, nil
}

func (s *Service) RevokeSession(ctx context.Context, adminID, userID, sessionID int64) error {
	flipped, err := s.sessionRepo.InvalidateOwned(ctx, userID, sessionID, s.now())
	if err != nil {
		return apperror.Internal(fmt.Errorf("revoke session: %w", err))
	}
	if !flipped {
		return ErrSessionNotFound
	}
	s.metrics.SessionsInvalidated.WithLabelValues("admin_revoke").Inc()
	s.log.Warn("admin revoked session", "admin_id", adminID, "user_id", userID, "session_id", sessionID)
	return nil
}
