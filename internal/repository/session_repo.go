package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"sessionauth/internal/database"
	"sessionauth/internal/domain"
)

// SessionRepository stores refresh-token grants. Every mutation is a single conditional
// UPDATE/DELETE, so concurrent callers never need an application-level lock.
type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, s *domain.Session) error {
	s.IsValid = true
	s.ExpiresAt = s.ExpiresAt.UTC()
	if err := r.db.WithContext(ctx).Create(s).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return ErrSessionConflict
		}
		return err
	}
	return nil
}

// FindActive returns the valid, unexpired session holding token for userID.
func (r *SessionRepository) FindActive(ctx context.Context, userID int64, token string, now time.Time) (*domain.Session, error) {
	var s domain.Session
	err := r.active(ctx, userID, token, now).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &s, nil
}

// Invalidate flips a session to invalid. Calling it on an already invalid session is a no-op.
func (r *SessionRepository) Invalidate(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("id = ? AND is_valid = ?", id, true).
		Update("is_valid", false).Error
}

// InvalidateOwned flips one of userID's active sessions by id and reports whether this call
// flipped it. Expired sessions count as already gone.
func (r *SessionRepository) InvalidateOwned(ctx context.Context, userID, id int64, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("id = ? AND user_id = ? AND is_valid = ? AND expires_at > ?", id, userID, true, now.UTC()).
		Update("is_valid", false)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// InvalidateActive flips the active session for (userID, token) and reports whether this
// call was the one that flipped it.
func (r *SessionRepository) InvalidateActive(ctx context.Context, userID int64, token string, now time.Time) (bool, error) {
	res := r.active(ctx, userID, token, now).
		Model(&domain.Session{}).
		Update("is_valid", false)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Consume atomically redeems a refresh token: the active row is flipped to invalid and
// returned. Of several concurrent callers presenting the same token exactly one gets the row,
// the others get ErrSessionNotFound.
func (r *SessionRepository) Consume(ctx context.Context, userID int64, token string, now time.Time) (*domain.Session, error) {
	flipped, err := r.InvalidateActive(ctx, userID, token, now)
	if err != nil {
		return nil, err
	}
	if !flipped {
		return nil, ErrSessionNotFound
	}

	var s domain.Session
	if err := r.db.WithContext(ctx).Where("refresh_token = ?", token).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// InvalidateAllForOrigin retires every valid session of userID opened from the exact
// ip and user agent.
func (r *SessionRepository) InvalidateAllForOrigin(ctx context.Context, userID int64, ip, userAgent string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("user_id = ? AND ip = ? AND user_agent = ? AND is_valid = ?", userID, ip, userAgent, true).
		Update("is_valid", false)
	return res.RowsAffected, res.Error
}

func (r *SessionRepository) InvalidateAllForUser(ctx context.Context, userID int64) (int64, error) {
	res := r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("user_id = ? AND is_valid = ?", userID, true).
		Update("is_valid", false)
	return res.RowsAffected, res.Error
}

func (r *SessionRepository) ListActive(ctx context.Context, userID int64, now time.Time) ([]domain.Session, error) {
	var out []domain.Session
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_valid = ? AND expires_at > ?", userID, true, now.UTC()).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}

// Reap deletes expired sessions and invalid sessions last touched before now-retention.
// Read paths already ignore both, so Reap only reclaims space.
func (r *SessionRepository) Reap(ctx context.Context, now time.Time, retention time.Duration) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at <= ? OR (is_valid = ? AND updated_at < ?)", now.UTC(), false, now.UTC().Add(-retention)).
		Delete(&domain.Session{})
	return res.RowsAffected, res.Error
}

func (r *SessionRepository) active(ctx context.Context, userID int64, token string, now time.Time) *gorm.DB {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND refresh_token = ? AND is_valid = ? AND expires_at > ?", userID, token, true, now.UTC())
}
