package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"sessionauth/internal/domain"
	"sessionauth/internal/pkg/apperror"
	"sessionauth/internal/pkg/metrics"
	"sessionauth/internal/pkg/password"
	"sessionauth/internal/pkg/upload"
	"sessionauth/internal/repository"
)

var (
	ErrUserNotFound      = apperror.NotFound("User not found")
	ErrEmailTaken        = apperror.Conflict("Email already in use")
	ErrUsernameTaken     = apperror.Conflict("Username already in use")
	ErrPhoneTaken        = apperror.Conflict("Phone number already in use")
	ErrIdentityTaken     = apperror.Conflict("Email, username or phone number already in use")
	ErrWrongPassword     = apperror.Unauthorized("Old password is incorrect")
	ErrPasswordUnchanged = apperror.BadRequest("New password must be different from the old password")
	ErrPasswordTooLong   = apperror.BadRequest("Password must be at most 72 bytes")
	ErrNothingToUpdate   = apperror.BadRequest("No profile fields to update")
	ErrSessionNotFound   = apperror.NotFound("Session not found or already revoked")
)

type UpdateProfileInput struct {
	FullName *string
	Username *string
	Email    *string
	Phone    *string
	// AvatarPath is a staged upload owned by the service once UpdateProfile is called.
	AvatarPath string
}

type ChangePasswordInput struct {
	OldPassword string
	NewPassword string
}

// Service serves the signed-in user's own profile and devices.
type Service struct {
	users    UserRepositoryInterface
	sessions SessionRepositoryInterface
	hasher   PasswordHasher
	avatars  AvatarScheduler
	metrics  *metrics.Metrics
	log      *slog.Logger
	now      func() time.Time
}

func NewService(
	users UserRepositoryInterface,
	sessions SessionRepositoryInterface,
	hasher PasswordHasher,
	avatars AvatarScheduler,
	m *metrics.Metrics,
	log *slog.Logger,
	now func() time.Time,
) *Service {
	if m == nil {
		m = metrics.New()
	}
	if log == nil {
		log = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Service{users: users, sessions: sessions, hasher: hasher, avatars: avatars, metrics: m, log: log, now: now}
}

func (s *Service) GetMe(ctx context.Context, userID int64) (*domain.User, error) {
	u, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return u.Public(), nil
}

// UpdateProfile applies the provided fields. An avatar is uploaded in the background, so the
// returned user still carries the previous avatar URL.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, in UpdateProfileInput) (*domain.User, error) {
	avatarHandedOff := false
	defer func() {
		if !avatarHandedOff {
			upload.RemoveTemp(in.AvatarPath)
		}
	}()

	current, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if in.FullName != nil {
		if v := strings.TrimSpace(*in.FullName); v != current.FullName {
			fields["full_name"] = v
		}
	}

	changes := []struct {
		column  string
		value   *string
		current string
		exists  func(context.Context, string) (bool, error)
		taken   *apperror.Error
		lower   bool
	}{
		{"email", in.Email, current.Email, s.users.ExistsByEmail, ErrEmailTaken, true},
		{"username", in.Username, current.Username, s.users.ExistsByUsername, ErrUsernameTaken, true},
		{"phone", in.Phone, current.Phone, s.users.ExistsByPhone, ErrPhoneTaken, false},
	}
	for _, ch := range changes {
		if ch.value == nil {
			continue
		}
		v := strings.TrimSpace(*ch.value)
		if ch.lower {
			v = strings.ToLower(v)
		}
		if v == "" || v == ch.current {
			continue
		}
		found, err := ch.exists(ctx, v)
		if err != nil {
			return nil, apperror.Internal(fmt.Errorf("check %s availability: %w", ch.column, err))
		}
		if found {
			return nil, ch.taken
		}
		fields[ch.column] = v
	}

	if len(fields) == 0 && in.AvatarPath == "" {
		return nil, ErrNothingToUpdate
	}

	if len(fields) > 0 {
		if err := s.users.UpdateProfile(ctx, userID, fields); err != nil {
			switch {
			case errors.Is(err, repository.ErrUserConflict):
				return nil, ErrIdentityTaken
			case errors.Is(err, repository.ErrUserNotFound):
				return nil, ErrUserNotFound
			default:
				return nil, apperror.Internal(fmt.Errorf("update profile: %w", err))
			}
		}
	}

	if in.AvatarPath != "" && s.avatars != nil {
		avatarHandedOff = true
		if err := s.avatars.Schedule(ctx, userID, in.AvatarPath); err != nil {
			s.metrics.AvatarFailures.Inc()
			s.log.Error("avatar upload not scheduled", "user_id", userID, "error", err)
		}
	}

	return s.GetMe(ctx, userID)
}

// ChangePassword replaces the password and signs the user out everywhere.
func (s *Service) ChangePassword(ctx context.Context, userID int64, in ChangePasswordInput) error {
	u, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(in.OldPassword, u.PasswordHash) {
		return ErrWrongPassword
	}
	if in.OldPassword == in.NewPassword {
		return ErrPasswordUnchanged
	}

	digest, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		if errors.Is(err, password.ErrTooLong) {
			return ErrPasswordTooLong
		}
		return apperror.Internal(fmt.Errorf("hash password: %w", err))
	}
	if err := s.users.UpdatePassword(ctx, userID, digest); err != nil {
		return apperror.Internal(fmt.Errorf("update password: %w", err))
	}

	revoked, err := s.sessions.InvalidateAllForUser(ctx, userID)
	if err != nil {
		return apperror.Internal(fmt.Errorf("invalidate sessions: %w", err))
	}
	s.metrics.SessionsInvalidated.WithLabelValues("password_change").Add(float64(revoked))
	s.log.Info("password changed", "user_id", userID, "revoked_sessions", revoked)
	return nil
}

// ListSessions returns the user's active sessions, newest first. currentToken marks the
// session the caller is using, if any.
func (s *Service) ListSessions(ctx context.Context, userID int64, currentToken string) ([]SessionView, error) {
	sessions, err := s.sessions.ListActive(ctx, userID, s.now())
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("list sessions: %w", err))
	}

	out := make([]SessionView, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, SessionView{
			ID:        sess.ID,
			IP:        sess.IP,
			UserAgent: sess.UserAgent,
			CreatedAt: sess.CreatedAt,
			ExpiresAt: sess.ExpiresAt,
			Current:   currentToken != "" && sess.RefreshToken == currentToken,
		})
	}
	return out, nil
}

// RevokeSession signs one of the user's devices out.
func (s *Service) RevokeSession(ctx context.Context, userID, sessionID int64) error {
	flipped, err := s.sessions.InvalidateOwned(ctx, userID, sessionID, s.now())
	if err != nil {
		return apperror.Internal(fmt.Errorf("revoke session: %w", err))
	}
	if !flipped {
		return ErrSessionNotFound
	}
	s.metrics.SessionsInvalidated.WithLabelValues("user_revoke").Inc()
	return nil
}

func (s *Service) load(ctx context.Context, userID int64) (*domain.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, apperror.Internal(fmt.Errorf("load user: %w", err))
	}
	return u, nil
}
