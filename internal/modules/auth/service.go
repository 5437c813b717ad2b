package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"sessionauth/internal/domain"
	"sessionauth/internal/pkg/apperror"
	"sessionauth/internal/pkg/jwt"
	"sessionauth/internal/pkg/metrics"
	"sessionauth/internal/pkg/password"
	"sessionauth/internal/pkg/upload"
	"sessionauth/internal/repository"
)

// Origin identifies the device a session was opened from. Matching is exact on both fields.
type Origin struct {
	IP        string
	UserAgent string
}

type RegisterInput struct {
	FullName string
	Username string
	Email    string
	Phone    string
	Password string
	// AvatarPath is a staged upload. The service owns it from the moment Register is called.
	AvatarPath string
	Origin     Origin
}

type LoginInput struct {
	EmailOrUsername string
	Password        string
	Origin          Origin
}

type AuthResult struct {
	User         *domain.User
	AccessToken  string
	RefreshToken string
}

type RefreshResult struct {
	AccessToken  string
	RefreshToken string
}

// Service owns the session lifecycle: register, login, logout and refresh with rotation.
type Service struct {
	users    UserRepositoryInterface
	sessions SessionRepositoryInterface
	codec    TokenCodec
	hasher   PasswordHasher
	avatars  AvatarScheduler
	metrics  *metrics.Metrics
	log      *slog.Logger
	now      func() time.Time
}

func NewService(
	users UserRepositoryInterface,
	sessions SessionRepositoryInterface,
	codec TokenCodec,
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
	return &Service{
		users:    users,
		sessions: sessions,
		codec:    codec,
		hasher:   hasher,
		avatars:  avatars,
		metrics:  m,
		log:      log,
		now:      now,
	}
}

// Register creates the identity and its first session in one transaction.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	avatarHandedOff := false
	defer func() {
		if !avatarHandedOff {
			upload.RemoveTemp(in.AvatarPath)
		}
	}()

	email := normalize(in.Email)
	username := normalize(in.Username)
	phone := strings.TrimSpace(in.Phone)

	if err := s.ensureAvailable(ctx, email, username, phone); err != nil {
		return nil, err
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		if errors.Is(err, password.ErrTooLong) {
			return nil, ErrPasswordTooLong
		}
		return nil, apperror.Internal(fmt.Errorf("hash password: %w", err))
	}

	user := &domain.User{
		FullName:     strings.TrimSpace(in.FullName),
		Email:        email,
		Username:     username,
		Phone:        phone,
		PasswordHash: digest,
		Role:         domain.RoleUser,
	}
	var pair jwt.TokenPair
	err = s.users.CreateWithSession(ctx, user, func(created *domain.User) (*domain.Session, error) {
		var err error
		pair, err = s.codec.IssuePair(subjectOf(created))
		if err != nil {
			return nil, err
		}
		return s.newSession(created.ID, pair.RefreshToken, in.Origin), nil
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrUserConflict):
			return nil, withCause(ErrIdentityTaken, err)
		case errors.Is(err, repository.ErrSessionConflict):
			return nil, withCause(ErrSessionExists, err)
		}
		return nil, apperror.Internal(fmt.Errorf("create user: %w", err))
	}
	s.metrics.SessionsIssued.WithLabelValues("register").Inc()

	if in.AvatarPath != "" && s.avatars != nil {
		avatarHandedOff = true
		if err := s.avatars.Schedule(ctx, user.ID, in.AvatarPath); err != nil {
			s.metrics.AvatarFailures.Inc()
			s.log.Error("avatar upload not scheduled", "user_id", user.ID, "error", err)
		}
	}

	s.log.Info("user registered", "user_id", user.ID, "ip", in.Origin.IP)

	return &AuthResult{
		User:         user.Public(),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, nil
}

// Login verifies credentials, retires every session the user already holds on the same device
// and opens a new one. Unknown identities and wrong passwords fail identically.
func (s *Service) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	user, err := s.users.GetByEmailOrUsername(ctx, in.EmailOrUsername)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.hasher.VerifyDummy(in.Password)
			return nil, ErrInvalidCredentials
		}
		return nil, apperror.Internal(fmt.Errorf("find user: %w", err))
	}

	if !s.hasher.Verify(in.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	retired, err := s.sessions.InvalidateAllForOrigin(ctx, user.ID, in.Origin.IP, in.Origin.UserAgent)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("invalidate sessions for origin: %w", err))
	}
	if retired > 0 {
		s.metrics.SessionsInvalidated.WithLabelValues("same_origin_login").Add(float64(retired))
	}

	pair, err := s.openSession(ctx, user, in.Origin, "login")
	if err != nil {
		return nil, err
	}

	s.log.Info("user logged in", "user_id", user.ID, "ip", in.Origin.IP, "retired_sessions", retired)

	return &AuthResult{
		User:         user.Public(),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, nil
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	refreshToken = strings.TrimSpace(refreshToken)
	claims, err := s.verifyRefresh(refreshToken)
	if err != nil {
		return err
	}

	flipped, err := s.sessions.InvalidateActive(ctx, claims.ID, refreshToken, s.now())
	if err != nil {
		return apperror.Internal(fmt.Errorf("invalidate session: %w", err))
	}
	if !flipped {
		return ErrSessionGone
	}

	s.metrics.SessionsInvalidated.WithLabelValues("logout").Inc()
	s.log.Info("user logged out", "user_id", claims.ID)
	return nil
}

// Refresh rotates a refresh token. The presented session is consumed atomically, so of several
// concurrent calls with the same token exactly one succeeds.
func (s *Service) Refresh(ctx context.Context, refreshToken string, origin Origin) (*RefreshResult, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	claims, err := s.verifyRefresh(refreshToken)
	if err != nil {
		return nil, err
	}

	if _, err := s.sessions.Consume(ctx, claims.ID, refreshToken, s.now()); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			s.metrics.RefreshReuse.Inc()
			s.log.Warn("refresh token reuse or revoked session",
				"user_id", claims.ID,
				"jti", claims.RegisteredClaims.ID,
				"ip", origin.IP,
				"user_agent", origin.UserAgent,
			)
			return nil, ErrSessionRevoked
		}
		return nil, apperror.Internal(fmt.Errorf("consume session: %w", err))
	}
	s.metrics.SessionsInvalidated.WithLabelValues("rotation").Inc()

	user, err := s.users.GetByID(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, apperror.Internal(fmt.Errorf("load user: %w", err))
	}

	pair, err := s.openSession(ctx, user, origin, "refresh")
	if err != nil {
		return nil, err
	}

	return &RefreshResult{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}

func (s *Service) verifyRefresh(token string) (*jwt.Claims, error) {
	if token == "" {
		return nil, ErrRefreshTokenRequired
	}
	claims, err := s.codec.VerifyRefresh(token)
	if err != nil {
		return nil, withCause(ErrInvalidRefreshToken, err)
	}
	if claims.ID == 0 {
		return nil, ErrMalformedRefresh
	}
	return claims, nil
}

func (s *Service) openSession(ctx context.Context, user *domain.User, origin Origin, op string) (jwt.TokenPair, error) {
	pair, err := s.codec.IssuePair(subjectOf(user))
	if err != nil {
		return jwt.TokenPair{}, apperror.Internal(err)
	}

	if err := s.sessions.Create(ctx, s.newSession(user.ID, pair.RefreshToken, origin)); err != nil {
		if errors.Is(err, repository.ErrSessionConflict) {
			return jwt.TokenPair{}, withCause(ErrSessionExists, err)
		}
		return jwt.TokenPair{}, apperror.Internal(fmt.Errorf("create session: %w", err))
	}

	s.metrics.SessionsIssued.WithLabelValues(op).Inc()
	return pair, nil
}

func (s *Service) newSession(userID int64, refreshToken string, origin Origin) *domain.Session {
	return &domain.Session{
		UserID:       userID,
		RefreshToken: refreshToken,
		IP:           origin.IP,
		UserAgent:    origin.UserAgent,
		ExpiresAt:    s.now().Add(s.codec.RefreshTTL()),
	}
}

func subjectOf(u *domain.User) jwt.Subject {
	return jwt.Subject{ID: u.ID, Username: u.Username, Email: u.Email}
}

// ensureAvailable checks uniqueness in a fixed order so the reported field is deterministic.
func (s *Service) ensureAvailable(ctx context.Context, email, username, phone string) error {
	checks := []struct {
		exists func(context.Context, string) (bool, error)
		value  string
		taken  *apperror.Error
	}{
		{s.users.ExistsByEmail, email, ErrEmailTaken},
		{s.users.ExistsByUsername, username, ErrUsernameTaken},
		{s.users.ExistsByPhone, phone, ErrPhoneTaken},
	}
	for _, c := range checks {
		found, err := c.exists(ctx, c.value)
		if err != nil {
			return apperror.Internal(fmt.Errorf("check availability: %w", err))
		}
		if found {
			return c.taken
		}
	}
	return nil
}

func normalize(v string) string {
	return strings.TrimSpace(strings.ToLower(v))
}
