package user

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"sessionauth/internal/database/dbtest"
	"sessionauth/internal/modules/auth"
	"sessionauth/internal/pkg/jwt"
	"sessionauth/internal/pkg/logger"
	"sessionauth/internal/pkg/metrics"
	"sessionauth/internal/pkg/password"
	"sessionauth/internal/repository"
)

type mockAvatars struct {
	mock.Mock
}

func (m *mockAvatars) Schedule(ctx context.Context, userID int64, path string) error {
	return m.Called(ctx, userID, path).Error(0)
}

type testEnv struct {
	svc      *Service
	auth     *auth.Service
	users    *repository.UserRepository
	sessions *repository.SessionRepository
	codec    *jwt.Codec
	metrics  *metrics.Metrics
	avatars  *mockAvatars
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := dbtest.Open(t)

	codec, err := jwt.NewCodec("access-secret-for-tests", 15*time.Minute, "refresh-secret-for-tests", 24*time.Hour, nil)
	require.NoError(t, err)
	hasher, err := password.NewHasher(bcrypt.MinCost)
	require.NoError(t, err)

	env := &testEnv{
		users:    repository.NewUserRepository(db),
		sessions: repository.NewSessionRepository(db),
		codec:    codec,
		metrics:  metrics.New(),
		avatars:  new(mockAvatars),
	}
	env.auth = auth.NewService(env.users, env.sessions, codec, hasher, nil, env.metrics, logger.Discard(), nil)
	env.svc = NewService(env.users, env.sessions, hasher, env.avatars, env.metrics, logger.Discard(), nil)
	return env
}

var (
	laptop = auth.Origin{IP: "10.0.0.1", UserAgent: "Mozilla/5.0 (Laptop)"}
	phone  = auth.Origin{IP: "10.0.0.2", UserAgent: "Mozilla/5.0 (Phone)"}
)

func (e *testEnv) register(t *testing.T, username, phoneNumber string) *auth.AuthResult {
	t.Helper()
	res, err := e.auth.Register(context.Background(), auth.RegisterInput{
		FullName: "Test " + username,
		Username: username,
		Email:    username + "@x.com",
		Phone:    phoneNumber,
		Password: "Secret#123",
		Origin:   laptop,
	})
	require.NoError(t, err)
	return res
}

func ptr(s string) *string { return &s }

func TestGetMe(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice", "+14155550100")

	u, err := env.svc.GetMe(context.Background(), alice.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.Empty(t, u.PasswordHash)

	_, err = env.svc.GetMe(context.Background(), 9999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUpdateProfile_NormalizesAndChecksOthers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice", "+14155550100")
	env.register(t, "bob", "+14155550101")

	_, err := env.svc.UpdateProfile(ctx, alice.User.ID, UpdateProfileInput{Email: ptr("BOB@x.com")})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = env.svc.UpdateProfile(ctx, alice.User.ID, UpdateProfileInput{Username: ptr(" Bob ")})
	assert.ErrorIs(t, err, ErrUsernameTaken)

	_, err = env.svc.UpdateProfile(ctx, alice.User.ID, UpdateProfileInput{Phone: ptr("+14155550101")})
	assert.ErrorIs(t, err, ErrPhoneTaken)

	// Re-submitting the caller's own values is not a conflict.
	_, err = env.svc.UpdateProfile(ctx, alice.User.ID, UpdateProfileInput{Email: ptr("Alice@x.com"), Username: ptr("alice")})
	assert.ErrorIs(t, err, ErrNothingToUpdate)

	u, err := env.svc.UpdateProfile(ctx, alice.User.ID, UpdateProfileInput{
		FullName: ptr("Alice Liddell"),
		Email:    ptr(" Alice.L@X.com "),
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice Liddell", u.FullName)
	assert.Equal(t, "alice.l@x.com", u.Email)
	assert.Empty(t, u.PasswordHash)
}

func TestUpdateProfile_SchedulesAvatar(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice", "+14155550100")
	env.avatars.On("Schedule", mock.Anything, alice.User.ID, "/tmp/staged.png").Return(nil).Once()

	u, err := env.svc.UpdateProfile(context.Background(), alice.User.ID, UpdateProfileInput{AvatarPath: "/tmp/staged.png"})
	require.NoError(t, err)
	assert.Nil(t, u.AvatarURL)
	env.avatars.AssertExpectations(t)
}

func TestChangePassword_RevokesEverySession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice", "+14155550100")
	second, err := env.auth.Login(ctx, auth.LoginInput{EmailOrUsername: "alice", Password: "Secret#123", Origin: phone})
	require.NoError(t, err)

	err = env.svc.ChangePassword(ctx, alice.User.ID, ChangePasswordInput{OldPassword: "wrong", NewPassword: "Another#456"})
	assert.ErrorIs(t, err, ErrWrongPassword)

	err = env.svc.ChangePassword(ctx, alice.User.ID, ChangePasswordInput{OldPassword: "Secret#123", NewPassword: "Secret#123"})
	assert.ErrorIs(t, err, ErrPasswordUnchanged)

	require.NoError(t, env.svc.ChangePassword(ctx, alice.User.ID, ChangePasswordInput{
		OldPassword: "Secret#123",
		NewPassword: "Another#456",
	}))
	assert.Equal(t, float64(2), metrics.CounterValue(env.metrics.SessionsInvalidated.WithLabelValues("password_change")))

	for _, token := range []string{alice.RefreshToken, second.RefreshToken} {
		_, err := env.auth.Refresh(ctx, token, laptop)
		assert.ErrorIs(t, err, auth.ErrSessionRevoked)
	}

	_, err = env.auth.Login(ctx, auth.LoginInput{EmailOrUsername: "alice", Password: "Secret#123", Origin: laptop})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	_, err = env.auth.Login(ctx, auth.LoginInput{EmailOrUsername: "alice", Password: "Another#456", Origin: laptop})
	assert.NoError(t, err)
}

func TestListSessions_MarksCurrent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice", "+14155550100")
	second, err := env.auth.Login(ctx, auth.LoginInput{EmailOrUsername: "alice@x.com", Password: "Secret#123", Origin: phone})
	require.NoError(t, err)

	sessions, err := env.svc.ListSessions(ctx, alice.User.ID, second.RefreshToken)
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	current := 0
	for _, s := range sessions {
		if s.Current {
			current++
			assert.Equal(t, phone.UserAgent, s.UserAgent)
		}
	}
	assert.Equal(t, 1, current)

	require.NoError(t, env.auth.Logout(ctx, second.RefreshToken))
	sessions, err = env.svc.ListSessions(ctx, alice.User.ID, second.RefreshToken)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.False(t, sessions[0].Current)
	assert.Equal(t, laptop.IP, sessions[0].IP)
}

func TestRevokeSession_OnlyOwnSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice", "+14155550100")
	bob := env.register(t, "bob", "+14155550101")

	sessions, err := env.svc.ListSessions(ctx, alice.User.ID, "")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	id := sessions[0].ID

	assert.ErrorIs(t, env.svc.RevokeSession(ctx, bob.User.ID, id), ErrSessionNotFound)
	require.NoError(t, env.svc.RevokeSession(ctx, alice.User.ID, id))
	assert.ErrorIs(t, env.svc.RevokeSession(ctx, alice.User.ID, id), ErrSessionNotFound)

	_, err = env.auth.Refresh(ctx, alice.RefreshToken, laptop)
	assert.ErrorIs(t, err, auth.ErrSessionRevoked)
	assert.Equal(t, float64(1), metrics.CounterValue(env.metrics.SessionsInvalidated.WithLabelValues("user_revoke")))
}

func TestRevokeSession_ExpiredSessionIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice", "+14155550100")

	sessions, err := env.svc.ListSessions(ctx, alice.User.ID, "")
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	hasher, err := password.NewHasher(bcrypt.MinCost)
	require.NoError(t, err)
	later := func() time.Time { return time.Now().Add(48 * time.Hour) }
	svc := NewService(env.users, env.sessions, hasher, env.avatars, env.metrics, logger.Discard(), later)

	assert.ErrorIs(t, svc.RevokeSession(ctx, alice.User.ID, sessions[0].ID), ErrSessionNotFound)
	assert.Equal(t, float64(0), metrics.CounterValue(env.metrics.SessionsInvalidated.WithLabelValues("user_revoke")))
}
