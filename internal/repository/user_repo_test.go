package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sessionauth/internal/database/dbtest"
	"sessionauth/internal/domain"
)

func TestUserRepository_CreateNormalizesAndConflicts(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	u := &domain.User{FullName: "Alice", Email: "  Alice@X.com ", Username: "alice", Phone: "+15550001", PasswordHash: "h"}
	require.NoError(t, repo.Create(ctx, u))
	assert.NotZero(t, u.ID)
	assert.Equal(t, "alice@x.com", u.Email)
	assert.Equal(t, domain.RoleUser, u.Role)

	dup := &domain.User{FullName: "Alice", Email: "other@x.com", Username: "alice", Phone: "+15550002", PasswordHash: "h"}
	assert.ErrorIs(t, repo.Create(ctx, dup), ErrUserConflict)
}

func TestUserRepository_Lookups(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	u := seedUser(t, repo, "bob")

	byEmail, err := repo.GetByEmailOrUsername(ctx, "BOB@x.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	byName, err := repo.GetByEmailOrUsername(ctx, "Bob")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byName.ID)

	_, err = repo.GetByEmailOrUsername(ctx, "nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = repo.GetByID(ctx, u.ID+100)
	assert.ErrorIs(t, err, ErrUserNotFound)

	ok, err := repo.ExistsByEmail(ctx, "Bob@X.com")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.ExistsByUsername(ctx, "bobby")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = repo.ExistsByPhone(ctx, "+1555bob")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUserRepository_UpdatesAndAvatar(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	u := seedUser(t, repo, "carol")
	seedUser(t, repo, "dave")

	require.NoError(t, repo.UpdateProfile(ctx, u.ID, map[string]any{"full_name": "Carol C"}))
	assert.ErrorIs(t, repo.UpdateProfile(ctx, u.ID, map[string]any{"username": "dave"}), ErrUserConflict)
	assert.ErrorIs(t, repo.UpdateProfile(ctx, u.ID+100, map[string]any{"full_name": "x"}), ErrUserNotFound)
	require.NoError(t, repo.UpdatePassword(ctx, u.ID, "new-hash"))

	prev, err := repo.SetAvatar(ctx, u.ID, "/static/uploads/a.png", "a.png")
	require.NoError(t, err)
	assert.Empty(t, prev)
	prev, err = repo.SetAvatar(ctx, u.ID, "/static/uploads/b.png", "b.png")
	require.NoError(t, err)
	assert.Equal(t, "a.png", prev)

	got, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Carol C", got.FullName)
	assert.Equal(t, "new-hash", got.PasswordHash)
	require.NotNil(t, got.AvatarURL)
	assert.Equal(t, "/static/uploads/b.png", *got.AvatarURL)

	require.NoError(t, repo.Delete(ctx, u.ID))
	_, err = repo.GetByID(ctx, u.ID)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRepository_CreateWithSession(t *testing.T) {
	db := dbtest.Open(t)
	users := NewUserRepository(db)
	sessions := NewSessionRepository(db)
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)

	u := &domain.User{FullName: "Frank", Email: "Frank@x.com", Username: "frank", Phone: "+15550010", PasswordHash: "h"}
	err := users.CreateWithSession(ctx, u, func(created *domain.User) (*domain.Session, error) {
		assert.NotZero(t, created.ID)
		return &domain.Session{RefreshToken: "frank-token", IP: "10.0.0.1", UserAgent: "ua", ExpiresAt: expires}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "frank@x.com", u.Email)

	s, err := sessions.FindActive(ctx, u.ID, "frank-token", time.Now())
	require.NoError(t, err)
	assert.Equal(t, u.ID, s.UserID)

	t.Run("build failure rolls back the user", func(t *testing.T) {
		g := &domain.User{FullName: "Gina", Email: "gina@x.com", Username: "gina", Phone: "+15550011", PasswordHash: "h"}
		boom := errors.New("sign failed")
		err := users.CreateWithSession(ctx, g, func(*domain.User) (*domain.Session, error) { return nil, boom })
		assert.ErrorIs(t, err, boom)

		exists, err := users.ExistsByEmail(ctx, "gina@x.com")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("session conflict rolls back the user", func(t *testing.T) {
		h := &domain.User{FullName: "Hank", Email: "hank@x.com", Username: "hank", Phone: "+15550012", PasswordHash: "h"}
		err := users.CreateWithSession(ctx, h, func(*domain.User) (*domain.Session, error) {
			return &domain.Session{RefreshToken: "frank-token", ExpiresAt: expires}, nil
		})
		assert.ErrorIs(t, err, ErrSessionConflict)

		exists, err := users.ExistsByUsername(ctx, "hank")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("user conflict", func(t *testing.T) {
		dup := &domain.User{FullName: "Frank", Email: "frank@x.com", Username: "frank2", Phone: "+15550013", PasswordHash: "h"}
		err := users.CreateWithSession(ctx, dup, func(*domain.User) (*domain.Session, error) {
			t.Fatal("build must not run when the user insert fails")
			return nil, nil
		})
		assert.ErrorIs(t, err, ErrUserConflict)
	})
}
