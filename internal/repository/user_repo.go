package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"sessionauth/internal/database"
	"sessionauth/internal/domain"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// normalize lower-cases and trims emails and usernames before they reach the unique indexes.
func normalize(v string) string {
	return strings.TrimSpace(strings.ToLower(v))
}

func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	u.Email = normalize(u.Email)
	u.Username = normalize(u.Username)
	if u.Role == "" {
		u.Role = domain.RoleUser
	}
	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return ErrUserConflict
		}
		return err
	}
	return nil
}

// CreateWithSession inserts u and the session built for it in one transaction, so a user never
// exists without the session its registration opened. build runs after u has its ID.
func (r *UserRepository) CreateWithSession(ctx context.Context, u *domain.User, build func(*domain.User) (*domain.Session, error)) error {
	u.Email = normalize(u.Email)
	u.Username = normalize(u.Username)
	if u.Role == "" {
		u.Role = domain.RoleUser
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(u).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return ErrUserConflict
			}
			return err
		}

		s, err := build(u)
		if err != nil {
			return err
		}
		s.UserID = u.ID
		s.IsValid = true
		s.ExpiresAt = s.ExpiresAt.UTC()
		if err := tx.Create(s).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return ErrSessionConflict
			}
			return err
		}
		return nil
	})
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	var u domain.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetByEmailOrUsername resolves a login identifier case-insensitively.
func (r *UserRepository) GetByEmailOrUsername(ctx context.Context, identifier string) (*domain.User, error) {
	identifier = normalize(identifier)
	var u domain.User
	err := r.db.WithContext(ctx).
		Where("email = ? OR username = ?", identifier, identifier).
		First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "email = ?", normalize(email))
}

func (r *UserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, "username = ?", normalize(username))
}

func (r *UserRepository) ExistsByPhone(ctx context.Context, phone string) (bool, error) {
	return r.exists(ctx, "phone = ?", strings.TrimSpace(phone))
}

// UpdateProfile writes the given columns of one user.
func (r *UserRepository) UpdateProfile(ctx context.Context, id int64, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		if database.IsUniqueViolation(res.Error) {
			return ErrUserConflict
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, hash string) error {
	return r.UpdateProfile(ctx, id, map[string]any{"password_hash": hash})
}

// SetAvatar stores the uploaded avatar reference and returns the public id it replaced.
func (r *UserRepository) SetAvatar(ctx context.Context, id int64, url, publicID string) (string, error) {
	var previous string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u domain.User
		if err := tx.Select("id", "avatar_public_id").First(&u, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		if u.AvatarPublicID != nil {
			previous = *u.AvatarPublicID
		}
		return tx.Model(&domain.User{}).Where("id = ?", id).Updates(map[string]any{
			"avatar_url":       url,
			"avatar_public_id": publicID,
		}).Error
	})
	return previous, err
}

func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&domain.User{}, id).Error
}

func (r *UserRepository) exists(ctx context.Context, query string, arg any) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&domain.User{}).Where(query, arg).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}
