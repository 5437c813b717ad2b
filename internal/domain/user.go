package domain

import "time"

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleHost  UserRole = "host"
	RoleAdmin UserRole = "admin"
)

func (r UserRole) Valid() bool {
	switch r {
	case RoleUser, RoleHost, RoleAdmin:
		return true
	}
	return false
}

// User is a registered principal. PasswordHash and AvatarPublicID never leave the server.
type User struct {
	ID             int64     `json:"id" gorm:"primaryKey"`
	FullName       string    `json:"full_name" gorm:"size:50;not null"`
	Email          string    `json:"email" gorm:"size:255;uniqueIndex;not null"`
	Username       string    `json:"username" gorm:"size:30;uniqueIndex;not null"`
	Phone          string    `json:"phone" gorm:"size:20;uniqueIndex;not null"`
	PasswordHash   string    `json:"-" gorm:"not null"`
	AvatarURL      *string   `json:"avatar"`
	AvatarPublicID *string   `json:"-"`
	Role           UserRole  `json:"role" gorm:"size:16;not null;default:user"`
	IsVerified     bool      `json:"is_verified" gorm:"not null;default:false"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Public returns a copy safe to hand to callers outside the auth core.
func (u *User) Public() *User {
	if u == nil {
		return nil
	}
	out := *u
	out.PasswordHash = ""
	out.AvatarPublicID = nil
	return &out
}
