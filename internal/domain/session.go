package domain

import "time"

// Session is one refresh-token grant issued to a user from a given origin.
//
// Invariants:
//   - RefreshToken is unique across all rows.
//   - IsValid only ever goes from true to false.
//   - A row with ExpiresAt <= now is treated as dead even while IsValid is still true.
type Session struct {
	ID int64 `json:"id" gorm:"primaryKey"`

	UserID int64 `json:"user_id" gorm:"index;index:idx_sessions_origin,priority:1;not null"`

	RefreshToken string `json:"-" gorm:"uniqueIndex;not null"`
	IP           string `json:"ip" gorm:"size:64;not null;index:idx_sessions_origin,priority:2"`
	UserAgent    string `json:"user_agent" gorm:"size:512;not null;index:idx_sessions_origin,priority:3"`

	IsValid   bool      `json:"is_valid" gorm:"not null;default:true"`
	ExpiresAt time.Time `json:"expires_at" gorm:"index;not null"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Session) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// IsActive reports whether the session can still be redeemed at now.
func (s *Session) IsActive(now time.Time) bool {
	return s.IsValid && !s.IsExpired(now)
}
