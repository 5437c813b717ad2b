package user

import "time"

// UpdateProfileRequest fields are all optional; nil means unchanged.
type UpdateProfileRequest struct {
	FullName *string `json:"full_name" form:"full_name" validate:"omitempty,max=50"`
	Username *string `json:"username" form:"username" validate:"omitempty,min=3,max=30,username"`
	Email    *string `json:"email" form:"email" validate:"omitempty,email"`
	Phone    *string `json:"phone" form:"phone" validate:"omitempty,phone"`
}

type ChangePasswordRequest struct {
	OldPassword     string `json:"old_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,password"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=NewPassword"`
}

// SessionView is one signed-in device as shown to its owner.
type SessionView struct {
	ID        int64     `json:"id"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Current   bool      `json:"current"`
}
