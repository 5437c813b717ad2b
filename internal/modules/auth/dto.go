package auth

type RegisterRequest struct {
	FullName string `json:"full_name" form:"full_name" validate:"required,max=50"`
	Username string `json:"username" form:"username" validate:"required,min=3,max=30,username"`
	Email    string `json:"email" form:"email" validate:"required,email"`
	Phone    string `json:"phone" form:"phone" validate:"required,phone"`
	Password string `json:"password" form:"password" validate:"required,password"`
}

type LoginRequest struct {
	EmailOrUsername string `json:"email_or_username" validate:"required"`
	Password        string `json:"password" validate:"required"`
}

// RefreshRequest is the body fallback for clients that do not keep cookies.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}
