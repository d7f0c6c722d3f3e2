package models

import "time"

type Role string

const (
	RoleBuyer        Role = "buyer"
	RoleSeller       Role = "seller"
	RoleAgent        Role = "agent"
	RoleCompanyAdmin Role = "company_admin"
	RoleAdmin        Role = "admin"
)

type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	Phone        string `json:"phone,omitempty"`
	PasswordHash string `json:"-"` // не отдаём наружу
	Role         Role   `json:"role"`

	EmailVerified     bool `json:"emailVerified"`
	PhoneVerified     bool `json:"phoneVerified"`
	NeedsVerification bool `json:"needsVerification"`

	SubscriptionLevel     Tier       `json:"subscriptionLevel"`
	SubscriptionExpiresAt *time.Time `json:"subscriptionExpiresAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=64"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Phone    string `json:"phone"`
	Role     Role   `json:"role"`
}
