package models

import "github.com/golang-jwt/jwt/v5"

// RegisterRequest holds the payload for creating a user account.
type RegisterRequest struct {
	Username string  `json:"username" validate:"required,min=3,max=30"`
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=6"`
	Role     string  `json:"role" validate:"required,oneof=superadmin school_admin"`
	School   *string `json:"school" validate:"required_if=Role school_admin"`
}

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse returns the persisted user together with a signed token.
type AuthResponse struct {
	User  UserDetail `json:"user"`
	Token string     `json:"token"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
	jwt.RegisteredClaims
}

// Principal is the live user record resolved from a verified token.
// It is threaded explicitly through every scoped operation.
type Principal struct {
	UserDetail
}

// IsSuperAdmin reports whether the principal holds the unrestricted role.
func (p *Principal) IsSuperAdmin() bool {
	return p != nil && p.Role == RoleSuperAdmin
}

// AllowsSchool is the capability predicate behind every scope check:
// superadmins reach every school, school admins only their bound one.
func (p *Principal) AllowsSchool(schoolID string) bool {
	if p == nil {
		return false
	}
	if p.Role == RoleSuperAdmin {
		return true
	}
	return p.SchoolID != nil && *p.SchoolID == schoolID
}
