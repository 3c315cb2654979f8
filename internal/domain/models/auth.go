package models

import "time"

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Claims is the decoded payload of an access token.
type Claims struct {
	UserID           int64
	Email            string
	Name             string
	Role             Role
	ProfileCompleted bool
	IssuedAt         time.Time
	ExpiresAt        time.Time
}

// ExpiredAt reports whether the claims are no longer valid at now.
func (c Claims) ExpiredAt(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// User projects the identity carried by the claims.
func (c Claims) User() User {
	return User{
		ID:               c.UserID,
		Email:            c.Email,
		Name:             c.Name,
		Role:             c.Role,
		ProfileCompleted: c.ProfileCompleted,
	}
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RegisterInput struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=64"`
}
