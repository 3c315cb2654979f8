package dto

import (
	"gymweb/internal/domain/models"
)

// UserRegisterInput holds the registration form. AutoLogin chains a login
// after the account is created.
type UserRegisterInput struct {
	Name      string `json:"name" validate:"required,min=2,max=100"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6,max=64"`
	AutoLogin bool   `json:"autoLogin"`
}

func (input UserRegisterInput) ToDomain() models.RegisterInput {
	return models.RegisterInput{
		Name:     input.Name,
		Email:    input.Email,
		Password: input.Password,
	}
}

type UserResponse struct {
	ID               int64  `json:"id"`
	Email            string `json:"email"`
	Name             string `json:"name"`
	Role             string `json:"role"`
	Provider         string `json:"provider,omitempty"`
	ProfileCompleted bool   `json:"profileCompleted"`
}

func NewUserResponse(u models.User) UserResponse {
	return UserResponse{
		ID:               u.ID,
		Email:            u.Email,
		Name:             u.Name,
		Role:             string(u.Role),
		Provider:         u.Provider,
		ProfileCompleted: u.ProfileCompleted,
	}
}
