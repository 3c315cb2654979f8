package authapi

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type originRequest struct {
	FrontendOrigin string `json:"frontendOrigin"`
}

type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type meResponse struct {
	ID               int64  `json:"id"`
	Email            string `json:"email"`
	Name             string `json:"name"`
	Role             string `json:"role"`
	Provider         string `json:"provider"`
	ProfileCompleted bool   `json:"profileCompleted"`
}
