package dto

type SessionStatus struct {
	Authenticated bool  `json:"authenticated"`
	ExpiresIn     int64 `json:"expiresIn"`
}

// ViewResponse is what a page route renders: the view name and, for signed
// in users, who is looking at it.
type ViewResponse struct {
	View string        `json:"view"`
	User *UserResponse `json:"user,omitempty"`
}
