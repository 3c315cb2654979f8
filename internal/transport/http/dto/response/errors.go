package response

const (
	CodeInvalidRequest       = "invalid_request"
	CodeAuthenticationFailed = "authentication_failed"
	CodeUserAlreadyExists    = "user_already_exists"
	CodeInvalidRegister      = "invalid_register_request"
	CodeSessionExpired       = "session_expired"
	CodeUnauthorized         = "unauthorized"
	CodeAuthUnavailable      = "auth_unavailable"
	CodeInternal             = "internal_error"
)

var (
	ErrInvalidRequestFormat = Fail(CodeInvalidRequest, "Invalid request format")
	ErrSessionExpired       = Fail(CodeSessionExpired, "Session expired, please sign in again")
	ErrUnauthorized         = Fail(CodeUnauthorized, "Authentication required")
	ErrAuthUnavailable      = Fail(CodeAuthUnavailable, "Authentication service is unavailable")
	ErrInternal             = Fail(CodeInternal, "Internal server error")
)
