package response

// Envelope statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Response wraps every successful session endpoint answer. Data holds a
// dto.UserResponse or dto.SessionStatus depending on the endpoint.
type Response struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse carries a stable machine code and, for rejections by the auth
// service, the reason it gave.
type ErrorResponse struct {
	Status  string `json:"status"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func Success(data any) Response {
	return Response{Status: StatusSuccess, Data: data}
}

// Message is a success without a payload.
func Message(msg string) Response {
	return Response{Status: StatusSuccess, Message: msg}
}

func Fail(code, details string) ErrorResponse {
	return ErrorResponse{Status: StatusError, Error: code, Details: details}
}

// WithDetails keeps the code of e and replaces its details when a reason is
// known.
func (e ErrorResponse) WithDetails(details string) ErrorResponse {
	if details != "" {
		e.Details = details
	}
	return e
}
