package authapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const fallbackMessage = "invalid credentials"

var ErrInvalidResponse = errors.New("invalid response from auth service")

// AuthError is a rejection by the auth service. Message carries the reason
// given by the server or a generic fallback.
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth rejected (%d): %s", e.Status, e.Message)
}

// NetworkError means the auth service could not be reached or answered
// with something unreadable.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// errorMessage extracts a human readable reason from an error body. The auth
// service answers with {"message":..}, {"error":..} or a bare string.
func errorMessage(body []byte) string {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return fallbackMessage
	}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		if m := strings.TrimSpace(eb.Message); m != "" {
			return m
		}
		if m := strings.TrimSpace(eb.Error); m != "" {
			return m
		}
		return fallbackMessage
	}

	if unquoted, err := strconv.Unquote(text); err == nil {
		text = strings.TrimSpace(unquoted)
	}
	if text == "" || strings.HasPrefix(text, "<") {
		return fallbackMessage
	}

	return text
}
