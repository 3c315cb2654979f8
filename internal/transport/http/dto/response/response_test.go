package response

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage_OmitsData(t *testing.T) {
	raw, err := json.Marshal(Message("logged out"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"success","message":"logged out"}`, string(raw))
}

func TestWithDetails(t *testing.T) {
	e := ErrInvalidRequestFormat.WithDetails("email is required")
	assert.Equal(t, CodeInvalidRequest, e.Error)
	assert.Equal(t, StatusError, e.Status)
	assert.Equal(t, "email is required", e.Details)

	assert.Equal(t, "Invalid request format", ErrInvalidRequestFormat.Details)
	assert.Equal(t, ErrInvalidRequestFormat, ErrInvalidRequestFormat.WithDetails(""))
}
