package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	err := NewNotFoundError("session")
	assert.Equal(t, "NOT_FOUND: session not found", err.Error())
	assert.Equal(t, http.StatusNotFound, err.HTTPStatus)

	wrapped := WrapError(stderrors.New("boom"), ErrCodeInternal, "relay failed", http.StatusInternalServerError)
	assert.Contains(t, wrapped.Error(), "caused by: boom")
}

func TestAppError_Unwrap(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := WrapError(cause, ErrCodeServiceUnavailable, "redis unavailable", http.StatusServiceUnavailable)
	assert.ErrorIs(t, err, cause)
}

func TestAppError_WithContext(t *testing.T) {
	err := NewInvalidInputError("bad identity tag").
		WithContext("field", "identity").
		WithContext("value", "robot")

	assert.Equal(t, "identity", err.Context["field"])
	assert.Equal(t, "robot", err.Context["value"])
}

func TestGetAppError(t *testing.T) {
	assert.Nil(t, GetAppError(nil))
	assert.Nil(t, GetAppError(stderrors.New("plain")))

	app := NewConflictError("already hosting")
	require.Equal(t, app, GetAppError(app))

	// AppError is found through wrapping layers.
	wrapped := fmt.Errorf("handling event: %w", app)
	require.Equal(t, app, GetAppError(wrapped))
}

func TestIsAppError(t *testing.T) {
	assert.True(t, IsAppError(NewRateLimitError()))
	assert.False(t, IsAppError(stderrors.New("plain")))
}
