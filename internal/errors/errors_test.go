package errors_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "small-library/internal/errors"
)

func TestError_Extensions(t *testing.T) {
	err := apperrors.BadUserInput("Book validation failed: title must be at least 5 characters").
		WithDetails(map[string]any{"invalidArgs": "abc"})

	ext := err.Extensions()
	assert.Equal(t, "BAD_USER_INPUT", ext["code"])
	assert.Equal(t, "abc", ext["invalidArgs"])
}

func TestError_ExtensionsCodeWins(t *testing.T) {
	err := apperrors.BadUserInput("x").WithDetails(map[string]any{"code": "SPOOFED"})
	assert.Equal(t, "BAD_USER_INPUT", err.Extensions()["code"])
}

func TestError_IsMatchesSentinel(t *testing.T) {
	wrapped := fmt.Errorf("resolve: %w", apperrors.ErrNotAuthenticated)
	assert.True(t, apperrors.Is(wrapped, apperrors.ErrNotAuthenticated))
	assert.False(t, apperrors.Is(wrapped, apperrors.ErrInternal))

	expired := apperrors.ErrTokenExpired.WithCause(stderrors.New("exp in the past"))
	assert.True(t, apperrors.Is(expired, apperrors.ErrTokenExpired))
	assert.False(t, apperrors.Is(expired, apperrors.ErrInvalidToken))
	assert.False(t, apperrors.Is(apperrors.ErrInvalidToken, apperrors.ErrTokenExpired))
	assert.False(t, apperrors.Is(apperrors.ErrNotAuthenticated, apperrors.ErrInvalidToken))

	detailed := apperrors.ErrInvalidCredentials.WithDetails(map[string]any{"invalidArgs": "alice"})
	assert.True(t, apperrors.Is(detailed, apperrors.ErrInvalidCredentials))
}

func TestInternal_HidesCause(t *testing.T) {
	cause := stderrors.New("dial tcp: connection refused")
	err := apperrors.Internal(cause)

	assert.Equal(t, "internal error", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apperrors.Code
	}{
		{"coded", apperrors.ErrTokenExpired, apperrors.CodeUnauthenticated},
		{"wrapped", fmt.Errorf("x: %w", apperrors.BadUserInput("bad")), apperrors.CodeBadUserInput},
		{"plain", stderrors.New("boom"), apperrors.CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, apperrors.CodeOf(tt.err))
		})
	}
}

func TestCode_HTTPStatus(t *testing.T) {
	require.Equal(t, http.StatusUnauthorized, apperrors.ErrInvalidToken.HTTPStatus())
	require.Equal(t, http.StatusTooManyRequests, apperrors.ErrRateLimited.HTTPStatus())
	require.Equal(t, http.StatusBadRequest, apperrors.BadRequest("x").HTTPStatus())
	require.Equal(t, http.StatusInternalServerError, apperrors.ErrInternal.HTTPStatus())
	require.Equal(t, http.StatusNotFound, apperrors.NotFoundf("no route for %s", "/x").HTTPStatus())
}
