package apperrors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	plain := NotMember("u1", "l1")
	assert.Equal(t, "not_member: user u1 is not a member of lobby l1", plain.Error())

	cause := errors.New("connection refused")
	wrapped := Internal("store unavailable", cause)
	assert.Contains(t, wrapped.Error(), "connection refused")
	assert.ErrorIs(t, wrapped, cause)
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err    *Error
		status int
	}{
		{Malformed("bad"), http.StatusBadRequest},
		{InvalidUser("u1"), http.StatusNotFound},
		{LobbyNotFound("l1"), http.StatusNotFound},
		{AlreadyMember("u1", "l1"), http.StatusConflict},
		{NotMember("u1", "l1"), http.StatusConflict},
		{NotAuthorized("u1", "l1"), http.StatusForbidden},
		{Internal("boom", nil), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.status, tc.err.HTTPStatus(), "code %s", tc.err.Code)
	}
}

func TestAsError(t *testing.T) {
	assert.Nil(t, AsError(nil))

	structured := LobbyNotFound("l1")
	assert.Same(t, structured, AsError(structured))

	wrapped := AsError(errors.New("pq: relation does not exist"))
	require.NotNil(t, wrapped)
	assert.Equal(t, CodeInternal, wrapped.Code)
	assert.Equal(t, "internal server error", wrapped.Message)
}
