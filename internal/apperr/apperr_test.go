package apperr

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{Validation("bad input"), http.StatusBadRequest},
		{Unauthorized("no token"), http.StatusUnauthorized},
		{Forbidden("not allowed"), http.StatusForbidden},
		{NotFound("missing"), http.StatusNotFound},
		{Internal("boom", errors.New("db down")), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		require.Equal(t, tc.status, Status(tc.err), "for %v", tc.err)
	}
}

func TestMessageHidesInternalDetails(t *testing.T) {
	err := Internal("failed to save message", errors.New("pq: connection refused"))
	require.Equal(t, "internal server error", Message(err))
	require.NotContains(t, Message(err), "connection refused")
}

func TestMessagePassesClientSafeText(t *testing.T) {
	require.Equal(t, "not a project member", Message(Forbidden("not a project member")))
	require.Equal(t, "internal server error", Message(errors.New("raw")))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("db down")
	err := Internal("failed", cause)
	require.ErrorIs(t, err, cause)
}

func TestKindOf(t *testing.T) {
	require.Equal(t, KindValidation, KindOf(Validation("x")))
	require.Equal(t, KindInternal, KindOf(errors.New("plain")))
}
