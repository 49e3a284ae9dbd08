package httpapi_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/admin-portal/pkg/httpapi"
	"github.com/iota-uz/admin-portal/pkg/serrors"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) httpapi.Envelope {
	t.Helper()
	var env httpapi.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestWriteOK(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, httpapi.WriteOK(rec, map[string]int{"total": 3}))
	require.Equal(t, http.StatusOK, rec.Code)
	env := decode(t, rec)
	require.True(t, env.IsSuccess)
	require.Nil(t, env.Error)
}

func TestWriteError(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"not found", serrors.NewError(serrors.RoleNotFound, "role not found", ""), http.StatusNotFound, "RoleNotFound", "role not found"},
		{"wrapped", errors.Wrap(serrors.NewError(serrors.Conflict, "role has users", ""), "delete"), http.StatusConflict, "Conflict", "role has users"},
		{"internal", errors.New("pq: connection refused"), http.StatusInternalServerError, "Internal", "An unexpected error occurred"},
		{"validation", serrors.FieldError("Email", "Email is required"), http.StatusBadRequest, "Validation", "One or more fields are invalid"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			require.NoError(t, httpapi.WriteError(rec, tc.err))
			require.Equal(t, tc.status, rec.Code)
			env := decode(t, rec)
			require.False(t, env.IsSuccess)
			require.Equal(t, tc.code, env.Error.Code)
			require.Equal(t, tc.message, env.Error.Message)
		})
	}
}

func TestDecode_RejectsUnknownFields(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/roles", strings.NewReader(`{"name":"x","bogus":1}`))
	var dto struct {
		Name string `json:"name"`
	}
	err := httpapi.Decode(r, &dto)
	require.Equal(t, serrors.Validation, serrors.CodeOf(err))
}
