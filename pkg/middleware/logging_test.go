package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/admin-portal/pkg/composables"
	"github.com/iota-uz/admin-portal/pkg/httpapi"
)

func newLoggedRouter(logger *logrus.Logger, h http.HandlerFunc) *mux.Router {
	r := mux.NewRouter()
	r.Use(WithLogger(logger, DefaultLoggerOptions()))
	r.PathPrefix("/").HandlerFunc(h)
	return r
}

func TestWithLogger_RequestID(t *testing.T) {
	logger, hook := test.NewNullLogger()
	r := newLoggedRouter(logger, func(w http.ResponseWriter, r *http.Request) {
		assert.Same(t, logger, composables.UseLogger(r.Context()).Logger)
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	})

	t.Run("propagated", func(t *testing.T) {
		hook.Reset()
		req := httptest.NewRequest(http.MethodGet, "/users", nil)
		req.Header.Set("X-Request-ID", "req-42")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, "req-42", rec.Header().Get("X-Request-Id"))
		entry := hook.LastEntry()
		require.NotNil(t, entry)
		assert.Equal(t, "req-42", entry.Data["request-id"])
		assert.Equal(t, http.StatusNoContent, entry.Data["status"])
	})
}

func TestWithLogger_RecoversPanics(t *testing.T) {
	logger, hook := test.NewNullLogger()
	r := newLoggedRouter(logger, func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})

	t.Run("api gets an envelope", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users", nil))

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		var env httpapi.Envelope
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
		assert.Equal(t, "Internal", env.Error.Code)
		assert.Equal(t, "An unexpected error occurred", env.Error.Message)
	})

	t.Run("pages get plain text", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users", nil))

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "Internal Server Error")
	})

	var panics int
	for _, e := range hook.AllEntries() {
		if e.Message == "panic recovered in request handler" {
			panics++
			assert.Equal(t, "boom", e.Data["panic"])
		}
	}
	assert.Equal(t, 2, panics)
}

func TestWithLogger_RedactsBodies(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	r := newLoggedRouter(logger, func(w http.ResponseWriter, r *http.Request) {
		var in map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		_ = httpapi.WriteOK(w, map[string]any{"email": in["email"], "token": "abc"})
	})

	body := `{"email":"ann@example.com","password":"hunter2","nested":{"otpCode":"123456"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/users", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var logged strings.Builder
	for _, e := range hook.AllEntries() {
		for _, key := range []string{"request-body", "response-body"} {
			if v, ok := e.Data[key]; ok {
				raw, err := json.Marshal(v)
				require.NoError(t, err)
				logged.Write(raw)
			}
		}
	}
	out := logged.String()
	assert.Contains(t, out, "ann@example.com")
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "123456")
	assert.NotContains(t, out, `"abc"`)
}

func TestRedactForm(t *testing.T) {
	got := redactForm(map[string][]string{"Email": {"a@b.c"}, "Password": {"x"}, "tags": {"a", "b"}})
	assert.Equal(t, map[string]string{"Email": "a@b.c", "Password": "[redacted]", "tags": "a,b"}, got)
}
