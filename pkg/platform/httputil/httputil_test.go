package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "fiscalwatch/pkg/domain-errors"
	"fiscalwatch/pkg/platform/sentinel"
)

func decodeErrorBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestWriteErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", dErrors.New(dErrors.CodeNotFound, "company not found"), http.StatusNotFound, "not_found"},
		{"sentinel not found", sentinel.ErrNotFound, http.StatusNotFound, "not_found"},
		{"conflict", dErrors.New(dErrors.CodeConflict, "duplicate cnpj"), http.StatusConflict, "conflict"},
		{"validation", dErrors.New(dErrors.CodeValidation, "issuer mismatch"), http.StatusUnprocessableEntity, "validation"},
		{"invalid input", dErrors.New(dErrors.CodeInvalidInput, "limit must be a number"), http.StatusBadRequest, "invalid_input"},
		{"invariant violation", dErrors.New(dErrors.CodeInvariantViolation, "job after start"), http.StatusConflict, "invariant_violation"},
		{"unknown error", errors.New("disk on fire"), http.StatusInternalServerError, "internal"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, tc.err)

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Equal(t, tc.code, decodeErrorBody(t, rec)["error"])
		})
	}
}

func TestWriteErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, dErrors.New(dErrors.CodeInternal, "pq: connection refused"))

	body := decodeErrorBody(t, rec)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, body, "error_description")
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestWriteErrorExposesClientDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, dErrors.New(dErrors.CodeValidation, "issuer does not match company"))

	body := decodeErrorBody(t, rec)
	assert.Equal(t, "issuer does not match company", body["error_description"])
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("valid body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"acme"}`))
		rec := httptest.NewRecorder()

		req, ok := DecodeJSON[payload](rec, r, logger)
		require.True(t, ok)
		assert.Equal(t, "acme", req.Name)
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"acme","extra":1}`))
		rec := httptest.NewRecorder()

		_, ok := DecodeJSON[payload](rec, r, logger)
		require.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed body rejected", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
		rec := httptest.NewRecorder()

		_, ok := DecodeJSON[payload](rec, r, logger)
		require.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestReadBody(t *testing.T) {
	t.Run("raw bytes pass through", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("<nfdok/>"))
		rec := httptest.NewRecorder()

		raw, ok := ReadBody(rec, r)
		require.True(t, ok)
		assert.Equal(t, []byte("<nfdok/>"), raw)
	})

	t.Run("empty body rejected", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
		rec := httptest.NewRecorder()

		_, ok := ReadBody(rec, r)
		require.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
