// Package httputil holds the JSON plumbing shared by all HTTP handlers:
// response encoding, error mapping, and request body decoding.
package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	dErrors "fiscalwatch/pkg/domain-errors"
	"fiscalwatch/pkg/platform/sentinel"
)

// maxBodyBytes caps request bodies. Invoice XML documents are small; anything
// beyond this is not a legitimate upload.
const maxBodyBytes = 1 << 20

type errorBody struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// WriteJSON encodes v with the given status. Encoding failures are logged by
// net/http's panic recovery; there is nothing useful to send at that point.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps a domain error to an HTTP status and JSON body. Internal
// failures keep their detail out of the response.
func WriteError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)

	body := errorBody{Error: string(code)}
	if status < http.StatusInternalServerError {
		var de *dErrors.Error
		if errors.As(err, &de) {
			body.Description = de.Message
		}
	}
	WriteJSON(w, status, body)
}

func statusFor(err error) (int, dErrors.Code) {
	switch {
	case dErrors.HasCode(err, dErrors.CodeNotFound) || errors.Is(err, sentinel.ErrNotFound):
		return http.StatusNotFound, dErrors.CodeNotFound
	case dErrors.HasCode(err, dErrors.CodeConflict) || errors.Is(err, sentinel.ErrConflict):
		return http.StatusConflict, dErrors.CodeConflict
	case dErrors.HasCode(err, dErrors.CodeValidation):
		return http.StatusUnprocessableEntity, dErrors.CodeValidation
	case dErrors.HasCode(err, dErrors.CodeInvalidInput):
		return http.StatusBadRequest, dErrors.CodeInvalidInput
	case dErrors.HasCode(err, dErrors.CodeBadRequest):
		return http.StatusBadRequest, dErrors.CodeBadRequest
	case dErrors.HasCode(err, dErrors.CodeInvariantViolation) || errors.Is(err, sentinel.ErrInvalidState):
		return http.StatusConflict, dErrors.CodeInvariantViolation
	default:
		return http.StatusInternalServerError, dErrors.CodeInternal
	}
}

// DecodeJSON reads and decodes a JSON request body into T. Failures are
// written to the response; the second return value tells the handler whether
// to continue.
func DecodeJSON[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (T, bool) {
	var req T
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		logger.WarnContext(r.Context(), "request body rejected", "error", err)
		WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "request body is not valid JSON"))
		return req, false
	}
	return req, true
}

// ReadBody reads a raw request body (invoice XML uploads) with the same size
// cap as JSON decoding.
func ReadBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "failed to read request body"))
		return nil, false
	}
	if len(raw) == 0 {
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "request body is empty"))
		return nil, false
	}
	return raw, true
}
