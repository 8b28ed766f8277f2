package server

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"

	"github.com/thoreinstein/savekeep/internal/errors"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Error codes that do not come from the backend taxonomy.
const (
	codeBadRequest       = "BadRequest"
	codeNoRoute          = "NoRoute"
	codeForbidden        = "Forbidden"
	codeUnsupportedMedia = "UnsupportedMediaType"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusFor maps an error kind to an HTTP status.
func statusFor(kind errors.Kind) int {
	switch kind {
	case errors.KindNotFound, errors.KindSnapshotNotFound:
		return http.StatusNotFound
	case errors.KindDuplicateName, errors.KindDuplicateSnapshotID:
		return http.StatusConflict
	case errors.KindInvalidPath, errors.KindInvalidName:
		return http.StatusBadRequest
	case errors.KindProtectedSnapshot:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

// fail reports a backend error with its kind.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := errors.KindOf(err)
	status := statusFor(kind)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeError(w, status, string(kind), err.Error())
}

// decode reads a JSON body into v. The body must be declared as
// application/json and unknown fields are rejected.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err != nil || mt != "application/json" {
		writeError(w, http.StatusUnsupportedMediaType, codeUnsupportedMedia, "Content-Type must be application/json")
		return false
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		msg := "invalid JSON body: " + err.Error()
		if errors.Is(err, io.EOF) {
			msg = "request body is required"
		}
		writeError(w, http.StatusBadRequest, codeBadRequest, msg)
		return false
	}
	return true
}
