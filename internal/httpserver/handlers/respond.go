package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tracklib/tracklib/internal/access"
	"github.com/tracklib/tracklib/internal/httpserver/deps"
	"github.com/tracklib/tracklib/internal/library"
	"github.com/tracklib/tracklib/internal/logger"
)

// HeaderAccessPassword carries the shared-secret credential.
const HeaderAccessPassword = "X-Access-Password"

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the library error taxonomy onto HTTP statuses.
// Anything outside the taxonomy is a storage failure: logged in full,
// reported generically.
func writeError(w http.ResponseWriter, log logger.Logger, err error) {
	switch {
	case errors.Is(err, library.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Unauthorized"})
	case errors.Is(err, library.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Library item not found"})
	case errors.Is(err, library.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		log.Error("storage failure", logger.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
	}
}

// callerLevel classifies the request's credential.
func callerLevel(d deps.Deps, r *http.Request) access.Level {
	return d.Gate.Classify(r.Header.Get(HeaderAccessPassword))
}

// decodeJSON parses the request body into v.
func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
