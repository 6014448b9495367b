package handlers

import (
	"net/http"

	"github.com/tracklib/tracklib/internal/httpserver/deps"
)

type authResponse struct {
	Protected bool   `json:"protected"`
	Level     string `json:"level"`
}

// Auth tells the caller what their credential is worth, so a client can
// decide which controls to show before attempting a mutation.
func Auth(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lvl := callerLevel(d, r)
		writeJSON(w, http.StatusOK, authResponse{
			Protected: d.Gate.Enabled(),
			Level:     string(lvl),
		})
	}
}
