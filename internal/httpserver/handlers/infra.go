package handlers

import (
	"net/http"

	"github.com/tracklib/tracklib/internal/httpserver/deps"
)

type componentStatus struct {
	OK      bool   `json:"ok"`
	Records *int   `json:"records,omitempty"`
	Tracks  *int   `json:"tracks,omitempty"`
	Images  *int   `json:"images,omitempty"`
	Mode    string `json:"mode,omitempty"`
	Error   string `json:"error,omitempty"`
}

type infraResponse struct {
	Mode       string                     `json:"mode"`
	Components map[string]componentStatus `json:"components"`
}

// Infra reports per-component health: the record document, the blob
// directories, and the access gate configuration.
func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		components := map[string]componentStatus{}

		stats, err := d.Library.Stats()
		if err != nil {
			components["storage"] = componentStatus{OK: false, Error: err.Error()}
		} else {
			components["storage"] = componentStatus{
				OK:      true,
				Records: &stats.Records,
				Tracks:  &stats.TrackBlobs,
				Images:  &stats.ImageBlobs,
			}
		}

		gateMode := "open"
		if d.Gate.Enabled() {
			gateMode = "password-protected"
		}
		components["access"] = componentStatus{OK: true, Mode: gateMode}

		mode := "ok"
		if !components["storage"].OK {
			mode = "critical"
		}

		writeJSON(w, http.StatusOK, infraResponse{
			Mode:       mode,
			Components: components,
		})
	}
}
