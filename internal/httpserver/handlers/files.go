package handlers

import (
	"errors"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/tracklib/tracklib/internal/httpserver/deps"
	"github.com/tracklib/tracklib/internal/store/blob"
)

// ServeTrack streams a stored track file by blob name.
func ServeTrack(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serveBlob(w, r, d, d.Library.ReadTrack, "application/octet-stream")
	}
}

// ServeImage streams a stored image by blob name.
func ServeImage(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serveBlob(w, r, d, d.Library.ReadImage, "")
	}
}

func serveBlob(w http.ResponseWriter, r *http.Request, d deps.Deps, read func(string) ([]byte, error), fallbackType string) {
	name := chi.URLParam(r, "filename")

	data, err := read(name)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) || errors.Is(err, blob.ErrInvalidName) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "File not found"})
			return
		}
		writeError(w, d.Logger, err)
		return
	}

	ct := mime.TypeByExtension(filepath.Ext(name))
	if ct == "" {
		ct = fallbackType
	}
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(data)
}
