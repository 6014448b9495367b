package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/tracklib/tracklib/internal/httpserver/deps"
	"github.com/tracklib/tracklib/internal/library"
	"github.com/tracklib/tracklib/internal/logger"
	"github.com/tracklib/tracklib/internal/utils"
)

type imageResponse struct {
	Success bool           `json:"success"`
	Image   string         `json:"image,omitempty"`
	Item    library.Record `json:"item"`
}

// AttachImage accepts a multipart image and attaches it to a record.
// Form fields: "image" (the picture) and "itemId".
func AttachImage(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, d.MaxUploadBytes)
		if err := r.ParseMultipartForm(d.MaxUploadBytes); err != nil {
			if errTooLarge(err) {
				writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "Upload too large"})
				return
			}
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid multipart form"})
			return
		}

		itemID := strings.TrimSpace(r.FormValue("itemId"))
		if itemID == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Missing itemId"})
			return
		}

		file, header, err := r.FormFile("image")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "No image provided"})
			return
		}
		defer utils.Close(file)

		data, err := io.ReadAll(file)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}

		declaredType := header.Header.Get("Content-Type")
		rec, err := d.Library.AttachImage(callerLevel(d, r), itemID, header.Filename, declaredType, data)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}

		d.Logger.Info("image attached",
			logger.String("id", rec.ID),
			logger.String("image", rec.Image))
		writeJSON(w, http.StatusOK, imageResponse{Success: true, Image: rec.Image, Item: rec})
	}
}

type detachImageRequest struct {
	ItemID string `json:"itemId"`
}

// DetachImage removes a record's image. Detaching an item that has no
// image is not an error.
func DetachImage(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req detachImageRequest
		if err := decodeJSON(r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid JSON body"})
			return
		}
		if strings.TrimSpace(req.ItemID) == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Missing itemId"})
			return
		}

		rec, err := d.Library.DetachImage(callerLevel(d, r), req.ItemID)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, imageResponse{Success: true, Item: rec})
	}
}
