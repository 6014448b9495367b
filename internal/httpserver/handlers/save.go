package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/tracklib/tracklib/internal/asset"
	"github.com/tracklib/tracklib/internal/httpserver/deps"
	"github.com/tracklib/tracklib/internal/library"
	"github.com/tracklib/tracklib/internal/logger"
	"github.com/tracklib/tracklib/internal/utils"
)

type saveResponse struct {
	Success bool           `json:"success"`
	Mode    string         `json:"mode"`
	Item    library.Record `json:"item"`
}

// Save persists editor content either as a brand-new track or over an
// existing one. Form fields: "file" or "content" (the track bytes),
// "filename", and for overwrite mode "itemId" plus "mode"="overwrite".
func Save(d deps.Deps) http.HandlerFunc {
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

		content, filename, err := saveContent(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}

		mode := strings.TrimSpace(r.FormValue("mode"))
		itemID := strings.TrimSpace(r.FormValue("itemId"))

		rec, created, err := d.Library.Save(callerLevel(d, r), content, filename, itemID, mode)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}

		respMode := asset.SaveModeOverwrite
		if created {
			respMode = "new"
		}
		d.Logger.Info("track saved",
			logger.String("id", rec.ID),
			logger.String("mode", respMode))
		writeJSON(w, http.StatusOK, saveResponse{Success: true, Mode: respMode, Item: rec})
	}
}

// saveContent pulls the track bytes out of the form, accepting either
// an uploaded "file" part or an inline "content" value.
func saveContent(r *http.Request) ([]byte, string, error) {
	if file, header, err := r.FormFile("file"); err == nil {
		defer utils.Close(file)
		data, err := io.ReadAll(file)
		if err != nil {
			return nil, "", err
		}
		filename := strings.TrimSpace(r.FormValue("filename"))
		if filename == "" {
			filename = header.Filename
		}
		return data, filename, nil
	}

	content := r.FormValue("content")
	if content == "" {
		return nil, "", errNoContent
	}
	filename := strings.TrimSpace(r.FormValue("filename"))
	if filename == "" {
		return nil, "", errNoFilename
	}
	return []byte(content), filename, nil
}

var (
	errNoContent  = errors.New("No content provided")
	errNoFilename = errors.New("No filename provided")
)
