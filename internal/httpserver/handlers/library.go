package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/tracklib/tracklib/internal/httpserver/deps"
	"github.com/tracklib/tracklib/internal/library"
	"github.com/tracklib/tracklib/internal/logger"
	"github.com/tracklib/tracklib/internal/utils"
)

// ListLibrary returns every record in the library. The list is public:
// reading the catalogue never requires a credential.
func ListLibrary(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records := d.Library.List()
		if records == nil {
			records = []library.Record{}
		}
		writeJSON(w, http.StatusOK, records)
	}
}

// UploadTrack ingests a multipart track file and creates its record.
// Form fields: "file" (the track) and optional "tags" (JSON array).
func UploadTrack(d deps.Deps) http.HandlerFunc {
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

		file, header, err := r.FormFile("file")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "No file provided"})
			return
		}
		defer utils.Close(file)

		data, err := io.ReadAll(file)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}

		tags := parseTags(r.FormValue("tags"))

		rec, err := d.Library.Upload(callerLevel(d, r), header.Filename, tags, data)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}

		d.Logger.Info("track uploaded",
			logger.String("id", rec.ID),
			logger.String("filename", rec.Filename))
		writeJSON(w, http.StatusOK, rec)
	}
}

type updateRequest struct {
	ID string `json:"id"`
	library.Update
}

// UpdateRecord applies a partial metadata update to one record.
func UpdateRecord(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid JSON body"})
			return
		}
		if strings.TrimSpace(req.ID) == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Missing id"})
			return
		}

		rec, err := d.Library.Update(callerLevel(d, r), req.ID, req.Update)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

type deleteRequest struct {
	ID string `json:"id"`
}

type successResponse struct {
	Success bool `json:"success"`
}

// DeleteRecord removes a record and its blobs.
func DeleteRecord(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req deleteRequest
		if err := decodeJSON(r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid JSON body"})
			return
		}
		if strings.TrimSpace(req.ID) == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Missing id"})
			return
		}

		rec, err := d.Library.Delete(callerLevel(d, r), req.ID)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}

		d.Logger.Info("track deleted",
			logger.String("id", rec.ID),
			logger.String("filename", rec.Filename))
		writeJSON(w, http.StatusOK, successResponse{Success: true})
	}
}

// parseTags decodes the "tags" form value. The value is a JSON array
// of strings; anything unparseable degrades to no tags rather than
// failing the upload.
func parseTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil || tags == nil {
		return []string{}
	}
	return tags
}

// errTooLarge reports whether the request body blew the upload ceiling.
func errTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}
