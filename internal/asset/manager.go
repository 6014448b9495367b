// Package asset implements the asset manager: it sequences blob
// writes with metadata commits so partial failure never leaves an
// orphaned blob or a dangling reference.
package asset

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tracklib/tracklib/internal/access"
	"github.com/tracklib/tracklib/internal/library"
	"github.com/tracklib/tracklib/internal/logger"
	"github.com/tracklib/tracklib/internal/metrics"
	"github.com/tracklib/tracklib/internal/store/blob"
	"github.com/tracklib/tracklib/internal/store/document"
)

const (
	// MaxImageBytes is the attachment size ceiling.
	MaxImageBytes = 5 << 20

	// SaveModeOverwrite re-targets an existing record's blob in place.
	SaveModeOverwrite = "overwrite"
)

// allowedImageTypes is the attachment MIME allow-list.
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// Manager orchestrates the document store and the two blob
// directories. Every mutating method takes the caller's access level
// and rejects before any side effect unless it grants write.
type Manager struct {
	docs   *document.Store
	tracks *blob.Dir
	images *blob.Dir
	log    logger.Logger
	mx     *metrics.Metrics

	now   func() time.Time
	newID func() string
}

func NewManager(docs *document.Store, tracks, images *blob.Dir, log logger.Logger, mx *metrics.Metrics) *Manager {
	return &Manager{
		docs:   docs,
		tracks: tracks,
		images: images,
		log:    log,
		mx:     mx,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

func (s *Manager) count(op string, err error) {
	if s.mx == nil {
		return
	}
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, library.ErrUnauthorized):
		outcome = "unauthorized"
	case errors.Is(err, library.ErrNotFound):
		outcome = "not_found"
	case errors.Is(err, library.ErrInvalidInput):
		outcome = "invalid_input"
	default:
		outcome = "storage_error"
	}
	s.mx.OpsTotal.WithLabelValues(op, outcome).Inc()
	s.mx.Records.Set(float64(s.docs.Count()))
}

// List returns all records. Read corruption has already been degraded
// to an empty collection by the document store.
func (s *Manager) List() []library.Record {
	return s.docs.List()
}

// Upload stores the track payload and inserts a new record referencing
// it. If the metadata commit fails the staged blob is rolled back.
func (s *Manager) Upload(lvl access.Level, name string, tags []string, data []byte) (rec library.Record, err error) {
	defer func() { s.count("upload", err) }()

	if !lvl.CanWrite() {
		return library.Record{}, library.ErrUnauthorized
	}
	return s.upload(name, tags, data)
}

// upload is the store-and-insert core shared with Save's create path.
// Callers have already checked the gate; keeping the counter out of
// here means a save counts as one operation, not a save plus an upload.
func (s *Manager) upload(name string, tags []string, data []byte) (library.Record, error) {
	if name == "" || len(data) == 0 {
		return library.Record{}, fmt.Errorf("%w: no file provided", library.ErrInvalidInput)
	}
	if tags == nil {
		tags = []string{}
	}

	filename, err := s.tracks.Store(data, name)
	if err != nil {
		return library.Record{}, err
	}

	rec := library.Record{
		ID:       s.newID(),
		Name:     name,
		Filename: filename,
		Tags:     tags,
		Date:     s.now().Format(time.RFC3339),
	}

	if err := s.docs.Insert(rec); err != nil {
		// The blob is staged but unreferenced: roll it back.
		if delErr := s.tracks.Delete(filename); delErr != nil {
			s.log.Warn("rollback of staged track blob failed",
				logger.String("filename", filename), logger.Error(delErr))
		}
		return library.Record{}, err
	}

	s.log.Info("track uploaded",
		logger.String("id", rec.ID), logger.String("filename", filename))
	return rec, nil
}

// Update applies a partial field update to a record.
func (s *Manager) Update(lvl access.Level, id string, u library.Update) (rec library.Record, err error) {
	defer func() { s.count("update", err) }()

	if !lvl.CanWrite() {
		return library.Record{}, library.ErrUnauthorized
	}
	if id == "" {
		return library.Record{}, fmt.Errorf("%w: missing id", library.ErrInvalidInput)
	}
	return s.docs.UpdateFields(id, u)
}

// Delete removes the record and its blobs. The metadata removal is the
// commit point; the blobs are deleted afterwards (idempotently), so no
// record ever survives pointing at a missing blob.
func (s *Manager) Delete(lvl access.Level, id string) (rec library.Record, err error) {
	defer func() { s.count("delete", err) }()

	if !lvl.CanWrite() {
		return library.Record{}, library.ErrUnauthorized
	}
	if id == "" {
		return library.Record{}, fmt.Errorf("%w: missing id", library.ErrInvalidInput)
	}

	removed, err := s.docs.Remove(id)
	if err != nil {
		return library.Record{}, err
	}

	if err := s.tracks.Delete(removed.Filename); err != nil {
		s.log.Warn("deleting track blob failed",
			logger.String("filename", removed.Filename), logger.Error(err))
	}
	if removed.Image != "" {
		if err := s.images.Delete(removed.Image); err != nil {
			s.log.Warn("deleting image blob failed",
				logger.String("image", removed.Image), logger.Error(err))
		}
	}

	s.log.Info("record deleted", logger.String("id", id))
	return removed, nil
}

// AttachImage validates, stores and attaches a card image to a record,
// replacing (and deleting) any previous image blob.
func (s *Manager) AttachImage(lvl access.Level, id, filename, declaredType string, data []byte) (rec library.Record, err error) {
	defer func() { s.count("attach_image", err) }()

	if !lvl.CanWrite() {
		return library.Record{}, library.ErrUnauthorized
	}
	if id == "" || len(data) == 0 {
		return library.Record{}, fmt.Errorf("%w: missing image or itemId", library.ErrInvalidInput)
	}
	if err := validateImage(declaredType, data); err != nil {
		return library.Record{}, err
	}

	imageName, err := s.storeImage(id, filename, data)
	if err != nil {
		return library.Record{}, err
	}

	var oldImage string
	_, err = s.docs.Mutate(func(records []library.Record) ([]library.Record, error) {
		for i := range records {
			if records[i].ID == id {
				oldImage = records[i].Image
				records[i].Image = imageName
				rec = records[i].Clone()
				return records, nil
			}
		}
		return nil, library.ErrNotFound
	})
	if err != nil {
		// Record lookup or commit failed: the staged image is an orphan.
		if delErr := s.images.Delete(imageName); delErr != nil {
			s.log.Warn("rollback of staged image blob failed",
				logger.String("image", imageName), logger.Error(delErr))
		}
		return library.Record{}, err
	}

	if oldImage != "" && oldImage != imageName {
		if err := s.images.Delete(oldImage); err != nil {
			s.log.Warn("deleting replaced image blob failed",
				logger.String("image", oldImage), logger.Error(err))
		}
	}

	s.log.Info("image attached",
		logger.String("id", id), logger.String("image", imageName))
	return rec, nil
}

// DetachImage removes a record's image. Deleting the blob is
// idempotent, so detaching twice is not an error.
func (s *Manager) DetachImage(lvl access.Level, id string) (rec library.Record, err error) {
	defer func() { s.count("detach_image", err) }()

	if !lvl.CanWrite() {
		return library.Record{}, library.ErrUnauthorized
	}
	if id == "" {
		return library.Record{}, fmt.Errorf("%w: missing itemId", library.ErrInvalidInput)
	}

	var oldImage string
	_, err = s.docs.Mutate(func(records []library.Record) ([]library.Record, error) {
		for i := range records {
			if records[i].ID == id {
				oldImage = records[i].Image
				records[i].Image = ""
				rec = records[i].Clone()
				return records, nil
			}
		}
		return nil, library.ErrNotFound
	})
	if err != nil {
		return library.Record{}, err
	}

	if oldImage != "" {
		if err := s.images.Delete(oldImage); err != nil {
			s.log.Warn("deleting detached image blob failed",
				logger.String("image", oldImage), logger.Error(err))
		}
	}
	return rec, nil
}

// Save creates a new record from raw content, or with mode "overwrite"
// replaces an existing record's blob in place and refreshes its date.
// Overwrite failure leaves the record unchanged; the original blob is
// only touched by the atomic rename.
func (s *Manager) Save(lvl access.Level, content []byte, filename, itemID, mode string) (rec library.Record, created bool, err error) {
	defer func() { s.count("save", err) }()

	if !lvl.CanWrite() {
		return library.Record{}, false, library.ErrUnauthorized
	}
	if len(content) == 0 || filename == "" {
		return library.Record{}, false, fmt.Errorf("%w: missing content or filename", library.ErrInvalidInput)
	}

	if mode == SaveModeOverwrite && itemID != "" {
		existing, err := s.docs.Get(itemID)
		if err != nil {
			return library.Record{}, false, err
		}
		if err := s.tracks.Overwrite(existing.Filename, content); err != nil {
			return library.Record{}, false, err
		}

		date := s.now().Format(time.RFC3339)
		_, err = s.docs.Mutate(func(records []library.Record) ([]library.Record, error) {
			for i := range records {
				if records[i].ID == itemID {
					records[i].Date = date
					rec = records[i].Clone()
					return records, nil
				}
			}
			return nil, library.ErrNotFound
		})
		if err != nil {
			return library.Record{}, false, err
		}
		s.log.Info("track overwritten", logger.String("id", itemID))
		return rec, false, nil
	}

	rec, err = s.upload(filename, []string{}, content)
	if err != nil {
		return library.Record{}, false, err
	}
	return rec, true, nil
}

// ReadTrack returns the bytes of a track blob for serving.
func (s *Manager) ReadTrack(filename string) ([]byte, error) {
	return s.tracks.Read(filename)
}

// ReadImage returns the bytes of an image blob for serving.
func (s *Manager) ReadImage(filename string) ([]byte, error) {
	return s.images.Read(filename)
}

// Referenced returns the blob names the document currently points at,
// split by directory. Used by the orphan sweeper.
func (s *Manager) Referenced() (tracks, images map[string]bool) {
	tracks = make(map[string]bool)
	images = make(map[string]bool)
	for _, rec := range s.docs.List() {
		if rec.Filename != "" {
			tracks[rec.Filename] = true
		}
		if rec.Image != "" {
			images[rec.Image] = true
		}
	}
	return tracks, images
}

// Stats describes the store for the infra endpoint.
type Stats struct {
	Records    int `json:"records"`
	TrackBlobs int `json:"track_blobs"`
	ImageBlobs int `json:"image_blobs"`
}

func (s *Manager) Stats() (Stats, error) {
	tracks, err := s.tracks.List()
	if err != nil {
		return Stats{}, err
	}
	images, err := s.images.List()
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Records:    s.docs.Count(),
		TrackBlobs: len(tracks),
		ImageBlobs: len(images),
	}, nil
}

// storeImage writes the image blob under "<itemId>-<millis>.<ext>",
// bumping the name on collision.
func (s *Manager) storeImage(id, filename string, data []byte) (string, error) {
	ext := imageExt(filename)
	base := fmt.Sprintf("%s-%d.%s", blob.Sanitize(id), s.now().UnixMilli(), ext)
	name := base
	for i := 1; ; i++ {
		err := s.images.StoreAs(name, data)
		if err == nil {
			return name, nil
		}
		if i > 10 {
			return "", err
		}
		name = fmt.Sprintf("%d-%s", i, base)
	}
}

// imageExt extracts a lowercase alphanumeric extension, defaulting to jpg.
func imageExt(filename string) string {
	idx := strings.LastIndexByte(filename, '.')
	if idx < 0 || idx == len(filename)-1 {
		return "jpg"
	}
	var b strings.Builder
	for _, r := range strings.ToLower(filename[idx+1:]) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "jpg"
	}
	return b.String()
}

// validateImage enforces the MIME allow-list and size ceiling before
// anything touches disk. When the client did not declare a specific
// type the content is sniffed instead.
func validateImage(declaredType string, data []byte) error {
	if len(data) > MaxImageBytes {
		return fmt.Errorf("%w: file too large, maximum 5MB", library.ErrInvalidInput)
	}
	mimeType := declaredType
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	mimeType = strings.TrimSpace(strings.ToLower(mimeType))
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	if !allowedImageTypes[mimeType] {
		return fmt.Errorf("%w: invalid file type %q, use JPEG, PNG, GIF, or WebP", library.ErrInvalidInput, mimeType)
	}
	return nil
}
