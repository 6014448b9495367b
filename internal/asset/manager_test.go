package asset

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tracklib/tracklib/internal/access"
	"github.com/tracklib/tracklib/internal/library"
	"github.com/tracklib/tracklib/internal/logger"
	"github.com/tracklib/tracklib/internal/metrics"
	"github.com/tracklib/tracklib/internal/store/blob"
	"github.com/tracklib/tracklib/internal/store/document"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	dir := t.TempDir()
	docs, err := document.Open(filepath.Join(dir, "library.json"))
	if err != nil {
		t.Fatalf("Open document store: %v", err)
	}
	tracks := blob.NewDir(dir)
	images := blob.NewDir(filepath.Join(dir, "images"))
	return NewManager(docs, tracks, images, logger.New("error", false), nil)
}

// jpegBytes returns n bytes starting with a JPEG magic number so
// content sniffing agrees with the declared type.
func jpegBytes(n int) []byte {
	data := make([]byte, n)
	copy(data, []byte{0xFF, 0xD8, 0xFF, 0xE0})
	return data
}

func TestUploadRoundTrip(t *testing.T) {
	m := newTestManager(t)

	rec, err := m.Upload(access.LevelWrite, "trail.gpx", nil, []byte("<gpx/>"))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if rec.ID == "" || rec.Filename == "" || rec.Date == "" {
		t.Errorf("record missing generated fields: %+v", rec)
	}
	if rec.Tags == nil || len(rec.Tags) != 0 {
		t.Errorf("Tags = %v, want empty non-nil slice", rec.Tags)
	}
	if _, err := time.Parse(time.RFC3339, rec.Date); err != nil {
		t.Errorf("Date %q is not RFC3339: %v", rec.Date, err)
	}

	listed := m.List()
	if len(listed) != 1 || listed[0].ID != rec.ID {
		t.Fatalf("List = %+v, want exactly the uploaded record", listed)
	}

	data, err := m.ReadTrack(rec.Filename)
	if err != nil || !bytes.Equal(data, []byte("<gpx/>")) {
		t.Errorf("ReadTrack = %q, %v", data, err)
	}
}

func TestUploadRequiresWrite(t *testing.T) {
	m := newTestManager(t)

	for _, lvl := range []access.Level{access.LevelNone, access.LevelRead} {
		if _, err := m.Upload(lvl, "a.gpx", nil, []byte("x")); !errors.Is(err, library.ErrUnauthorized) {
			t.Errorf("Upload with %v = %v, want ErrUnauthorized", lvl, err)
		}
	}
	// Rejection happens before any side effect.
	if len(m.List()) != 0 {
		t.Error("unauthorized upload left a record behind")
	}
	names, _ := m.tracks.List()
	if len(names) != 0 {
		t.Errorf("unauthorized upload left blobs behind: %v", names)
	}
}

func TestUploadMissingFile(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.Upload(access.LevelWrite, "", nil, nil); !errors.Is(err, library.ErrInvalidInput) {
		t.Errorf("Upload without file = %v, want ErrInvalidInput", err)
	}
}

func TestUpdateFields(t *testing.T) {
	m := newTestManager(t)
	rec, err := m.Upload(access.LevelWrite, "trail.gpx", nil, []byte("<gpx/>"))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	tags := []string{"hilly"}
	updated, err := m.Update(access.LevelWrite, rec.ID, library.Update{Tags: &tags})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if len(updated.Tags) != 1 || updated.Tags[0] != "hilly" {
		t.Errorf("Tags = %v, want [hilly]", updated.Tags)
	}
	if updated.Name != rec.Name || updated.Filename != rec.Filename || updated.Date != rec.Date {
		t.Errorf("unrelated fields changed: %+v", updated)
	}
}

func TestUpdateFreeFormEnums(t *testing.T) {
	// category and imageSize are accepted as free-form strings.
	m := newTestManager(t)
	rec, _ := m.Upload(access.LevelWrite, "a.gpx", nil, []byte("x"))

	category := "gravel-unicycling"
	size := "enormous"
	updated, err := m.Update(access.LevelWrite, rec.ID, library.Update{Category: &category, ImageSize: &size})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Category != category || updated.ImageSize != size {
		t.Errorf("free-form enum values not preserved: %+v", updated)
	}
}

func TestUpdateRaceWebpage(t *testing.T) {
	m := newTestManager(t)
	rec, _ := m.Upload(access.LevelWrite, "a.gpx", nil, []byte("x"))

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "valid url kept", input: "https://race.example.com/2026", expected: "https://race.example.com/2026"},
		{name: "malformed cleared", input: "not a url", expected: ""},
		{name: "blank cleared", input: "   ", expected: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.Update(access.LevelWrite, rec.ID, library.Update{RaceWebpage: &tt.input})
			if err != nil {
				t.Fatalf("Update failed: %v", err)
			}
			if got.RaceWebpage != tt.expected {
				t.Errorf("RaceWebpage = %q, want %q", got.RaceWebpage, tt.expected)
			}
		})
	}
}

func TestUpdateUnknownID(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.Update(access.LevelWrite, "ghost", library.Update{}); !errors.Is(err, library.ErrNotFound) {
		t.Errorf("Update(ghost) = %v, want ErrNotFound", err)
	}
}

func TestDeleteRemovesRecordAndBlobs(t *testing.T) {
	m := newTestManager(t)
	rec, _ := m.Upload(access.LevelWrite, "a.gpx", nil, []byte("x"))
	withImage, err := m.AttachImage(access.LevelWrite, rec.ID, "cover.jpg", "image/jpeg", jpegBytes(100))
	if err != nil {
		t.Fatalf("AttachImage failed: %v", err)
	}

	if _, err := m.Delete(access.LevelWrite, rec.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if len(m.List()) != 0 {
		t.Error("record still listed after Delete")
	}
	if m.tracks.Exists(rec.Filename) {
		t.Error("track blob survived Delete")
	}
	if m.images.Exists(withImage.Image) {
		t.Error("image blob survived Delete")
	}

	// Second delete reports NotFound.
	if _, err := m.Delete(access.LevelWrite, rec.ID); !errors.Is(err, library.ErrNotFound) {
		t.Errorf("second Delete = %v, want ErrNotFound", err)
	}
}

func TestAttachImageValidation(t *testing.T) {
	m := newTestManager(t)
	rec, _ := m.Upload(access.LevelWrite, "a.gpx", nil, []byte("x"))

	tests := []struct {
		name         string
		declaredType string
		data         []byte
	}{
		{name: "oversized", declaredType: "image/jpeg", data: jpegBytes(6 << 20)},
		{name: "disallowed type", declaredType: "image/tiff", data: jpegBytes(100)},
		{name: "not an image at all", declaredType: "", data: []byte("plain text content here")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.AttachImage(access.LevelWrite, rec.ID, "img.bin", tt.declaredType, tt.data); !errors.Is(err, library.ErrInvalidInput) {
				t.Errorf("AttachImage = %v, want ErrInvalidInput", err)
			}
		})
	}

	// Rejection happens before any write.
	names, _ := m.images.List()
	if len(names) != 0 {
		t.Errorf("rejected images left blobs behind: %v", names)
	}
}

func TestAttachImageReplacesPrevious(t *testing.T) {
	m := newTestManager(t)
	rec, _ := m.Upload(access.LevelWrite, "a.gpx", nil, []byte("x"))

	first, err := m.AttachImage(access.LevelWrite, rec.ID, "one.jpg", "image/jpeg", jpegBytes(2<<20))
	if err != nil {
		t.Fatalf("first AttachImage failed: %v", err)
	}
	second, err := m.AttachImage(access.LevelWrite, rec.ID, "two.png", "image/png", jpegBytes(100))
	if err != nil {
		t.Fatalf("second AttachImage failed: %v", err)
	}

	if m.images.Exists(first.Image) {
		t.Error("replaced image blob was not deleted")
	}
	if !m.images.Exists(second.Image) {
		t.Error("new image blob is missing")
	}
}

func TestAttachImageUnknownItemRollsBack(t *testing.T) {
	m := newTestManager(t)

	if _, err := m.AttachImage(access.LevelWrite, "ghost", "img.jpg", "image/jpeg", jpegBytes(100)); !errors.Is(err, library.ErrNotFound) {
		t.Fatalf("AttachImage(ghost) = %v, want ErrNotFound", err)
	}
	// The staged blob must not be orphaned.
	names, _ := m.images.List()
	if len(names) != 0 {
		t.Errorf("staged image blob orphaned: %v", names)
	}
}

func TestDetachImageIdempotent(t *testing.T) {
	m := newTestManager(t)
	rec, _ := m.Upload(access.LevelWrite, "a.gpx", nil, []byte("x"))
	attached, err := m.AttachImage(access.LevelWrite, rec.ID, "img.jpg", "image/jpeg", jpegBytes(100))
	if err != nil {
		t.Fatalf("AttachImage failed: %v", err)
	}

	got, err := m.DetachImage(access.LevelWrite, rec.ID)
	if err != nil {
		t.Fatalf("DetachImage failed: %v", err)
	}
	if got.Image != "" {
		t.Errorf("Image = %q after detach, want empty", got.Image)
	}
	if m.images.Exists(attached.Image) {
		t.Error("image blob survived detach")
	}

	// Detaching again is not an error.
	if _, err := m.DetachImage(access.LevelWrite, rec.ID); err != nil {
		t.Errorf("second DetachImage = %v, want nil", err)
	}
}

func TestSaveNewAndOverwrite(t *testing.T) {
	m := newTestManager(t)
	m.now = func() time.Time { return time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC) }

	rec, created, err := m.Save(access.LevelWrite, []byte("v1"), "route.gpx", "", "")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !created {
		t.Error("Save without mode should create")
	}
	if len(rec.Tags) != 0 || rec.Tags == nil {
		t.Errorf("new record Tags = %v, want empty non-nil", rec.Tags)
	}

	m.now = func() time.Time { return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC) }
	overwritten, created, err := m.Save(access.LevelWrite, []byte("v2"), "route.gpx", rec.ID, SaveModeOverwrite)
	if err != nil {
		t.Fatalf("Save overwrite failed: %v", err)
	}
	if created {
		t.Error("overwrite must not create a new record")
	}
	if overwritten.Filename != rec.Filename {
		t.Errorf("overwrite changed the filename: %q -> %q", rec.Filename, overwritten.Filename)
	}
	if overwritten.Date == rec.Date {
		t.Error("overwrite must refresh the date")
	}

	data, err := m.ReadTrack(rec.Filename)
	if err != nil || string(data) != "v2" {
		t.Errorf("ReadTrack = %q, %v; want v2", data, err)
	}
	if len(m.List()) != 1 {
		t.Errorf("List = %d records, want 1", len(m.List()))
	}
}

func TestSaveCountsAsOneOperation(t *testing.T) {
	m := newTestManager(t)
	mx := metrics.Init(nil)
	m.mx = mx

	saveBefore := testutil.ToFloat64(mx.OpsTotal.WithLabelValues("save", "ok"))
	uploadBefore := testutil.ToFloat64(mx.OpsTotal.WithLabelValues("upload", "ok"))

	if _, created, err := m.Save(access.LevelWrite, []byte("x"), "a.gpx", "", ""); err != nil || !created {
		t.Fatalf("Save = created %v, err %v", created, err)
	}

	if got := testutil.ToFloat64(mx.OpsTotal.WithLabelValues("save", "ok")) - saveBefore; got != 1 {
		t.Errorf("save counter moved by %v, want 1", got)
	}
	if got := testutil.ToFloat64(mx.OpsTotal.WithLabelValues("upload", "ok")) - uploadBefore; got != 0 {
		t.Errorf("upload counter moved by %v on a save, want 0", got)
	}
}

func TestSaveOverwriteUnknownID(t *testing.T) {
	m := newTestManager(t)
	if _, _, err := m.Save(access.LevelWrite, []byte("x"), "a.gpx", "ghost", SaveModeOverwrite); !errors.Is(err, library.ErrNotFound) {
		t.Errorf("Save overwrite ghost = %v, want ErrNotFound", err)
	}
}

func TestNoOrphanInvariant(t *testing.T) {
	m := newTestManager(t)

	a, _ := m.Upload(access.LevelWrite, "a.gpx", nil, []byte("a"))
	b, _ := m.Upload(access.LevelWrite, "b.gpx", nil, []byte("b"))
	if _, err := m.AttachImage(access.LevelWrite, a.ID, "a.jpg", "image/jpeg", jpegBytes(10)); err != nil {
		t.Fatalf("AttachImage: %v", err)
	}
	if _, err := m.AttachImage(access.LevelWrite, a.ID, "a2.jpg", "image/jpeg", jpegBytes(10)); err != nil {
		t.Fatalf("AttachImage replace: %v", err)
	}
	if _, err := m.Delete(access.LevelWrite, b.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	refTracks, refImages := m.Referenced()

	// Every referenced blob exists on disk.
	for name := range refTracks {
		if !m.tracks.Exists(name) {
			t.Errorf("record references missing track blob %q", name)
		}
	}
	for name := range refImages {
		if !m.images.Exists(name) {
			t.Errorf("record references missing image blob %q", name)
		}
	}

	// No blob exists that is unreferenced.
	onDiskTracks, _ := m.tracks.List()
	for _, name := range onDiskTracks {
		if name == "library.json" {
			continue // the document shares the track directory
		}
		if !refTracks[name] {
			t.Errorf("orphan track blob %q", name)
		}
	}
	onDiskImages, _ := m.images.List()
	for _, name := range onDiskImages {
		if !refImages[name] {
			t.Errorf("orphan image blob %q", name)
		}
	}
}

func TestConcurrentUploads(t *testing.T) {
	m := newTestManager(t)

	// Everyone uploads under the same suggested name, so both the
	// document mutation and the blob name generation are contended.
	const n = 20
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			if _, err := m.Upload(access.LevelWrite, "track.gpx", nil, []byte(fmt.Sprintf("payload-%d", i))); err != nil {
				t.Errorf("Upload %d failed: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	records := m.List()
	if len(records) != n {
		t.Fatalf("List = %d records, want %d (lost updates)", len(records), n)
	}
	seenID := make(map[string]bool, n)
	seenBlob := make(map[string]bool, n)
	for _, r := range records {
		if seenID[r.ID] {
			t.Errorf("duplicate record id %q", r.ID)
		}
		seenID[r.ID] = true
		if seenBlob[r.Filename] {
			t.Errorf("two records share blob %q", r.Filename)
		}
		seenBlob[r.Filename] = true
		if !m.tracks.Exists(r.Filename) {
			t.Errorf("record %q references missing blob %q", r.ID, r.Filename)
		}
	}
}
