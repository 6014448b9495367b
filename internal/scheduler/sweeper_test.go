package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tracklib/tracklib/internal/access"
	"github.com/tracklib/tracklib/internal/asset"
	"github.com/tracklib/tracklib/internal/logger"
	"github.com/tracklib/tracklib/internal/store/blob"
	"github.com/tracklib/tracklib/internal/store/document"
)

func setup(t *testing.T) (*asset.Manager, *blob.Dir, *blob.Dir, *Sweeper) {
	t.Helper()
	dir := t.TempDir()
	docs, err := document.Open(filepath.Join(dir, "library.json"))
	if err != nil {
		t.Fatalf("Open document store: %v", err)
	}
	log := logger.New("error", false)
	tracks := blob.NewDir(dir)
	images := blob.NewDir(filepath.Join(dir, "images"))
	mgr := asset.NewManager(docs, tracks, images, log, nil)

	sw := NewSweeper(mgr, tracks, images, log, nil, time.Hour, []string{"library.json"}, make(chan struct{}, 1))
	return mgr, tracks, images, sw
}

// plantOrphan writes a blob file with an old modification time so the
// min-age guard does not protect it.
func plantOrphan(t *testing.T, dir *blob.Dir, name string) {
	t.Helper()
	path := filepath.Join(dir.Root(), name)
	if err := os.MkdirAll(dir.Root(), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("orphan"), 0o644); err != nil {
		t.Fatalf("plant orphan: %v", err)
	}
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
}

func TestSweepRemovesOrphansOnly(t *testing.T) {
	mgr, tracks, images, sw := setup(t)

	rec, err := mgr.Upload(access.LevelWrite, "keep.gpx", nil, []byte("<gpx/>"))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	plantOrphan(t, tracks, "1000_orphan.gpx")
	plantOrphan(t, images, "ghost-1000.jpg")

	removed, err := sw.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("Sweep removed %d blobs, want 2", removed)
	}

	if !tracks.Exists(rec.Filename) {
		t.Error("sweep removed a referenced track blob")
	}
	if tracks.Exists("1000_orphan.gpx") {
		t.Error("orphan track blob survived the sweep")
	}
	if images.Exists("ghost-1000.jpg") {
		t.Error("orphan image blob survived the sweep")
	}
}

func TestSweepSparesDocumentFile(t *testing.T) {
	_, tracks, _, sw := setup(t)

	// Make the document old enough that only the exclude list protects it.
	docPath := filepath.Join(tracks.Root(), "library.json")
	if err := os.WriteFile(docPath, []byte("[]"), 0o644); err != nil {
		t.Fatalf("write document: %v", err)
	}
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(docPath, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	if _, err := sw.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if _, err := os.Stat(docPath); err != nil {
		t.Error("sweep removed the library document")
	}
}

func TestSweepSparesFreshBlobs(t *testing.T) {
	_, tracks, _, sw := setup(t)

	// A just-written unreferenced blob looks like an in-flight upload.
	if err := os.MkdirAll(tracks.Root(), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tracks.Root(), "2000_fresh.gpx"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write fresh blob: %v", err)
	}

	removed, err := sw.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if removed != 0 {
		t.Errorf("Sweep removed %d blobs, want 0", removed)
	}
	if !tracks.Exists("2000_fresh.gpx") {
		t.Error("sweep removed a fresh blob inside the min-age window")
	}
}

func TestManualTrigger(t *testing.T) {
	_, tracks, _, sw := setup(t)
	plantOrphan(t, tracks, "3000_orphan.gpx")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := sw.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer sw.Stop()

	sw.trigger <- struct{}{}

	deadline := time.Now().Add(2 * time.Second)
	for tracks.Exists("3000_orphan.gpx") {
		if time.Now().After(deadline) {
			t.Fatal("manual trigger did not sweep the orphan in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
