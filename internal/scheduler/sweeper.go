// Package scheduler runs the background maintenance loops of the
// library server.
package scheduler

import (
	"context"
	"time"

	"github.com/tracklib/tracklib/internal/asset"
	"github.com/tracklib/tracklib/internal/logger"
	"github.com/tracklib/tracklib/internal/metrics"
	"github.com/tracklib/tracklib/internal/store/blob"
)

const (
	// DefaultMinAge protects freshly written blobs from the sweeper:
	// an upload stages its blob before the metadata commit lands, and
	// a sweep in that window must not mistake it for an orphan.
	DefaultMinAge = 5 * time.Minute
)

// Sweeper periodically removes orphaned blobs: files in the blob
// directories that no record references. Orphans appear when the
// process dies between a blob write and its metadata commit; normal
// operation never produces one.
type Sweeper struct {
	mgr    *asset.Manager
	tracks *blob.Dir
	images *blob.Dir
	log    logger.Logger
	mx     *metrics.Metrics

	interval time.Duration
	minAge   time.Duration
	exclude  map[string]bool // names in the track dir that are not blobs

	trigger chan struct{}
	stopCh  chan struct{}
}

func NewSweeper(
	mgr *asset.Manager,
	tracks, images *blob.Dir,
	log logger.Logger,
	mx *metrics.Metrics,
	interval time.Duration,
	exclude []string,
	trigger chan struct{},
) *Sweeper {
	ex := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		ex[name] = true
	}
	return &Sweeper{
		mgr:      mgr,
		tracks:   tracks,
		images:   images,
		log:      log,
		mx:       mx,
		interval: interval,
		minAge:   DefaultMinAge,
		exclude:  ex,
		trigger:  trigger,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the periodic sweep loop. It returns immediately; the
// loop stops on ctx cancellation or Stop().
func (s *Sweeper) Start(ctx context.Context) error {
	go s.run(ctx)
	return nil
}

// Stop terminates the sweep loop.
func (s *Sweeper) Stop() {
	close(s.stopCh)
}

func (s *Sweeper) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweepAndLog(ctx)
		case <-s.trigger:
			s.log.Info("manual sweep triggered")
			s.sweepAndLog(ctx)
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		}
	}
}

func (s *Sweeper) sweepAndLog(ctx context.Context) {
	removed, err := s.Sweep(ctx)
	if err != nil {
		s.log.Warn("sweep failed", logger.Error(err))
		return
	}
	if removed > 0 {
		s.log.Info("sweep removed orphaned blobs", logger.Int("count", removed))
	} else {
		s.log.Debug("sweep found no orphans")
	}
}

// Sweep runs one orphan collection pass and returns how many blobs
// were removed.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	refTracks, refImages := s.mgr.Referenced()

	removed, err := s.sweepDir(ctx, s.tracks, refTracks)
	if err != nil {
		return removed, err
	}
	n, err := s.sweepDir(ctx, s.images, refImages)
	removed += n
	if err != nil {
		return removed, err
	}

	if s.mx != nil && removed > 0 {
		s.mx.SweepRemovedTotal.Add(float64(removed))
	}
	return removed, nil
}

func (s *Sweeper) sweepDir(ctx context.Context, dir *blob.Dir, referenced map[string]bool) (int, error) {
	names, err := dir.List()
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-s.minAge)
	removed := 0
	for _, name := range names {
		select {
		case <-ctx.Done():
			return removed, ctx.Err()
		default:
		}

		if referenced[name] || s.exclude[name] {
			continue
		}
		mod, err := dir.ModTime(name)
		if err != nil {
			continue // already gone, raced with a delete
		}
		if mod.After(cutoff) {
			continue // possibly an in-flight upload
		}
		if err := dir.Delete(name); err != nil {
			s.log.Warn("failed to remove orphaned blob",
				logger.String("name", name), logger.Error(err))
			continue
		}
		s.log.Debug("removed orphaned blob", logger.String("name", name))
		removed++
	}
	return removed, nil
}
