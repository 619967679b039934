package syncer

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/paceriz/paceriz/internal/cache"
	"github.com/paceriz/paceriz/internal/telemetry/metrics"
	"github.com/paceriz/paceriz/internal/telemetry/tracing"
	"github.com/paceriz/paceriz/internal/workout"

	log "github.com/sirupsen/logrus"
)

//go:generate mockgen -source=$GOFILE -destination=uploader_mocks_test.go -package=syncer

// WorkoutSource provides workouts pending upload, e.g. freshly ingested
// activity files.
type WorkoutSource interface {
	PendingWorkouts(ctx context.Context) ([]workout.Workout, error)
}

type workoutsReader interface {
	ListWorkouts(ctx context.Context, cursor string, size int) (*workout.ListResponse, error)
	GetStats(ctx context.Context, from, to time.Time) (*workout.Stats, error)
}

// BackgroundManager drives the periodic sync cycle: upload pending
// workouts, pull the fresh list and stats into the local cache, sweep
// expired cache entries. Only one cycle runs at a time, a tick landing
// mid-cycle is dropped.
type BackgroundManager struct {
	service        *Service
	source         WorkoutSource
	reader         workoutsReader
	cacheManager   *cache.Manager
	metricsManager *metrics.Manager
	interval       time.Duration
	inFlight       atomic.Bool
}

func NewBackgroundManager(
	service *Service,
	source WorkoutSource,
	reader workoutsReader,
	cacheManager *cache.Manager,
	metricsManager *metrics.Manager,
	interval time.Duration,
) *BackgroundManager {
	return &BackgroundManager{
		service:        service,
		source:         source,
		reader:         reader,
		cacheManager:   cacheManager,
		metricsManager: metricsManager,
		interval:       interval,
	}
}

// Run blocks until ctx is done, running a sync cycle on every tick.
func (bm *BackgroundManager) Run(ctx context.Context) {
	log.Debugf("background sync started, interval %s", bm.interval)

	// one eager cycle on startup, then the ticker takes over
	bm.SyncNow(ctx)

	ticker := time.NewTicker(bm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debugln("background sync stopping")
			return
		case <-ticker.C:
			bm.SyncNow(ctx)
		}
	}
}

// SyncNow runs a single sync cycle. Returns false when a cycle was
// already in flight and this one was dropped.
func (bm *BackgroundManager) SyncNow(ctx context.Context) bool {
	if !bm.inFlight.CompareAndSwap(false, true) {
		log.Debugln("sync cycle already in flight, skipping")
		return false
	}
	defer bm.inFlight.Store(false)

	ctx, span := tracing.GlobalSyncTracer.Start(ctx, "syncer.cycle")
	defer span.End()

	defer func(begin time.Time) {
		bm.metricsManager.HistSyncBatchDuration.Observe(time.Since(begin).Seconds())
	}(time.Now())

	bm.uploadPending(ctx)
	bm.refreshCache(ctx)

	removedWorkouts, removedDetails := bm.cacheManager.Sweep()
	if removedWorkouts+removedDetails > 0 {
		log.Debugf("sync cycle swept %d workouts, %d details", removedWorkouts, removedDetails)
	}
	if _, err := bm.service.tracker.Prune(cache.RetentionWindow); err != nil {
		log.Errorf("sync cycle, prune tracker: %s", err)
	}

	return true
}

func (bm *BackgroundManager) uploadPending(ctx context.Context) {
	pending, err := bm.source.PendingWorkouts(ctx)
	if err != nil {
		log.Errorf("sync cycle, get pending workouts: %s", err)
		return
	}
	if len(pending) == 0 {
		return
	}

	result, err := bm.service.UploadMany(ctx, pending)
	if err != nil {
		// not fatal, pending workouts are retried next cycle
		log.Errorf("sync cycle, upload pending workouts: %s", err)
		return
	}
	log.Debugf("sync cycle uploaded %d, skipped %d workouts", result.Uploaded, result.Skipped)
}

func (bm *BackgroundManager) refreshCache(ctx context.Context) {
	listResp, err := bm.reader.ListWorkouts(ctx, "", 0)
	if err != nil {
		log.Errorf("sync cycle, list workouts: %s", err)
	} else if _, err := bm.cacheManager.MergeIntoList(listResp.Workouts); err != nil {
		log.Errorf("sync cycle, merge workouts into cache: %s", err)
	}

	now := time.Now()
	stats, err := bm.reader.GetStats(ctx, now.AddDate(0, -1, 0), now)
	if err != nil {
		log.Errorf("sync cycle, get stats: %s", err)
		return
	}
	if err := bm.cacheManager.SetStats(stats); err != nil {
		log.Errorf("sync cycle, cache stats: %s", err)
	}
}
