package syncer

import (
	"context"
	"fmt"

	"github.com/paceriz/paceriz/internal/telemetry/metrics"
	"github.com/paceriz/paceriz/internal/telemetry/tracing"
	"github.com/paceriz/paceriz/internal/workout"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

//go:generate mockgen -source=$GOFILE -destination=service_mocks_test.go -package=syncer

type workoutsUploader interface {
	UploadWorkouts(ctx context.Context, workouts []workout.Workout) (*workout.UploadResponse, error)
}

// UploadResult says what happened to a batch handed to the service.
type UploadResult struct {
	Uploaded int
	Skipped  int
}

// Service is the single entry point for uploading workouts. It consults
// the tracker to drop already-uploaded workouts and ones waiting out
// the heart rate backoff, then hands the rest to the API client in one
// batch.
type Service struct {
	uploader       workoutsUploader
	tracker        *Tracker
	metricsManager *metrics.Manager
}

func NewService(
	uploader workoutsUploader,
	tracker *Tracker,
	metricsManager *metrics.Manager,
) *Service {
	return &Service{
		uploader:       uploader,
		tracker:        tracker,
		metricsManager: metricsManager,
	}
}

func (s *Service) UploadOne(ctx context.Context, w workout.Workout) (*UploadResult, error) {
	return s.UploadMany(ctx, []workout.Workout{w})
}

func (s *Service) UploadMany(ctx context.Context, workouts []workout.Workout) (_ *UploadResult, err error) {
	ctx, span := tracing.GlobalSyncTracer.Start(ctx, "syncer.uploadMany")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var result UploadResult
	var toUpload []workout.Workout
	for i := range workouts {
		w := workouts[i]
		if w.ID == "" {
			w.ID = workout.ComputeID(w.StartedAt, w.EndedAt, w.ActivityType)
		}

		if !s.tracker.ShouldUpload(w.ID) {
			result.Skipped++
			continue
		}

		if rec, ok := s.tracker.Record(w.ID); ok && rec.Uploaded && !w.HasHeartRateData() {
			// retry attempt but heart rate still missing, restart the
			// backoff window instead of re-uploading the same payload
			if err := s.tracker.MarkUploaded(w.ID, false); err != nil {
				log.Errorf("syncer, restart backoff for %s: %s", w.ID, err)
			}
			result.Skipped++
			continue
		}

		toUpload = append(toUpload, w)
	}

	span.SetAttributes(attribute.Int("workouts.total", len(workouts)))
	span.SetAttributes(attribute.Int("workouts.toUpload", len(toUpload)))

	if len(toUpload) == 0 {
		s.metricsManager.CounterWorkoutsSkipped.Add(float64(result.Skipped))
		return &result, nil
	}

	uploadResp, err := s.uploader.UploadWorkouts(ctx, toUpload)
	if err != nil {
		// failed uploads stay pending for the next sync cycle
		s.metricsManager.CounterUploadFailures.Inc()
		return nil, fmt.Errorf("upload workouts: %w", err)
	}

	for _, w := range toUpload {
		if err := s.tracker.MarkUploaded(w.ID, w.HasHeartRateData()); err != nil {
			log.Errorf("syncer, mark %s uploaded: %s", w.ID, err)
		}
	}

	result.Uploaded = len(toUpload)
	s.metricsManager.CounterWorkoutsUploaded.Add(float64(result.Uploaded))
	s.metricsManager.CounterWorkoutsSkipped.Add(float64(result.Skipped))

	log.Debugf(
		"syncer: %d uploaded (%d new on backend), %d skipped",
		result.Uploaded, uploadResp.Added, result.Skipped,
	)
	return &result, nil
}
