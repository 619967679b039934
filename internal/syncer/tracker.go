package syncer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// RetryBackoff is how long a workout uploaded without heart rate data
// stays out of upload batches before it is retried. Heart rate samples
// from the watch often land well after the workout itself.
const RetryBackoff = time.Hour

type UploadRecord struct {
	WorkoutID    string    `json:"workoutId"`
	Uploaded     bool      `json:"uploaded"`
	HasHeartRate bool      `json:"hasHeartRate"`
	UploadedAt   time.Time `json:"uploadedAt"`
}

// Tracker remembers which workouts were already uploaded, and whether
// heart rate data was present at the time, to suppress duplicate
// uploads. State survives restarts through a single JSON file.
type Tracker struct {
	mu        sync.Mutex
	statePath string
	records   map[string]UploadRecord

	// injectable for tests
	NowFunc func() time.Time
}

func NewTracker(statePath string) (*Tracker, error) {
	t := &Tracker{
		statePath: statePath,
		records:   make(map[string]UploadRecord),
		NowFunc:   time.Now,
	}

	data, err := os.ReadFile(statePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return t, nil
		}
		return nil, fmt.Errorf("read tracker state: %w", err)
	}

	if err := json.Unmarshal(data, &t.records); err != nil {
		// corrupt state means workouts get re-uploaded, the backend
		// dedupes them anyway
		log.Errorf("tracker state unmarshal, starting fresh: %s", err)
		t.records = make(map[string]UploadRecord)
	}

	return t, nil
}

// ShouldUpload reports whether the workout belongs in the next upload
// batch. Uploaded workouts with heart rate data are done forever, ones
// uploaded without it become eligible again after the backoff window.
func (t *Tracker) ShouldUpload(workoutID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[workoutID]
	if !ok || !rec.Uploaded {
		return true
	}
	if rec.HasHeartRate {
		return false
	}
	return t.NowFunc().Sub(rec.UploadedAt) > RetryBackoff
}

func (t *Tracker) MarkUploaded(workoutID string, hasHeartRate bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.records[workoutID] = UploadRecord{
		WorkoutID:    workoutID,
		Uploaded:     true,
		HasHeartRate: hasHeartRate,
		UploadedAt:   t.NowFunc(),
	}
	return t.persist()
}

func (t *Tracker) Record(workoutID string) (UploadRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[workoutID]
	return rec, ok
}

// Prune drops records older than the given window, typically aligned
// with the cache retention sweep.
func (t *Tracker) Prune(olderThan time.Duration) (removed int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.NowFunc().Add(-olderThan)
	for id, rec := range t.records {
		if rec.Uploaded && rec.UploadedAt.Before(cutoff) {
			delete(t.records, id)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, t.persist()
}

func (t *Tracker) persist() error {
	data, err := json.Marshal(t.records)
	if err != nil {
		return fmt.Errorf("marshal tracker state: %w", err)
	}

	tmpPath := t.statePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write tracker state: %w", err)
	}
	return os.Rename(tmpPath, t.statePath)
}
