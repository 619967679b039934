package workout

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"time"
)

// MaxRetainedWorkouts caps the size of a merged workout list. Older
// entries beyond the cap are dropped, they can always be re-fetched.
const MaxRetainedWorkouts = 500

// MinHeartRateSamples is the number of heart rate samples below which a
// workout is considered to have no usable heart rate data.
const MinHeartRateSamples = 10

type ActivityType string

const (
	ActivityRunning  ActivityType = "running"
	ActivityWalking  ActivityType = "walking"
	ActivityCycling  ActivityType = "cycling"
	ActivityHiking   ActivityType = "hiking"
	ActivityStrength ActivityType = "strength"
	ActivityOther    ActivityType = "other"
)

type HeartRateSample struct {
	Timestamp time.Time `json:"timestamp"`
	BPM       int       `json:"bpm"`
}

type SpeedSample struct {
	Timestamp       time.Time `json:"timestamp"`
	MetersPerSecond float64   `json:"metersPerSecond"`
}

type CadenceSample struct {
	Timestamp      time.Time `json:"timestamp"`
	StepsPerMinute int       `json:"stepsPerMinute"`
}

type TrackPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Elevation float64   `json:"elevation"`
}

type Workout struct {
	ID           string       `json:"id"`
	ActivityType ActivityType `json:"activityType"`
	StartedAt    time.Time    `json:"startedAt"`
	EndedAt      time.Time    `json:"endedAt"`
	Source       string       `json:"source,omitempty"`

	DistanceMeters float64 `json:"distanceMeters"`
	Calories       float64 `json:"calories"`
	AvgHeartRate   int     `json:"avgHeartRate,omitempty"`
	MaxHeartRate   int     `json:"maxHeartRate,omitempty"`

	HeartRate []HeartRateSample `json:"heartRate,omitempty"`
	Speed     []SpeedSample     `json:"speed,omitempty"`
	Cadence   []CadenceSample   `json:"cadence,omitempty"`
	Track     []TrackPoint      `json:"track,omitempty"`
}

// ComputeID derives the stable workout identity from the time range and
// activity type. Two ingests of the same workout, from whichever source,
// thus resolve to the same ID.
func ComputeID(startedAt, endedAt time.Time, activityType ActivityType) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%d|%d|%s", startedAt.Unix(), endedAt.Unix(), activityType)))
	return hex.EncodeToString(sum[:])[:16]
}

func (w *Workout) Duration() time.Duration {
	return w.EndedAt.Sub(w.StartedAt)
}

// PaceSecPerKm returns the average pace in seconds per kilometer, or 0
// when the workout covered no distance.
func (w *Workout) PaceSecPerKm() float64 {
	if w.DistanceMeters <= 0 {
		return 0
	}
	return w.Duration().Seconds() / (w.DistanceMeters / 1000)
}

// HasHeartRateData reports whether the workout carries enough heart rate
// samples to be worth uploading as-is. Workouts below the threshold get
// re-checked later, heart rate often arrives late from the watch.
func (w *Workout) HasHeartRateData() bool {
	return len(w.HeartRate) >= MinHeartRateSamples
}

// Merge unions existing and incoming workouts by ID, with incoming
// entries winning on conflict, then re-sorts by start time descending
// and truncates to MaxRetainedWorkouts.
func Merge(existing, incoming []Workout) []Workout {
	byID := make(map[string]Workout, len(existing)+len(incoming))
	for _, w := range existing {
		byID[w.ID] = w
	}
	for _, w := range incoming {
		byID[w.ID] = w
	}

	merged := make([]Workout, 0, len(byID))
	for _, w := range byID {
		merged = append(merged, w)
	}

	sort.Slice(merged, func(i, j int) bool {
		if merged[i].StartedAt.Equal(merged[j].StartedAt) {
			return merged[i].ID < merged[j].ID
		}
		return merged[i].StartedAt.After(merged[j].StartedAt)
	})

	if len(merged) > MaxRetainedWorkouts {
		merged = merged[:MaxRetainedWorkouts]
	}

	return merged
}

// Stats is an aggregate over a workout range.
type Stats struct {
	TotalWorkouts       int     `json:"totalWorkouts"`
	TotalDistanceMeters float64 `json:"totalDistanceMeters"`
	TotalDurationSec    float64 `json:"totalDurationSec"`
	TotalCalories       float64 `json:"totalCalories"`
	AvgHeartRate        int     `json:"avgHeartRate"`

	PerActivity []ActivityStats `json:"perActivity,omitempty"`
}

// ActivityStats is the per-activity-type slice of Stats.
type ActivityStats struct {
	ActivityType   ActivityType `json:"activityType"`
	Workouts       int          `json:"workouts"`
	DistanceMeters float64      `json:"distanceMeters"`
	DurationSec    float64      `json:"durationSec"`
}
