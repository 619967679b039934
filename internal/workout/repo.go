package workout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/paceriz/paceriz/internal/telemetry/tracing"
	"github.com/paceriz/paceriz/pkg"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

var ErrWorkoutNotFound = errors.New("workout not found")

type ListParams struct {
	Cursor *Cursor
	Size   int
}

// streams bundles the time-series samples stored as a single jsonb blob.
type streams struct {
	HeartRate []HeartRateSample `json:"heartRate,omitempty"`
	Speed     []SpeedSample     `json:"speed,omitempty"`
	Cadence   []CadenceSample   `json:"cadence,omitempty"`
	Track     []TrackPoint      `json:"track,omitempty"`
}

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

// Add stores a workout. Re-uploading an already stored workout is a
// no-op and returns the stored version.
func (r *Repo) Add(ctx context.Context, w Workout) (_ *Workout, created bool, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workout.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if w.ID == "" {
		w.ID = ComputeID(w.StartedAt, w.EndedAt, w.ActivityType)
	}
	span.SetAttributes(attribute.String("workout.id", w.ID))

	streamsJson, err := json.Marshal(streams{
		HeartRate: w.HeartRate,
		Speed:     w.Speed,
		Cadence:   w.Cadence,
		Track:     w.Track,
	})
	if err != nil {
		return nil, false, fmt.Errorf("marshal streams: %w", err)
	}

	_, err = r.db.Exec(
		ctx,
		`INSERT INTO workout
				(id, activity_type, started_at, ended_at, source, distance_meters, calories, avg_heart_rate, max_heart_rate, streams, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);`,
		w.ID, w.ActivityType, w.StartedAt, w.EndedAt, w.Source,
		w.DistanceMeters, w.Calories, w.AvgHeartRate, w.MaxHeartRate, streamsJson, time.Now(),
	)
	if err != nil {
		if pkg.IsUniqueViolationError(err) {
			existing, getErr := r.GetByID(ctx, w.ID)
			if getErr != nil {
				return nil, false, getErr
			}
			return existing, false, nil
		}
		return nil, false, err
	}

	return &w, true, nil
}

// List returns a page of workouts ordered by start time descending. The
// second return value is the cursor for the next page, nil when this was
// the last one.
func (r *Repo) List(ctx context.Context, params ListParams) (_ []Workout, _ *Cursor, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workout.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("size", params.Size))

	query := `
		SELECT id, activity_type, started_at, ended_at, source,
			distance_meters, calories, avg_heart_rate, max_heart_rate
		FROM workout`
	args := []any{}
	if params.Cursor != nil {
		query += ` WHERE (started_at, id) < ($1, $2)`
		args = append(args, params.Cursor.StartedAt, params.Cursor.ID)
	}
	query += fmt.Sprintf(` ORDER BY started_at DESC, id DESC LIMIT %d;`, params.Size+1)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var workouts []Workout
	for rows.Next() {
		var w Workout
		if err := rows.Scan(
			&w.ID, &w.ActivityType, &w.StartedAt, &w.EndedAt, &w.Source,
			&w.DistanceMeters, &w.Calories, &w.AvgHeartRate, &w.MaxHeartRate,
		); err != nil {
			return nil, nil, fmt.Errorf("rows scan: %w", err)
		}
		workouts = append(workouts, w)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var next *Cursor
	if len(workouts) > params.Size {
		workouts = workouts[:params.Size]
		last := workouts[len(workouts)-1]
		next = &Cursor{StartedAt: last.StartedAt, ID: last.ID}
	}

	return workouts, next, nil
}

// ListSince returns all workouts started after the given time, oldest
// first. Used by the backup service to pick up where the last backup
// file ended.
func (r *Repo) ListSince(ctx context.Context, since time.Time) (_ []Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workout.listSince")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`SELECT id, activity_type, started_at, ended_at, source,
			distance_meters, calories, avg_heart_rate, max_heart_rate
		FROM workout
		WHERE started_at > $1
		ORDER BY started_at ASC, id ASC;`,
		since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workouts []Workout
	for rows.Next() {
		var w Workout
		if err := rows.Scan(
			&w.ID, &w.ActivityType, &w.StartedAt, &w.EndedAt, &w.Source,
			&w.DistanceMeters, &w.Calories, &w.AvgHeartRate, &w.MaxHeartRate,
		); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		workouts = append(workouts, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return workouts, nil
}

func (r *Repo) GetByID(ctx context.Context, id string) (_ *Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workout.getById")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("workout.id", id))

	var (
		w           Workout
		streamsJson []byte
	)
	err = r.db.QueryRow(
		ctx,
		`SELECT id, activity_type, started_at, ended_at, source,
			distance_meters, calories, avg_heart_rate, max_heart_rate, streams
		FROM workout WHERE id = $1;`,
		id,
	).Scan(
		&w.ID, &w.ActivityType, &w.StartedAt, &w.EndedAt, &w.Source,
		&w.DistanceMeters, &w.Calories, &w.AvgHeartRate, &w.MaxHeartRate, &streamsJson,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWorkoutNotFound
		}
		return nil, err
	}

	if len(streamsJson) > 0 {
		var s streams
		if err := json.Unmarshal(streamsJson, &s); err != nil {
			return nil, fmt.Errorf("unmarshal streams: %w", err)
		}
		w.HeartRate = s.HeartRate
		w.Speed = s.Speed
		w.Cadence = s.Cadence
		w.Track = s.Track
	}

	return &w, nil
}

func (r *Repo) Stats(ctx context.Context, from, to time.Time) (_ *Stats, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workout.stats")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var stats Stats
	err = r.db.QueryRow(
		ctx,
		`SELECT
			COUNT(*),
			COALESCE(SUM(distance_meters), 0),
			COALESCE(SUM(EXTRACT(EPOCH FROM (ended_at - started_at))), 0),
			COALESCE(SUM(calories), 0),
			COALESCE(AVG(avg_heart_rate) FILTER (WHERE avg_heart_rate > 0), 0)::int
		FROM workout
		WHERE started_at >= $1 AND started_at < $2;`,
		from, to,
	).Scan(
		&stats.TotalWorkouts,
		&stats.TotalDistanceMeters,
		&stats.TotalDurationSec,
		&stats.TotalCalories,
		&stats.AvgHeartRate,
	)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(
		ctx,
		`SELECT
			activity_type,
			COUNT(*),
			COALESCE(SUM(distance_meters), 0),
			COALESCE(SUM(EXTRACT(EPOCH FROM (ended_at - started_at))), 0)
		FROM workout
		WHERE started_at >= $1 AND started_at < $2
		GROUP BY activity_type
		ORDER BY COUNT(*) DESC;`,
		from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var as ActivityStats
		if err := rows.Scan(
			&as.ActivityType, &as.Workouts, &as.DistanceMeters, &as.DurationSec,
		); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		stats.PerActivity = append(stats.PerActivity, as)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &stats, nil
}
