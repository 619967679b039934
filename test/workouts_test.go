package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/paceriz/paceriz/internal/workout"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *IntegrationTestSuite) deleteAllWorkouts(ctx context.Context) {
	_, err := s.dbPool.Exec(ctx, "DELETE FROM workout")
	require.NoError(s.T(), err)
}

func testWorkout(startedAt time.Time) workout.Workout {
	return workout.Workout{
		ActivityType:   workout.ActivityRunning,
		StartedAt:      startedAt,
		EndedAt:        startedAt.Add(30 * time.Minute),
		Source:         gofakeit.AppName(),
		DistanceMeters: gofakeit.Float64Range(1000, 15000),
		Calories:       gofakeit.Float64Range(100, 900),
		AvgHeartRate:   gofakeit.Number(120, 170),
		MaxHeartRate:   gofakeit.Number(170, 195),
	}
}

func (s *IntegrationTestSuite) uploadWorkoutsRequest(
	ctx context.Context,
	workouts []workout.Workout,
) workout.UploadResponse {
	workoutsJson, err := json.Marshal(workouts)
	require.NoError(s.T(), err)

	req, err := http.NewRequestWithContext(
		ctx,
		"POST", fmt.Sprintf("%s/workout/v2/workouts", serverEndpoint),
		bytes.NewReader(workoutsJson),
	)
	require.NoError(s.T(), err)
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("X-PACERIZ-SYNCER-SECRET", testSyncerSecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	require.NoError(s.T(), err)
	require.Equal(s.T(), http.StatusCreated, resp.StatusCode)
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	require.NoError(s.T(), err)

	var uploadResp workout.UploadResponse
	require.NoError(s.T(), json.Unmarshal(respBytes, &uploadResp))

	return uploadResp
}

func (s *IntegrationTestSuite) listWorkoutsRequest(
	ctx context.Context,
	token string,
	cursor string,
	size int,
) workout.ListResponse {
	url := fmt.Sprintf("%s/workout/v2/workouts?size=%d", serverEndpoint, size)
	if cursor != "" {
		url += "&cursor=" + cursor
	}

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	require.NoError(s.T(), err)
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.httpClient.Do(req)
	require.NoError(s.T(), err)
	require.Equal(s.T(), http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()

	var listResp workout.ListResponse
	require.NoError(s.T(), json.NewDecoder(resp.Body).Decode(&listResp))

	return listResp
}

func (s *IntegrationTestSuite) TestWorkouts_uploadAndGet() {
	ctx := context.Background()
	s.deleteAllWorkouts(ctx)

	startedAt := time.Now().Add(-2 * time.Hour).UTC().Truncate(time.Second)
	w := testWorkout(startedAt)

	uploadResp := s.uploadWorkoutsRequest(ctx, []workout.Workout{w})
	require.Equal(s.T(), 1, uploadResp.Added)
	require.Equal(s.T(), 0, uploadResp.Skipped)
	require.Len(s.T(), uploadResp.Workouts, 1)

	expectedID := workout.ComputeID(w.StartedAt, w.EndedAt, w.ActivityType)
	assert.Equal(s.T(), expectedID, uploadResp.Workouts[0])

	// re-uploading the same workout is a no-op
	uploadResp = s.uploadWorkoutsRequest(ctx, []workout.Workout{w})
	assert.Equal(s.T(), 0, uploadResp.Added)
	assert.Equal(s.T(), 1, uploadResp.Skipped)

	token := doLogin(ctx, s.T())
	req, err := http.NewRequestWithContext(
		ctx,
		"GET", fmt.Sprintf("%s/workout/v2/workouts/%s", serverEndpoint, expectedID),
		nil,
	)
	require.NoError(s.T(), err)
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.httpClient.Do(req)
	require.NoError(s.T(), err)
	require.Equal(s.T(), http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()

	var stored workout.Workout
	require.NoError(s.T(), json.NewDecoder(resp.Body).Decode(&stored))
	assert.Equal(s.T(), expectedID, stored.ID)
	assert.Equal(s.T(), workout.ActivityRunning, stored.ActivityType)
	assert.True(s.T(), w.StartedAt.Equal(stored.StartedAt))
	assert.Equal(s.T(), w.Source, stored.Source)
}

func (s *IntegrationTestSuite) TestWorkouts_getUnknown() {
	ctx := context.Background()
	token := doLogin(ctx, s.T())

	req, err := http.NewRequestWithContext(
		ctx,
		"GET", fmt.Sprintf("%s/workout/v2/workouts/%s", serverEndpoint, "0123456789abcdef"),
		nil,
	)
	require.NoError(s.T(), err)
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.httpClient.Do(req)
	require.NoError(s.T(), err)
	defer resp.Body.Close()
	assert.Equal(s.T(), http.StatusNotFound, resp.StatusCode)
}

func (s *IntegrationTestSuite) TestWorkouts_listPagination() {
	ctx := context.Background()
	s.deleteAllWorkouts(ctx)

	base := time.Now().Add(-24 * time.Hour).UTC().Truncate(time.Second)
	var workouts []workout.Workout
	for i := 0; i < 5; i++ {
		workouts = append(workouts, testWorkout(base.Add(time.Duration(i)*time.Hour)))
	}

	uploadResp := s.uploadWorkoutsRequest(ctx, workouts)
	require.Equal(s.T(), 5, uploadResp.Added)

	token := doLogin(ctx, s.T())

	// first page, newest workouts first
	page := s.listWorkoutsRequest(ctx, token, "", 2)
	require.Len(s.T(), page.Workouts, 2)
	require.NotEmpty(s.T(), page.NextCursor)
	assert.True(s.T(), page.Workouts[0].StartedAt.After(page.Workouts[1].StartedAt))

	seen := map[string]bool{
		page.Workouts[0].ID: true,
		page.Workouts[1].ID: true,
	}

	// walk the remaining pages through the cursor
	for page.NextCursor != "" {
		page = s.listWorkoutsRequest(ctx, token, page.NextCursor, 2)
		for _, w := range page.Workouts {
			require.False(s.T(), seen[w.ID], "workout %s returned twice", w.ID)
			seen[w.ID] = true
		}
	}

	assert.Len(s.T(), seen, 5)
}

func (s *IntegrationTestSuite) TestWorkouts_stats() {
	ctx := context.Background()
	s.deleteAllWorkouts(ctx)

	base := time.Now().Add(-48 * time.Hour).UTC().Truncate(time.Second)
	workouts := []workout.Workout{
		testWorkout(base),
		testWorkout(base.Add(time.Hour)),
		testWorkout(base.Add(2 * time.Hour)),
	}
	uploadResp := s.uploadWorkoutsRequest(ctx, workouts)
	require.Equal(s.T(), 3, uploadResp.Added)

	token := doLogin(ctx, s.T())

	from := base.Add(-time.Hour).Format(time.RFC3339)
	to := time.Now().UTC().Format(time.RFC3339)
	req, err := http.NewRequestWithContext(
		ctx,
		"GET", fmt.Sprintf("%s/workout/v2/stats?from=%s&to=%s", serverEndpoint, from, to),
		nil,
	)
	require.NoError(s.T(), err)
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.httpClient.Do(req)
	require.NoError(s.T(), err)
	require.Equal(s.T(), http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()

	var stats workout.Stats
	require.NoError(s.T(), json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(s.T(), 3, stats.TotalWorkouts)
	assert.InDelta(s.T(),
		workouts[0].DistanceMeters+workouts[1].DistanceMeters+workouts[2].DistanceMeters,
		stats.TotalDistanceMeters, 0.01)
	assert.InDelta(s.T(), 3*30*60, stats.TotalDurationSec, 0.01)
	assert.Positive(s.T(), stats.AvgHeartRate)

	require.Len(s.T(), stats.PerActivity, 1)
	assert.Equal(s.T(), workout.ActivityRunning, stats.PerActivity[0].ActivityType)
	assert.Equal(s.T(), 3, stats.PerActivity[0].Workouts)
}
