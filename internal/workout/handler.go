package workout

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/paceriz/paceriz/internal/telemetry/metrics"
	"github.com/paceriz/paceriz/internal/telemetry/tracing"
	"github.com/paceriz/paceriz/pkg"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=workout_test

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

type workoutsRepo interface {
	Add(ctx context.Context, w Workout) (_ *Workout, created bool, err error)
	List(ctx context.Context, params ListParams) (_ []Workout, next *Cursor, err error)
	GetByID(ctx context.Context, id string) (*Workout, error)
	Stats(ctx context.Context, from, to time.Time) (*Stats, error)
}

type UploadResponse struct {
	Added    int      `json:"added"`
	Skipped  int      `json:"skipped"`
	Workouts []string `json:"workouts"`
}

type ListResponse struct {
	Workouts   []Workout `json:"workouts"`
	NextCursor string    `json:"nextCursor,omitempty"`
}

type Handler struct {
	repo           workoutsRepo
	metricsManager *metrics.Manager
}

func NewHandler(repo workoutsRepo, metricsManager *metrics.Manager) *Handler {
	return &Handler{
		repo:           repo,
		metricsManager: metricsManager,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	workoutsRouter := router.PathPrefix("/workout/v2").Subrouter()
	workoutsRouter.HandleFunc("/workouts", handler.HandleUpload).Methods("POST", "OPTIONS").Name("workout-upload")
	workoutsRouter.HandleFunc("/workouts", handler.HandleList).Methods("GET").Name("workout-list")
	workoutsRouter.HandleFunc("/workouts/{id}", handler.HandleGet).Methods("GET").Name("workout-get")
	workoutsRouter.HandleFunc("/stats", handler.HandleStats).Methods("GET").Name("workout-stats")
}

// HandleUpload accepts a single workout object or an array of them.
func (handler *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workout.upload")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		log.Tracef("upload workout, read json body: %s", err)
		http.Error(w, "upload workout failed", http.StatusBadRequest)
		return
	}

	var workouts []Workout
	if len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &workouts); err != nil {
			log.Tracef("upload workouts, unmarshal json params: %s", err)
			http.Error(w, "upload workout failed", http.StatusBadRequest)
			return
		}
	} else {
		var workout Workout
		if err := json.Unmarshal(raw, &workout); err != nil {
			log.Tracef("upload workout, unmarshal json params: %s", err)
			http.Error(w, "upload workout failed", http.StatusBadRequest)
			return
		}
		workouts = []Workout{workout}
	}

	if len(workouts) == 0 {
		http.Error(w, "error, no workouts given", http.StatusBadRequest)
		return
	}

	var uploadResponse UploadResponse
	for i := range workouts {
		workout := workouts[i]
		if workout.StartedAt.IsZero() || workout.EndedAt.IsZero() {
			http.Error(w, "error, workout time range empty", http.StatusBadRequest)
			return
		}
		if workout.ActivityType == "" {
			workout.ActivityType = ActivityOther
		}

		added, created, err := handler.repo.Add(ctx, workout)
		if err != nil {
			log.Errorf("failed to add workout [%s]: %s", workout.ID, err)
			http.Error(w, "error, failed to add workout", http.StatusInternalServerError)
			return
		}

		if created {
			uploadResponse.Added++
			handler.metricsManager.CounterWorkoutsUploaded.Inc()
		} else {
			uploadResponse.Skipped++
			handler.metricsManager.CounterWorkoutsSkipped.Inc()
		}
		uploadResponse.Workouts = append(uploadResponse.Workouts, added.ID)
	}

	span.SetAttributes(attribute.Int("workouts.added", uploadResponse.Added))
	span.SetAttributes(attribute.Int("workouts.skipped", uploadResponse.Skipped))

	respJson, err := json.Marshal(uploadResponse)
	if err != nil {
		log.Errorf("failed to marshal upload response: %s", err)
		http.Error(w, "error, failed to add workout", http.StatusInternalServerError)
		return
	}

	log.Debugf("workouts uploaded: %d added, %d skipped", uploadResponse.Added, uploadResponse.Skipped)
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, respJson, http.StatusCreated)
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workout.list")
	defer span.End()

	size := defaultPageSize
	if sizeStr := r.URL.Query().Get("size"); sizeStr != "" {
		parsedSize, err := strconv.Atoi(sizeStr)
		if err != nil || parsedSize <= 0 {
			http.Error(w, "invalid size", http.StatusBadRequest)
			return
		}
		size = parsedSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	cursor, err := DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		log.Tracef("list workouts, decode cursor: %s", err)
		http.Error(w, "invalid cursor", http.StatusBadRequest)
		return
	}

	workouts, next, err := handler.repo.List(ctx, ListParams{
		Cursor: cursor,
		Size:   size,
	})
	if err != nil {
		log.Errorf("failed to list workouts: %s", err)
		http.Error(w, "error, failed to list workouts", http.StatusInternalServerError)
		return
	}

	listResponse := ListResponse{
		Workouts:   workouts,
		NextCursor: EncodeCursor(next),
	}
	if listResponse.Workouts == nil {
		listResponse.Workouts = []Workout{}
	}

	respJson, err := json.Marshal(listResponse)
	if err != nil {
		log.Errorf("failed to marshal workouts list: %s", err)
		http.Error(w, "error, failed to list workouts", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, respJson)
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workout.get")
	defer span.End()

	vars := mux.Vars(r)
	id := vars["id"]
	if id == "" {
		http.Error(w, "error, workout id empty", http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.String("workout.id", id))

	workout, err := handler.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrWorkoutNotFound) {
			http.Error(w, "workout not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to get workout [%s]: %s", id, err)
		http.Error(w, "error, failed to get workout", http.StatusInternalServerError)
		return
	}

	respJson, err := json.Marshal(workout)
	if err != nil {
		log.Errorf("failed to marshal workout [%s]: %s", id, err)
		http.Error(w, "error, failed to get workout", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, respJson)
}

func (handler *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workout.stats")
	defer span.End()

	to := time.Now()
	from := to.AddDate(0, -1, 0)
	if fromStr := r.URL.Query().Get("from"); fromStr != "" {
		parsedFrom, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			http.Error(w, "invalid from timestamp", http.StatusBadRequest)
			return
		}
		from = parsedFrom
	}
	if toStr := r.URL.Query().Get("to"); toStr != "" {
		parsedTo, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			http.Error(w, "invalid to timestamp", http.StatusBadRequest)
			return
		}
		to = parsedTo
	}

	stats, err := handler.repo.Stats(ctx, from, to)
	if err != nil {
		log.Errorf("failed to get workout stats: %s", err)
		http.Error(w, "error, failed to get stats", http.StatusInternalServerError)
		return
	}

	respJson, err := json.Marshal(stats)
	if err != nil {
		log.Errorf("failed to marshal workout stats: %s", err)
		http.Error(w, "error, failed to get stats", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, respJson)
}
