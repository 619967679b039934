package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/paceriz/paceriz/internal/telemetry/tracing"
	"github.com/paceriz/paceriz/internal/workout"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// Scanner picks up TCX and GPX exports dropped into a watched
// directory. It re-reads the directory on every call, deduplication is
// the upload tracker's job, not the scanner's. Files that fail to parse
// are moved aside into a rejected/ subdirectory so they do not clog
// every cycle.
type Scanner struct {
	watchDir    string
	rejectedDir string
}

func NewScanner(watchDir string) (*Scanner, error) {
	rejectedDir := filepath.Join(watchDir, "rejected")
	if err := os.MkdirAll(rejectedDir, 0o755); err != nil {
		return nil, err
	}
	return &Scanner{
		watchDir:    watchDir,
		rejectedDir: rejectedDir,
	}, nil
}

func (s *Scanner) PendingWorkouts(ctx context.Context) (_ []workout.Workout, err error) {
	_, span := tracing.GlobalSyncTracer.Start(ctx, "ingest.pendingWorkouts")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	files, err := os.ReadDir(s.watchDir)
	if err != nil {
		return nil, err
	}

	var workouts []workout.Workout
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(f.Name()))
		if ext != ".tcx" && ext != ".gpx" {
			continue
		}

		path := filepath.Join(s.watchDir, f.Name())
		w, err := ParseFile(path)
		if err != nil {
			log.Errorf("ingest, parse %s: %s", f.Name(), err)
			s.reject(f.Name())
			continue
		}

		workouts = append(workouts, *w)
	}

	span.SetAttributes(attribute.Int("workouts.count", len(workouts)))
	return workouts, nil
}

func (s *Scanner) reject(fileName string) {
	from := filepath.Join(s.watchDir, fileName)
	to := filepath.Join(s.rejectedDir, fileName)
	if err := os.Rename(from, to); err != nil {
		log.Errorf("ingest, move rejected file %s: %s", fileName, err)
	}
}
