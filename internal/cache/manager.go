package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/paceriz/paceriz/internal/telemetry/metrics"
	"github.com/paceriz/paceriz/internal/workout"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"
)

const (
	ListTTL   = 7 * 24 * time.Hour
	DetailTTL = 24 * time.Hour
	StatsTTL  = 6 * time.Hour

	// RetentionWindow is how long workouts stay in the cached list
	// before the sweep drops them.
	RetentionWindow = 3 * 30 * 24 * time.Hour

	listFileName  = "workouts_list.json"
	statsFileName = "stats.json"
	detailsDir    = "details"

	hotCacheSizeBytes = 10 * 1024 * 1024
)

// entry wraps a cached payload with its write timestamp, checked
// against the TTL on every read.
type entry[T any] struct {
	CachedAt time.Time `json:"cachedAt"`
	Payload  T         `json:"payload"`
}

// Manager persists the workout list and stats as single JSON files and
// per-workout details as one file each, with a freecache layer in front
// of the detail files. Not safe for concurrent use by multiple
// processes, the sync daemon is the only writer.
type Manager struct {
	rootPath       string
	hot            *freecache.Cache
	metricsManager *metrics.Manager

	// injectable for tests
	NowFunc func() time.Time
}

func NewManager(rootPath string, metricsManager *metrics.Manager) (*Manager, error) {
	if err := os.MkdirAll(filepath.Join(rootPath, detailsDir), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dirs: %w", err)
	}
	return &Manager{
		rootPath:       rootPath,
		hot:            freecache.NewCache(hotCacheSizeBytes),
		metricsManager: metricsManager,
		NowFunc:        time.Now,
	}, nil
}

func (m *Manager) countAccess(kind string, hit bool) {
	if hit {
		m.metricsManager.CounterCacheHits.WithLabelValues(kind).Inc()
	} else {
		m.metricsManager.CounterCacheMisses.WithLabelValues(kind).Inc()
	}
}

// GetList returns the cached workout list, or false when the cache is
// cold or the list entry outlived its TTL.
func (m *Manager) GetList() ([]workout.Workout, bool) {
	e, ok := readEntry[[]workout.Workout](filepath.Join(m.rootPath, listFileName), ListTTL, m.NowFunc())
	m.countAccess("list", ok)
	if !ok {
		return nil, false
	}
	return e.Payload, true
}

func (m *Manager) SetList(workouts []workout.Workout) error {
	return writeEntry(filepath.Join(m.rootPath, listFileName), workouts, m.NowFunc())
}

// MergeIntoList merges incoming workouts into the cached list and
// persists the result. A cold or expired list is treated as empty.
func (m *Manager) MergeIntoList(incoming []workout.Workout) ([]workout.Workout, error) {
	existing, _ := m.GetList()
	merged := workout.Merge(existing, incoming)
	if err := m.SetList(merged); err != nil {
		return nil, err
	}
	return merged, nil
}

func (m *Manager) GetDetail(id string) (*workout.Workout, bool) {
	if cached, err := m.hot.Get(detailHotKey(id)); err == nil {
		var w workout.Workout
		if err := json.Unmarshal(cached, &w); err == nil {
			m.countAccess("detail", true)
			return &w, true
		}
	}

	e, ok := readEntry[workout.Workout](m.detailPath(id), DetailTTL, m.NowFunc())
	m.countAccess("detail", ok)
	if !ok {
		return nil, false
	}

	m.setHotDetail(&e.Payload)
	return &e.Payload, true
}

func (m *Manager) SetDetail(w *workout.Workout) error {
	if w.ID == "" {
		return errors.New("workout id empty")
	}
	if err := writeEntry(m.detailPath(w.ID), *w, m.NowFunc()); err != nil {
		return err
	}
	m.setHotDetail(w)
	return nil
}

func (m *Manager) GetStats() (*workout.Stats, bool) {
	e, ok := readEntry[workout.Stats](filepath.Join(m.rootPath, statsFileName), StatsTTL, m.NowFunc())
	m.countAccess("stats", ok)
	if !ok {
		return nil, false
	}
	return &e.Payload, true
}

func (m *Manager) SetStats(stats *workout.Stats) error {
	return writeEntry(filepath.Join(m.rootPath, statsFileName), *stats, m.NowFunc())
}

// Sweep drops workouts older than the retention window from the cached
// list and deletes expired detail files. Returns the number of removed
// list entries and detail files.
func (m *Manager) Sweep() (removedWorkouts, removedDetails int) {
	now := m.NowFunc()

	if existing, ok := m.GetList(); ok {
		cutoff := now.Add(-RetentionWindow)
		kept := make([]workout.Workout, 0, len(existing))
		for _, w := range existing {
			if w.StartedAt.Before(cutoff) {
				removedWorkouts++
				continue
			}
			kept = append(kept, w)
		}
		if removedWorkouts > 0 {
			if err := m.SetList(kept); err != nil {
				log.Errorf("cache sweep, persist swept list: %s", err)
			}
		}
	}

	detailFiles, err := os.ReadDir(filepath.Join(m.rootPath, detailsDir))
	if err != nil {
		log.Errorf("cache sweep, read details dir: %s", err)
		return removedWorkouts, removedDetails
	}

	for _, f := range detailFiles {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		path := filepath.Join(m.rootPath, detailsDir, f.Name())

		if _, fresh := readEntry[workout.Workout](path, DetailTTL, now); fresh {
			continue
		}
		if err := os.Remove(path); err != nil {
			log.Errorf("cache sweep, remove %s: %s", path, err)
			continue
		}
		removedDetails++
	}

	log.Debugf("cache sweep done: %d list entries, %d detail files removed", removedWorkouts, removedDetails)
	return removedWorkouts, removedDetails
}

func (m *Manager) detailPath(id string) string {
	return filepath.Join(m.rootPath, detailsDir, id+".json")
}

func detailHotKey(id string) []byte {
	return []byte("detail::" + id)
}

func (m *Manager) setHotDetail(w *workout.Workout) {
	wJson, err := json.Marshal(w)
	if err != nil {
		return
	}
	if err := m.hot.Set(detailHotKey(w.ID), wJson, int(DetailTTL.Seconds())); err != nil {
		// an oversized detail simply stays disk-only
		log.Tracef("hot cache set [%s]: %s", w.ID, err)
	}
}

// readEntry loads and TTL-checks a cache entry file. The second return
// value is false for missing, corrupt or expired entries.
func readEntry[T any](path string, ttl time.Duration, now time.Time) (*entry[T], bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Errorf("cache read %s: %s", path, err)
		}
		return nil, false
	}

	var e entry[T]
	if err := json.Unmarshal(data, &e); err != nil {
		log.Errorf("cache read %s, unmarshal: %s", path, err)
		return nil, false
	}

	return &e, now.Sub(e.CachedAt) <= ttl
}

func writeEntry[T any](path string, payload T, now time.Time) error {
	data, err := json.Marshal(entry[T]{
		CachedAt: now,
		Payload:  payload,
	})
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return os.Rename(tmpPath, path)
}
