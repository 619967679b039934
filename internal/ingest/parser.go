package ingest

import (
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/paceriz/paceriz/internal/workout"
)

// ParseFile parses a TCX or GPX activity export into a workout, picking
// the parser by file extension.
func ParseFile(path string) (*workout.Workout, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".tcx":
		return ParseTCX(f)
	case ".gpx":
		return ParseGPX(f)
	default:
		return nil, fmt.Errorf("unsupported activity file: %s", filepath.Base(path))
	}
}

type tcxDatabase struct {
	Activities struct {
		Activity []tcxActivity `xml:"Activity"`
	} `xml:"Activities"`
}

type tcxActivity struct {
	Sport string   `xml:"Sport,attr"`
	Laps  []tcxLap `xml:"Lap"`
}

type tcxLap struct {
	StartTime        string  `xml:"StartTime,attr"`
	TotalTimeSeconds float64 `xml:"TotalTimeSeconds"`
	DistanceMeters   float64 `xml:"DistanceMeters"`
	Calories         float64 `xml:"Calories"`
	Track            struct {
		Trackpoints []tcxTrackpoint `xml:"Trackpoint"`
	} `xml:"Track"`
}

type tcxTrackpoint struct {
	Time         string `xml:"Time"`
	HeartRateBpm tcxHR  `xml:"HeartRateBpm"`
	Position     struct {
		Lat float64 `xml:"LatitudeDegrees"`
		Lon float64 `xml:"LongitudeDegrees"`
	} `xml:"Position"`
	Altitude float64 `xml:"AltitudeMeters"`
}

type tcxHR struct {
	Value int `xml:"Value"`
}

func ParseTCX(r io.Reader) (*workout.Workout, error) {
	var tcx tcxDatabase
	if err := xml.NewDecoder(r).Decode(&tcx); err != nil {
		return nil, fmt.Errorf("decode tcx: %w", err)
	}

	if len(tcx.Activities.Activity) == 0 || len(tcx.Activities.Activity[0].Laps) == 0 {
		return nil, fmt.Errorf("no activity data found")
	}

	activity := tcx.Activities.Activity[0]

	w := &workout.Workout{
		ActivityType: mapTCXSport(activity.Sport),
		Source:       "tcx",
	}

	var totalDuration float64
	for _, lap := range activity.Laps {
		if w.StartedAt.IsZero() {
			if startedAt, err := time.Parse(time.RFC3339, lap.StartTime); err == nil {
				w.StartedAt = startedAt
			}
		}
		totalDuration += lap.TotalTimeSeconds
		w.DistanceMeters += lap.DistanceMeters
		w.Calories += lap.Calories

		for _, tp := range lap.Track.Trackpoints {
			tpTime, err := time.Parse(time.RFC3339, tp.Time)
			if err != nil {
				continue
			}
			if tp.HeartRateBpm.Value > 0 {
				w.HeartRate = append(w.HeartRate, workout.HeartRateSample{
					Timestamp: tpTime,
					BPM:       tp.HeartRateBpm.Value,
				})
			}
			if tp.Position.Lat != 0 || tp.Position.Lon != 0 {
				w.Track = append(w.Track, workout.TrackPoint{
					Timestamp: tpTime,
					Latitude:  tp.Position.Lat,
					Longitude: tp.Position.Lon,
					Elevation: tp.Altitude,
				})
			}
		}
	}

	if w.StartedAt.IsZero() {
		return nil, fmt.Errorf("no start time found")
	}
	w.EndedAt = w.StartedAt.Add(time.Duration(totalDuration * float64(time.Second)))

	finishWorkout(w)
	return w, nil
}

type gpxFile struct {
	Tracks []struct {
		Name     string `xml:"name"`
		Type     string `xml:"type"`
		Segments []struct {
			Points []gpxPoint `xml:"trkpt"`
		} `xml:"trkseg"`
	} `xml:"trk"`
}

type gpxPoint struct {
	Lat       float64 `xml:"lat,attr"`
	Lon       float64 `xml:"lon,attr"`
	Elevation float64 `xml:"ele"`
	Time      string  `xml:"time"`
	HR        int     `xml:"extensions>TrackPointExtension>hr"`
}

func ParseGPX(r io.Reader) (*workout.Workout, error) {
	var gpx gpxFile
	if err := xml.NewDecoder(r).Decode(&gpx); err != nil {
		return nil, fmt.Errorf("decode gpx: %w", err)
	}

	if len(gpx.Tracks) == 0 {
		return nil, fmt.Errorf("no track data found")
	}

	w := &workout.Workout{
		ActivityType: mapGPXType(gpx.Tracks[0].Type),
		Source:       "gpx",
	}

	var points []gpxPoint
	for _, track := range gpx.Tracks {
		for _, segment := range track.Segments {
			points = append(points, segment.Points...)
		}
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("no track points found")
	}

	for i, point := range points {
		pointTime, err := time.Parse(time.RFC3339, point.Time)
		if err != nil {
			continue
		}
		if w.StartedAt.IsZero() {
			w.StartedAt = pointTime
		}
		w.EndedAt = pointTime

		w.Track = append(w.Track, workout.TrackPoint{
			Timestamp: pointTime,
			Latitude:  point.Lat,
			Longitude: point.Lon,
			Elevation: point.Elevation,
		})
		if point.HR > 0 {
			w.HeartRate = append(w.HeartRate, workout.HeartRateSample{
				Timestamp: pointTime,
				BPM:       point.HR,
			})
		}

		if i > 0 {
			w.DistanceMeters += haversine(points[i-1].Lat, points[i-1].Lon, point.Lat, point.Lon)
		}
	}

	if w.StartedAt.IsZero() {
		return nil, fmt.Errorf("no timestamped track points found")
	}

	finishWorkout(w)
	return w, nil
}

// finishWorkout derives the ID and the heart rate summary once the
// samples are in place.
func finishWorkout(w *workout.Workout) {
	w.ID = workout.ComputeID(w.StartedAt, w.EndedAt, w.ActivityType)

	if len(w.HeartRate) == 0 {
		return
	}
	sum := 0
	for _, s := range w.HeartRate {
		sum += s.BPM
		if s.BPM > w.MaxHeartRate {
			w.MaxHeartRate = s.BPM
		}
	}
	w.AvgHeartRate = sum / len(w.HeartRate)
}

func mapTCXSport(sport string) workout.ActivityType {
	switch sport {
	case "Running":
		return workout.ActivityRunning
	case "Biking":
		return workout.ActivityCycling
	case "Walking":
		return workout.ActivityWalking
	case "Hiking":
		return workout.ActivityHiking
	default:
		return workout.ActivityOther
	}
}

func mapGPXType(gpxType string) workout.ActivityType {
	switch strings.ToLower(gpxType) {
	case "running", "run":
		return workout.ActivityRunning
	case "cycling", "biking", "ride":
		return workout.ActivityCycling
	case "walking", "walk":
		return workout.ActivityWalking
	case "hiking", "hike":
		return workout.ActivityHiking
	default:
		return workout.ActivityOther
	}
}

// haversine returns the distance in meters between two coordinates.
func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadius = 6371000.0

	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}
