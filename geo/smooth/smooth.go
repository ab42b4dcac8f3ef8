// Package smooth runs a Kalman filter over raw GPS tracks before
// signature building, knocking down jitter without shortening the
// track.
package smooth

import (
	"log/slog"

	"github.com/paulmach/orb"
	rkalman "github.com/regnull/kalman"

	"github.com/rotblauer/routecat/geo"
)

const (
	// defaultSpeed seeds process noise when a track has no time stream.
	defaultSpeed = 5.0

	// accelNoise is expected speed change, meters per second squared.
	accelNoise = 1.0

	horizontalAccuracy = 10.0
)

func newGeoFilter(latitude, speed float64) (*rkalman.GeoFilter, error) {
	return rkalman.NewGeoFilter(&rkalman.GeoProcessNoise{
		// Measurements stay near one location, so the earth's
		// curvature can be disregarded.
		BaseLat:           latitude,
		DistancePerSecond: speed,
		SpeedPerSecond:    accelNoise,
	})
}

// Track filters a track point by point, returning estimates of the
// same length. timeStream is cumulative seconds per point and may be
// nil, in which case one second per point is assumed. Tracks too short
// to filter come back unchanged, as does the track when the filter
// cannot be initialized.
func Track(line orb.LineString, timeStream []float64) orb.LineString {
	if len(line) < 3 {
		return line
	}

	speed := defaultSpeed
	if len(timeStream) == len(line) {
		if elapsed := timeStream[len(timeStream)-1] - timeStream[0]; elapsed > 0 {
			speed = geo.Length(line) / elapsed
		}
	}

	filter, err := newGeoFilter(line[0].Lat(), speed)
	if err != nil {
		slog.Error("Kalman filter init failed", "error", err)
		return line
	}

	out := make(orb.LineString, 0, len(line))
	for i, p := range line {
		seconds := 1.0
		if len(timeStream) == len(line) && i > 0 {
			seconds = timeStream[i] - timeStream[i-1]
			if seconds <= 0 {
				seconds = 1.0
			}
		}
		err := filter.Observe(seconds, &rkalman.GeoObserved{
			Lat:                p.Lat(),
			Lng:                p.Lon(),
			Speed:              speed,
			SpeedAccuracy:      0.2,
			HorizontalAccuracy: horizontalAccuracy,
			VerticalAccuracy:   2.0,
		})
		if err != nil {
			slog.Error("Kalman.Observe failed", "error", err)
			out = append(out, p)
			continue
		}
		est := filter.Estimate()
		if est == nil {
			out = append(out, p)
			continue
		}
		out = append(out, orb.Point{est.Lng, est.Lat})
	}
	return out
}
