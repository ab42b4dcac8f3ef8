// Package activity defines the GPS activity types the engine ingests.
package activity

import (
	"errors"
	"time"

	"github.com/paulmach/orb"
)

var ErrTooFewPoints = errors.New("activity: too few points")

// Activity is one recorded GPS activity. Track is ordered
// chronologically. TimeStream, when present, holds cumulative elapsed
// seconds per track point and must be the same length as Track.
type Activity struct {
	ID    string         `json:"id"`
	Sport string         `json:"sport"`
	Track orb.LineString `json:"track"`

	// TimeStream is cumulative seconds since the first point.
	TimeStream []float64 `json:"time_stream,omitempty"`

	// MovingTime is total moving seconds, used for performance
	// estimates when no time stream was recorded.
	MovingTime float64 `json:"moving_time,omitempty"`

	StartTime time.Time `json:"start_time,omitempty"`
}

// Meta is the always-in-memory slice of an activity: everything but
// the track itself.
type Meta struct {
	ID         string    `json:"id"`
	Sport      string    `json:"sport"`
	Points     int       `json:"points"`
	Distance   float64   `json:"distance"`
	Bound      orb.Bound `json:"bound"`
	StartTime  time.Time `json:"start_time,omitempty"`
	MovingTime float64   `json:"moving_time,omitempty"`
	HasTimes   bool      `json:"has_times"`
}

// Validate rejects activities the engine cannot build a signature for.
func (a *Activity) Validate() error {
	if len(a.Track) < 2 {
		return ErrTooFewPoints
	}
	if len(a.TimeStream) > 0 && len(a.TimeStream) != len(a.Track) {
		return errors.New("activity: time stream length mismatch")
	}
	return nil
}

// ElapsedBetween returns seconds elapsed between two track indices,
// or false when no time stream was recorded.
func (a *Activity) ElapsedBetween(i, j int) (float64, bool) {
	if len(a.TimeStream) == 0 || i < 0 || j >= len(a.TimeStream) || j < i {
		return 0, false
	}
	return a.TimeStream[j] - a.TimeStream[i], true
}
