package section

import "github.com/rotblauer/routecat/types/route"

// Lap is one timed pass of an activity over a section.
type Lap struct {
	ActivityID   string          `json:"activity_id"`
	StartIdx     int             `json:"start_idx"`
	EndIdx       int             `json:"end_idx"`
	Seconds      float64         `json:"seconds"`
	Distance     float64         `json:"distance"`
	PaceSecPerKm float64         `json:"pace_sec_per_km"`
	SpeedMps     float64         `json:"speed_mps"`
	Direction    route.Direction `json:"direction"`

	// IsEstimated marks laps derived from the proportional fallback
	// rather than a recorded time stream.
	IsEstimated bool `json:"is_estimated,omitempty"`
}

// PerformanceRecord aggregates one activity's laps over a section.
type PerformanceRecord struct {
	ActivityID  string          `json:"activity_id"`
	BestLap     Lap             `json:"best_lap"`
	AvgSeconds  float64         `json:"avg_seconds"`
	LapCount    int             `json:"lap_count"`
	Direction   route.Direction `json:"direction"`
	IsEstimated bool            `json:"is_estimated,omitempty"`
}

// DirectionStats aggregates laps run in one direction of a section.
type DirectionStats struct {
	Count       int     `json:"count"`
	BestSeconds float64 `json:"best_seconds"`
	AvgSeconds  float64 `json:"avg_seconds"`
}

// PerformanceResult ranks activity records over a section, best time
// first.
type PerformanceResult struct {
	SectionID string              `json:"section_id"`
	Records   []PerformanceRecord `json:"records"`
	Forward   DirectionStats      `json:"forward"`
	Reverse   DirectionStats      `json:"reverse"`
}
