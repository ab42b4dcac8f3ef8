// Package section defines frequent sections: stretches of path shared
// by many activities, regardless of whether the full routes match.
package section

import (
	"time"

	"github.com/paulmach/orb"

	"github.com/rotblauer/routecat/types/route"
)

// ActivityPortion locates one activity's pass over a section, as index
// bounds into the activity's own track.
type ActivityPortion struct {
	ActivityID string `json:"activity_id"`
	StartIdx   int    `json:"start_idx"`
	EndIdx     int    `json:"end_idx"`

	// DistanceMeters is the pass length, never more than the full
	// track's length.
	DistanceMeters float64 `json:"distance_meters"`

	Direction route.Direction `json:"direction"`
}

// FrequentSection is a detected shared stretch of path.
type FrequentSection struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Sport string `json:"sport"`

	// Polyline is the consensus geometry.
	Polyline orb.LineString `json:"polyline"`

	// Distance is the consensus polyline length, meters.
	Distance float64 `json:"distance"`

	ActivityIDs []string          `json:"activity_ids"`
	Portions    []ActivityPortion `json:"portions,omitempty"`

	// VisitCount equals len(ActivityIDs), kept explicit for clients.
	VisitCount int `json:"visit_count"`

	// RouteIDs are the route groups whose members traverse this
	// section.
	RouteIDs []string `json:"route_ids,omitempty"`

	// MedoidActivityID is the trace the consensus was anchored on.
	MedoidActivityID string `json:"medoid_activity_id,omitempty"`

	// Confidence in [0,1]: observation support plus consensus
	// tightness.
	Confidence float64 `json:"confidence"`

	// ObservationCount is total passes, which can exceed the activity
	// count on out-and-back routes.
	ObservationCount int `json:"observation_count"`

	// AverageSpread is the mean distance (meters) from member traces
	// to the consensus.
	AverageSpread float64 `json:"average_spread"`

	// PointDensity is per-consensus-point visit counts, used by the
	// high-traffic splitter.
	PointDensity []int `json:"point_density,omitempty"`

	// Scale names the detection scale preset that produced this
	// section. Empty for single-scale detection.
	Scale string `json:"scale,omitempty"`

	Bound orb.Bound `json:"bound"`

	FirstVisit time.Time `json:"first_visit,omitempty"`
	LastVisit  time.Time `json:"last_visit,omitempty"`
}

// PotentialSection is a cluster seen too few times to qualify as a
// section yet.
type PotentialSection struct {
	ID                  string         `json:"id"`
	Sport               string         `json:"sport"`
	Polyline            orb.LineString `json:"polyline"`
	Distance            float64        `json:"distance"`
	ActivityIDs         []string       `json:"activity_ids"`
	ObservationCount    int            `json:"observation_count"`
	Scale               string         `json:"scale,omitempty"`
	MissingObservations int            `json:"missing_observations"`
}

// DetectionStats summarizes one detection run.
type DetectionStats struct {
	ActivitiesProcessed int            `json:"activities_processed"`
	OverlapsFound       int            `json:"overlaps_found"`
	SectionsByScale     map[string]int `json:"sections_by_scale"`
	PotentialsByScale   map[string]int `json:"potentials_by_scale"`
	Elapsed             time.Duration  `json:"elapsed"`
}

// MultiScaleResult is the output of a full detection run.
type MultiScaleResult struct {
	Sections   []*FrequentSection  `json:"sections"`
	Potentials []*PotentialSection `json:"potentials,omitempty"`
	Stats      DetectionStats      `json:"stats"`
}
