// Package route defines route signatures, pairwise match results, and
// route groups.
package route

import (
	"github.com/paulmach/orb"

	"github.com/rotblauer/routecat/geo"
)

// Direction relates the orientation of two matched routes.
type Direction string

const (
	DirectionSame    Direction = "same"
	DirectionReverse Direction = "reverse"
	DirectionPartial Direction = "partial"
)

// Signature is a compact, comparable summary of one activity's track.
type Signature struct {
	ActivityID string `json:"activity_id"`

	// Points is the simplified track, capped in size.
	Points orb.LineString `json:"points"`

	// Distance is the haversine length of the ORIGINAL track, meters.
	Distance float64 `json:"distance"`

	Start  orb.Point `json:"start"`
	End    orb.Point `json:"end"`
	Bound  orb.Bound `json:"bound"`
	Center orb.Point `json:"center"`
}

// IsLoop reports whether the route starts and ends within threshold
// meters of the same place.
func (s *Signature) IsLoop(thresholdMeters float64) bool {
	return geo.Haversine(s.Start, s.End) <= thresholdMeters
}

// Match is the result of comparing two routes.
type Match struct {
	ActivityID      string    `json:"activity_id"`
	OtherActivityID string    `json:"other_activity_id"`
	MatchPercent    float64   `json:"match_percent"`
	AMD             float64   `json:"amd"`
	Direction       Direction `json:"direction"`
}

// Group is a cluster of activities judged to be the same route.
type Group struct {
	ID string `json:"id"`

	// Name is a user-assigned label, empty until renamed.
	Name string `json:"name,omitempty"`

	// Sport is the representative member's sport.
	Sport string `json:"sport,omitempty"`

	ActivityIDs []string `json:"activity_ids"`

	// RepresentativeID is the medoid member.
	RepresentativeID string `json:"representative_id"`

	Bound orb.Bound `json:"bound"`

	// Distance is the mean member distance, meters.
	Distance float64 `json:"distance"`
}

func (g *Group) Contains(activityID string) bool {
	for _, id := range g.ActivityIDs {
		if id == activityID {
			return true
		}
	}
	return false
}
