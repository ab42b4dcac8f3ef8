package section

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/rotblauer/routecat/geo"
	"github.com/rotblauer/routecat/params"
	"github.com/rotblauer/routecat/types/route"
	"github.com/rotblauer/routecat/types/section"
)

// directionVoteMin is the fraction of index steps that must agree
// before a portion direction is called.
const directionVoteMin = 0.6

// findPortion locates the best pass of a track over a consensus
// polyline: the near-run whose length is closest to the consensus
// length, as index bounds into the track. Runs shorter than half the
// consensus do not qualify.
func findPortion(activityID string, track orb.LineString, consensus orb.LineString, idx *pointIndex, cfg *params.SectionConfig) (section.ActivityPortion, bool) {
	target := geo.Length(consensus)

	type run struct{ start, end int }
	var runs []run
	start := -1
	lastNear := -1
	gap := 0

	for i, p := range track {
		if n, _ := idx.Nearest(p, cfg.ProximityThreshold); n >= 0 {
			if start < 0 {
				start = i
			}
			lastNear = i
			gap = 0
			continue
		}
		if start >= 0 {
			gap++
			if gap > params.TraceMaxGap {
				runs = append(runs, run{start, lastNear})
				start = -1
				gap = 0
			}
		}
	}
	if start >= 0 {
		runs = append(runs, run{start, lastNear})
	}

	best := -1
	bestDiff := math.Inf(1)
	bestLen := 0.0
	for i, r := range runs {
		length := geo.Length(track[r.start : r.end+1])
		if length < 0.5*target {
			continue
		}
		if diff := math.Abs(length - target); diff < bestDiff {
			best, bestDiff, bestLen = i, diff, length
		}
	}
	if best < 0 {
		return section.ActivityPortion{}, false
	}

	r := runs[best]
	return section.ActivityPortion{
		ActivityID:     activityID,
		StartIdx:       r.start,
		EndIdx:         r.end,
		DistanceMeters: bestLen,
		Direction:      portionDirection(track[r.start:r.end+1], consensus, idx, cfg),
	}, true
}

// portionDirection votes on the monotonicity of nearest-consensus
// indices along the pass. A clear majority of increasing steps is
// forward, decreasing is reverse. Loops and noisy passes fall back to
// same.
func portionDirection(pass orb.LineString, consensus orb.LineString, idx *pointIndex, cfg *params.SectionConfig) route.Direction {
	if len(consensus) > 1 && geo.Haversine(consensus[0], consensus[len(consensus)-1]) <= cfg.ProximityThreshold {
		return route.DirectionSame
	}

	prev := -1
	increasing, decreasing := 0, 0
	for _, p := range pass {
		n, _ := idx.Nearest(p, cfg.ProximityThreshold)
		if n < 0 {
			continue
		}
		if prev >= 0 {
			switch {
			case n > prev:
				increasing++
			case n < prev:
				decreasing++
			}
		}
		prev = n
	}

	total := increasing + decreasing
	if total == 0 {
		return route.DirectionSame
	}
	switch {
	case float64(increasing) >= directionVoteMin*float64(total):
		return route.DirectionSame
	case float64(decreasing) >= directionVoteMin*float64(total):
		return route.DirectionReverse
	case decreasing > increasing:
		return route.DirectionReverse
	default:
		return route.DirectionSame
	}
}
