package match

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/rotblauer/routecat/geo"
	"github.com/rotblauer/routecat/params"
	"github.com/rotblauer/routecat/types/route"
)

// AverageMinDistance returns the symmetric AMD between two polylines
// in meters: each line is resampled to n points by arc length, then
// every point is matched to its nearest counterpart on the other line
// and the distances averaged over both directions.
func AverageMinDistance(a, b orb.LineString, n int) float64 {
	ra := geo.Resample(a, n)
	rb := geo.Resample(b, n)
	if len(ra) == 0 || len(rb) == 0 {
		return math.Inf(1)
	}
	return (directedMean(ra, rb) + directedMean(rb, ra)) / 2
}

func directedMean(from, to orb.LineString) float64 {
	var sum float64
	for _, p := range from {
		best := math.Inf(1)
		for _, q := range to {
			if d := geo.Haversine(p, q); d < best {
				best = d
			}
		}
		sum += best
	}
	return sum / float64(len(from))
}

// amdToPercent maps AMD to a match percentage, linear between the
// perfect and zero thresholds.
func amdToPercent(amd float64, cfg *params.MatchConfig) float64 {
	switch {
	case amd <= cfg.PerfectThreshold:
		return 100.0
	case amd >= cfg.ZeroThreshold:
		return 0.0
	default:
		return 100.0 * (cfg.ZeroThreshold - amd) / (cfg.ZeroThreshold - cfg.PerfectThreshold)
	}
}

// Compare computes the match between two signatures.
func Compare(a, b *route.Signature, cfg *params.MatchConfig) route.Match {
	if cfg == nil {
		cfg = params.DefaultMatchConfig
	}
	amd := AverageMinDistance(a.Points, b.Points, cfg.ResampleCount)
	pct := amdToPercent(amd, cfg)

	return route.Match{
		ActivityID:      a.ActivityID,
		OtherActivityID: b.ActivityID,
		MatchPercent:    pct,
		AMD:             amd,
		Direction:       direction(a, b, pct, cfg),
	}
}

// direction decides orientation by endpoint pairing. Loops have no
// meaningful direction and report as same. Reverse must win the
// endpoint pairing by a clear margin, GPS jitter alone should never
// flip it. Weak matches are partial regardless of orientation.
func direction(a, b *route.Signature, matchPercent float64, cfg *params.MatchConfig) route.Direction {
	if a.IsLoop(cfg.EndpointThreshold) && b.IsLoop(cfg.EndpointThreshold) {
		return route.DirectionSame
	}
	if matchPercent < params.PartialMatchLimit {
		return route.DirectionPartial
	}

	forward := geo.Haversine(a.Start, b.Start) + geo.Haversine(a.End, b.End)
	reverse := geo.Haversine(a.Start, b.End) + geo.Haversine(a.End, b.Start)

	if reverse+params.ReverseMargin < forward {
		return route.DirectionReverse
	}
	return route.DirectionSame
}
