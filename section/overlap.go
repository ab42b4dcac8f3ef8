package section

import (
	"time"

	"github.com/paulmach/orb"

	"github.com/rotblauer/routecat/geo"
	"github.com/rotblauer/routecat/params"
)

// minOverlapPoints is the minimum track points in an overlap run.
const minOverlapPoints = 10

// Input is one activity's track handed to the detector.
type Input struct {
	ID        string
	Sport     string
	Track     orb.LineString
	StartTime time.Time
}

// overlap is a maximal contiguous run of track A that stays within the
// proximity threshold of track B.
type overlap struct {
	activityID string
	otherID    string
	startIdx   int
	endIdx     int
	polyline   orb.LineString
	center     orb.Point
	length     float64
}

// findOverlaps walks track A against an index of track B and returns
// every qualifying run. Small gaps are tolerated, GPS dropouts should
// not split a single pass in two.
func findOverlaps(a *Input, b *Input, bIdx *pointIndex, cfg *params.SectionConfig) []*overlap {
	var out []*overlap

	runStart := -1
	gap := 0
	flush := func(end int) {
		if runStart < 0 {
			return
		}
		start := runStart
		runStart = -1
		if end-start+1 < minOverlapPoints {
			return
		}
		poly := a.Track[start : end+1]
		length := geo.Length(poly)
		if length < cfg.MinSectionLength {
			return
		}
		out = append(out, &overlap{
			activityID: a.ID,
			otherID:    b.ID,
			startIdx:   start,
			endIdx:     end,
			polyline:   poly,
			center:     poly.Bound().Center(),
			length:     length,
		})
	}

	lastNear := -1
	for i, p := range a.Track {
		if n, _ := bIdx.Nearest(p, cfg.ProximityThreshold); n >= 0 {
			if runStart < 0 {
				runStart = i
			}
			lastNear = i
			gap = 0
			continue
		}
		if runStart >= 0 {
			gap++
			if gap > params.TraceMaxGap {
				flush(lastNear)
				gap = 0
			}
		}
	}
	flush(lastNear)

	return out
}
