// Package match builds route signatures and compares them: average
// minimum distance, match percentage, and relative direction.
package match

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/simplify"

	"github.com/rotblauer/routecat/geo"
	"github.com/rotblauer/routecat/params"
	"github.com/rotblauer/routecat/types/activity"
	"github.com/rotblauer/routecat/types/route"
)

// NewSignature summarizes a track into a comparable signature.
// The stored distance is the length of the original track, not of the
// simplified one.
func NewSignature(activityID string, track orb.LineString, cfg *params.MatchConfig) (*route.Signature, error) {
	if len(track) < 2 {
		return nil, fmt.Errorf("%w: %s has %d points", activity.ErrTooFewPoints, activityID, len(track))
	}
	if cfg == nil {
		cfg = params.DefaultMatchConfig
	}

	simplified := simplify.DouglasPeucker(cfg.SimplifyTolerance).
		LineString(append(orb.LineString(nil), track...))
	simplified = capPoints(simplified, cfg.MaxSimplifiedPoints)

	return &route.Signature{
		ActivityID: activityID,
		Points:     simplified,
		Distance:   geo.Length(track),
		Start:      track[0],
		End:        track[len(track)-1],
		Bound:      track.Bound(),
		Center:     track.Bound().Center(),
	}, nil
}

// capPoints downsamples a line to at most max points by uniform index
// sampling, always keeping the first and last points.
func capPoints(line orb.LineString, max int) orb.LineString {
	if max < 2 || len(line) <= max {
		return line
	}
	out := make(orb.LineString, 0, max)
	step := float64(len(line)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		out = append(out, line[int(float64(i)*step+0.5)])
	}
	out[len(out)-1] = line[len(line)-1]
	return out
}

// NewSignaturesFromFlat builds signatures from a flat coordinate array
// and per-activity offsets, the wire shape batch importers produce.
// coords is [lng, lat, lng, lat, ...]; offsets[i] is the point index
// where activity i begins, with a final offset at the total count.
func NewSignaturesFromFlat(ids []string, coords []float64, offsets []int, cfg *params.MatchConfig) ([]*route.Signature, error) {
	if len(offsets) != len(ids)+1 {
		return nil, fmt.Errorf("match: %d ids need %d offsets, got %d", len(ids), len(ids)+1, len(offsets))
	}
	if len(coords)%2 != 0 {
		return nil, fmt.Errorf("match: odd coordinate count %d", len(coords))
	}
	total := len(coords) / 2

	sigs := make([]*route.Signature, 0, len(ids))
	for i, id := range ids {
		lo, hi := offsets[i], offsets[i+1]
		if lo < 0 || hi > total || lo > hi {
			return nil, fmt.Errorf("match: bad offsets [%d,%d) for %s", lo, hi, id)
		}
		line := make(orb.LineString, 0, hi-lo)
		for p := lo; p < hi; p++ {
			line = append(line, orb.Point{coords[2*p], coords[2*p+1]})
		}
		sig, err := NewSignature(id, line, cfg)
		if err != nil {
			return nil, err
		}
		sigs = append(sigs, sig)
	}
	return sigs, nil
}
