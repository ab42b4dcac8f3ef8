package section

import (
	"sort"

	"github.com/paulmach/orb"

	"github.com/rotblauer/routecat/params"
)

// extractTrace returns the portion(s) of a track that run along a
// polyline, merged across passes. Out-and-back activities cross a
// section twice; both passes belong in the trace. Gaps up to
// TraceMaxGap points are bridged.
func extractTrace(track orb.LineString, idx *pointIndex, cfg *params.SectionConfig) orb.LineString {
	if len(track) < params.MinTracePoints {
		return nil
	}

	// Slightly padded threshold to catch GPS variation at the edges.
	threshold := cfg.ProximityThreshold * 1.2

	var sequences []orb.LineString
	var current orb.LineString
	gap := 0

	for _, p := range track {
		n, _ := idx.Nearest(p, threshold)
		if n >= 0 {
			gap = 0
			current = append(current, p)
			continue
		}
		gap++
		if gap <= params.TraceMaxGap && len(current) > 0 {
			current = append(current, p)
		} else if gap > params.TraceMaxGap {
			if len(current) >= params.MinTracePoints {
				sequences = append(sequences, current)
			}
			current = nil
			gap = 0
		}
	}
	if len(current) >= params.MinTracePoints {
		sequences = append(sequences, current)
	}

	switch len(sequences) {
	case 0:
		return nil
	case 1:
		return sequences[0]
	}

	// Order passes by where they start along the polyline before
	// concatenating.
	type positioned struct {
		pos int
		seq orb.LineString
	}
	ordered := make([]positioned, 0, len(sequences))
	for _, seq := range sequences {
		pos, _ := idx.Nearest(seq[0], threshold)
		if pos < 0 {
			pos = 0
		}
		ordered = append(ordered, positioned{pos: pos, seq: seq})
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].pos < ordered[j].pos })

	var merged orb.LineString
	for _, o := range ordered {
		merged = append(merged, o.seq...)
	}
	return merged
}
