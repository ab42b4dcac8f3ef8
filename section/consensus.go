package section

import (
	"math"

	"github.com/montanaflynn/stats"
	"github.com/paulmach/orb"

	"github.com/rotblauer/routecat/geo"
	"github.com/rotblauer/routecat/params"
)

// consensusResult carries the averaged geometry and its quality.
type consensusResult struct {
	polyline orb.LineString

	// spread is the mean distance (meters) from contributing trace
	// points to the consensus.
	spread float64

	// density is the number of traces contributing per consensus
	// point.
	density []int
}

// buildConsensus averages member traces around the medoid. The medoid
// is resampled to a fixed point count; each reference point is then
// pulled toward the inverse-distance-weighted centroid of the nearest
// points of the other traces. Traces farther than twice the proximity
// threshold at a reference point do not contribute there.
func buildConsensus(medoid orb.LineString, traces map[string]orb.LineString, medoidID string, cfg *params.SectionConfig) consensusResult {
	refs := geo.Resample(medoid, cfg.ConsensusSamples)
	out := make(orb.LineString, len(refs))
	density := make([]int, len(refs))
	reach := 2 * cfg.ProximityThreshold

	indexes := make(map[string]*pointIndex, len(traces))
	for id, trace := range traces {
		if id == medoidID {
			continue
		}
		indexes[id] = newPointIndex(trace, reach)
	}

	var spreads []float64
	for i, ref := range refs {
		sumLng := ref.Lon()
		sumLat := ref.Lat()
		sumW := 1.0
		contributors := 1

		for id, idx := range indexes {
			n, d := idx.Nearest(ref, reach)
			if n < 0 {
				continue
			}
			p := traces[id][n]
			w := 1.0 / (1.0 + d)
			sumLng += p.Lon() * w
			sumLat += p.Lat() * w
			sumW += w
			contributors++
			spreads = append(spreads, d)
		}

		out[i] = orb.Point{sumLng / sumW, sumLat / sumW}
		density[i] = contributors
	}

	spread := 0.0
	if len(spreads) > 0 {
		if m, err := stats.Mean(stats.Float64Data(spreads)); err == nil {
			spread = m
		}
	}

	return consensusResult{polyline: out, spread: spread, density: density}
}

// confidence blends observation support and consensus tightness, each
// contributing half.
func confidence(observations int, spread float64, cfg *params.SectionConfig) float64 {
	support := math.Min(float64(observations), 10) / 10
	tightness := math.Max(0, 1-spread/cfg.ProximityThreshold)
	return 0.5*support + 0.5*tightness
}
