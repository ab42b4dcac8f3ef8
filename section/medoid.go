package section

import (
	"sort"

	"github.com/paulmach/orb"

	"github.com/rotblauer/routecat/match"
	"github.com/rotblauer/routecat/params"
)

// medoidTrace picks the trace most central to the cluster: the one
// with the lowest mean AMD to the others. Beyond MedoidExactLimit
// traces, each candidate is scored against a uniform sample instead of
// the full set.
func medoidTrace(traces map[string]orb.LineString, samples int) string {
	if len(traces) == 0 {
		return ""
	}

	ids := make([]string, 0, len(traces))
	for id := range traces {
		ids = append(ids, id)
	}
	if len(ids) == 1 {
		return ids[0]
	}
	sort.Strings(ids)

	others := ids
	if len(ids) > params.MedoidExactLimit {
		step := len(ids) / params.MedoidExactLimit
		sampled := make([]string, 0, params.MedoidExactLimit)
		for i := 0; i < len(ids); i += step {
			sampled = append(sampled, ids[i])
		}
		others = sampled
	}

	bestID := ids[0]
	bestScore := -1.0
	for _, id := range ids {
		var sum float64
		n := 0
		for _, other := range others {
			if other == id {
				continue
			}
			sum += match.AverageMinDistance(traces[id], traces[other], samples)
			n++
		}
		if n == 0 {
			continue
		}
		score := sum / float64(n)
		if bestScore < 0 || score < bestScore {
			bestScore, bestID = score, id
		}
	}
	return bestID
}
