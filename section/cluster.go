package section

import (
	"github.com/rotblauer/routecat/geo"
	"github.com/rotblauer/routecat/params"
)

// geometrySamples is how many points of an overlap are checked against
// a cluster seed when deciding membership.
const geometrySamples = 10

// geometryMatchMin is the fraction of samples that must land within
// twice the proximity threshold.
const geometryMatchMin = 0.5

// cluster is a set of overlaps describing the same physical stretch.
type cluster struct {
	overlaps []*overlap
	seed     *overlap
}

// activityIDs returns the distinct activities observed in the cluster.
func (c *cluster) activityIDs() []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, ov := range c.overlaps {
		for _, id := range []string{ov.activityID, ov.otherID} {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// clusterOverlaps greedily groups overlaps around seeds. Membership
// needs both a close center and matching geometry, two parallel
// streets can have nearby centers without sharing a path.
func clusterOverlaps(overlaps []*overlap, cfg *params.SectionConfig) []*cluster {
	var clusters []*cluster

	for _, ov := range overlaps {
		placed := false
		for _, c := range clusters {
			if geo.Haversine(ov.center, c.seed.center) > cfg.ClusterTolerance {
				continue
			}
			if !geometryMatches(ov, c.seed, cfg) {
				continue
			}
			c.overlaps = append(c.overlaps, ov)
			placed = true
			break
		}
		if !placed {
			clusters = append(clusters, &cluster{seed: ov, overlaps: []*overlap{ov}})
		}
	}
	return clusters
}

// geometryMatches samples points of a and requires at least half of
// them within twice the proximity threshold of b.
func geometryMatches(a, b *overlap, cfg *params.SectionConfig) bool {
	samples := geo.Resample(a.polyline, geometrySamples)
	idx := newPointIndex(b.polyline, 2*cfg.ProximityThreshold)

	matched := 0
	for _, p := range samples {
		if n, _ := idx.Nearest(p, 2*cfg.ProximityThreshold); n >= 0 {
			matched++
		}
	}
	return float64(matched) >= geometryMatchMin*float64(len(samples))
}
