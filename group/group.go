// Package group clusters route signatures into route groups: sets of
// activities judged to be the same route.
package group

import (
	"log/slog"
	"math"
	"runtime"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rotblauer/routecat/geo"
	"github.com/rotblauer/routecat/geo/sindex"
	"github.com/rotblauer/routecat/match"
	"github.com/rotblauer/routecat/params"
	"github.com/rotblauer/routecat/types/route"
)

// medoidExactLimit is the member count up to which the representative
// is found by exhaustive pairwise comparison.
const medoidExactLimit = 30

// medoidSampleSize is how many members each candidate is scored
// against above the exact limit.
const medoidSampleSize = 10

// Grouper clusters signatures using a shared comparator, so pairwise
// results are reused across full and incremental runs.
type Grouper struct {
	cmp *match.Comparator
}

func NewGrouper(cmp *match.Comparator) *Grouper {
	if cmp == nil {
		cmp = match.NewComparator(nil)
	}
	return &Grouper{cmp: cmp}
}

// ShouldGroup applies the strict same-route gate. All checks are
// cheap-first so the expensive AMD comparison runs only on plausible
// pairs.
func (g *Grouper) ShouldGroup(a, b *route.Signature) bool {
	cfg := g.cmp.Config()

	if a.Distance < cfg.MinRouteDistance || b.Distance < cfg.MinRouteDistance {
		return false
	}

	maxDist := math.Max(a.Distance, b.Distance)
	if maxDist > 0 && math.Abs(a.Distance-b.Distance)/maxDist > cfg.MaxDistanceDiffRatio {
		return false
	}

	if !endpointsPair(a, b, cfg.EndpointThreshold) {
		return false
	}

	if !middlePointsMatch(a, b, cfg) {
		return false
	}

	return g.cmp.Compare(a, b).MatchPercent >= cfg.MinMatchPercent
}

// endpointsPair checks start/end pairing forward or reversed. Two
// loops compare starts only, a loop's "end" carries no information.
func endpointsPair(a, b *route.Signature, threshold float64) bool {
	if a.IsLoop(threshold) && b.IsLoop(threshold) {
		return geo.Haversine(a.Start, b.Start) <= threshold
	}
	forward := geo.Haversine(a.Start, b.Start) <= threshold &&
		geo.Haversine(a.End, b.End) <= threshold
	if forward {
		return true
	}
	return geo.Haversine(a.Start, b.End) <= threshold &&
		geo.Haversine(a.End, b.Start) <= threshold
}

// middlePointsMatch samples both routes at 25/50/75% of arc length and
// requires each pair within twice the endpoint threshold, forward or
// reversed.
func middlePointsMatch(a, b *route.Signature, cfg *params.MatchConfig) bool {
	ra := geo.Resample(a.Points, cfg.ResampleCount)
	rb := geo.Resample(b.Points, cfg.ResampleCount)
	if len(ra) < 4 || len(rb) < 4 {
		return true
	}
	threshold := 2 * cfg.EndpointThreshold

	quarters := []float64{0.25, 0.5, 0.75}
	forward, reverse := true, true
	for _, q := range quarters {
		ia := int(q * float64(len(ra)-1))
		ib := int(q * float64(len(rb)-1))
		if geo.Haversine(ra[ia], rb[ib]) > threshold {
			forward = false
		}
		if geo.Haversine(ra[ia], rb[len(rb)-1-ib]) > threshold {
			reverse = false
		}
	}
	return forward || reverse
}

// Group clusters signatures from scratch.
func (g *Grouper) Group(sigs []*route.Signature) []*route.Group {
	groups, _ := g.GroupWithMatches(sigs)
	return groups
}

// GroupWithMatches clusters signatures and also returns the match
// edges that joined them.
func (g *Grouper) GroupWithMatches(sigs []*route.Signature) ([]*route.Group, []route.Match) {
	if len(sigs) == 0 {
		return nil, nil
	}
	started := time.Now()

	idx := sindex.New()
	byID := make(map[string]int, len(sigs))
	for i, s := range sigs {
		idx.Insert(s.ActivityID, geo.Bound(s.Points, params.SpatialTolerance))
		byID[s.ActivityID] = i
	}

	// The spatial index is not safe for concurrent queries; gather
	// candidate pairs first, then shard the expensive comparisons.
	type pair struct{ i, j int }
	var pairs []pair
	for i, a := range sigs {
		for _, otherID := range idx.Query(geo.Bound(a.Points, 0)) {
			j, ok := byID[otherID]
			if !ok || j <= i {
				continue
			}
			if !distanceRatioOK(a, sigs[j]) {
				continue
			}
			pairs = append(pairs, pair{i, j})
		}
	}

	matched := make([]bool, len(pairs))
	matches := make([]route.Match, len(pairs))
	var next atomic.Int64
	var eg errgroup.Group
	for w := 0; w < runtime.GOMAXPROCS(0); w++ {
		eg.Go(func() error {
			for {
				n := int(next.Add(1)) - 1
				if n >= len(pairs) {
					return nil
				}
				a, b := sigs[pairs[n].i], sigs[pairs[n].j]
				if g.ShouldGroup(a, b) {
					matched[n] = true
					matches[n] = g.cmp.Compare(a, b)
				}
			}
		})
	}
	_ = eg.Wait()

	// Unions run in pair order so component membership, and with it
	// group ids, stay deterministic.
	uf := newUnionFind(len(sigs))
	var edges []route.Match
	for n := range pairs {
		if matched[n] {
			uf.union(pairs[n].i, pairs[n].j)
			edges = append(edges, matches[n])
		}
	}

	var groups []*route.Group
	for _, members := range uf.components() {
		groups = append(groups, g.buildGroup(sigs, members, ""))
	}
	sortGroups(groups)

	slog.Debug("Grouped routes",
		"signatures", len(sigs), "groups", len(groups),
		"pairs", len(pairs), "elapsed", time.Since(started).Round(time.Millisecond))
	return groups, edges
}

// Incremental folds new signatures into existing groups. Existing
// group ids are stable: a new activity joining a group keeps the
// group's id, only brand-new clusters get new ids.
func (g *Grouper) Incremental(existing []*route.Group, all map[string]*route.Signature, newIDs []string) []*route.Group {
	if len(newIDs) == 0 {
		return existing
	}

	// Copy groups so callers keep their snapshots.
	groups := make([]*route.Group, 0, len(existing))
	for _, grp := range existing {
		cp := *grp
		cp.ActivityIDs = append([]string(nil), grp.ActivityIDs...)
		groups = append(groups, &cp)
	}

	var loners []string
	for _, id := range newIDs {
		sig, ok := all[id]
		if !ok {
			continue
		}
		best := -1
		bestPct := 0.0
		for gi, grp := range groups {
			rep, ok := all[grp.RepresentativeID]
			if !ok || !g.ShouldGroup(sig, rep) {
				continue
			}
			if pct := g.cmp.Compare(sig, rep).MatchPercent; pct > bestPct {
				best, bestPct = gi, pct
			}
		}
		if best >= 0 {
			groups[best].ActivityIDs = append(groups[best].ActivityIDs, id)
			continue
		}
		loners = append(loners, id)
	}

	// Cluster the leftovers among themselves.
	var lonerSigs []*route.Signature
	for _, id := range loners {
		if sig, ok := all[id]; ok {
			lonerSigs = append(lonerSigs, sig)
		}
	}
	groups = append(groups, g.Group(lonerSigs)...)

	// Rebuild derived fields of any group that changed.
	for i, grp := range groups {
		members := make([]int, 0, len(grp.ActivityIDs))
		sigs := make([]*route.Signature, 0, len(grp.ActivityIDs))
		for _, id := range grp.ActivityIDs {
			if sig, ok := all[id]; ok {
				members = append(members, len(sigs))
				sigs = append(sigs, sig)
			}
		}
		rebuilt := g.buildGroup(sigs, members, grp.ID)
		rebuilt.Name = grp.Name
		groups[i] = rebuilt
	}
	sortGroups(groups)
	return groups
}

// Rebuild recomputes a group's derived fields after membership
// changes. Returns nil when the group has no surviving members.
func (g *Grouper) Rebuild(grp *route.Group, all map[string]*route.Signature) *route.Group {
	var sigs []*route.Signature
	for _, id := range grp.ActivityIDs {
		if sig, ok := all[id]; ok {
			sigs = append(sigs, sig)
		}
	}
	if len(sigs) == 0 {
		return nil
	}
	members := make([]int, len(sigs))
	for i := range sigs {
		members[i] = i
	}
	rebuilt := g.buildGroup(sigs, members, grp.ID)
	rebuilt.Name = grp.Name
	return rebuilt
}

func (g *Grouper) buildGroup(sigs []*route.Signature, members []int, id string) *route.Group {
	ids := make([]string, 0, len(members))
	var sumDist float64
	for _, m := range members {
		ids = append(ids, sigs[m].ActivityID)
		sumDist += sigs[m].Distance
	}
	sort.Strings(ids)
	if id == "" {
		id = "group_" + ids[0]
	}

	bound := sigs[members[0]].Bound
	for _, m := range members[1:] {
		bound = bound.Union(sigs[m].Bound)
	}

	return &route.Group{
		ID:               id,
		ActivityIDs:      ids,
		RepresentativeID: g.medoid(sigs, members),
		Bound:            bound,
		Distance:         sumDist / float64(len(members)),
	}
}

// medoid picks the member with the highest mean match percentage to
// the others. Large groups score candidates against a sample.
func (g *Grouper) medoid(sigs []*route.Signature, members []int) string {
	if len(members) == 1 {
		return sigs[members[0]].ActivityID
	}

	others := members
	if len(members) > medoidExactLimit {
		step := len(members) / medoidSampleSize
		sampled := make([]int, 0, medoidSampleSize)
		for i := 0; i < len(members); i += step {
			sampled = append(sampled, members[i])
		}
		others = sampled
	}

	bestID := sigs[members[0]].ActivityID
	bestScore := -1.0
	for _, m := range members {
		var sum float64
		n := 0
		for _, o := range others {
			if o == m {
				continue
			}
			sum += g.cmp.Compare(sigs[m], sigs[o]).MatchPercent
			n++
		}
		if n == 0 {
			continue
		}
		if score := sum / float64(n); score > bestScore {
			bestScore, bestID = score, sigs[m].ActivityID
		}
	}
	return bestID
}

func distanceRatioOK(a, b *route.Signature) bool {
	lo, hi := a.Distance, b.Distance
	if lo > hi {
		lo, hi = hi, lo
	}
	if hi == 0 {
		return false
	}
	return lo/hi >= params.MinDistanceRatio
}

func sortGroups(groups []*route.Group) {
	sort.Slice(groups, func(i, j int) bool {
		if len(groups[i].ActivityIDs) != len(groups[j].ActivityIDs) {
			return len(groups[i].ActivityIDs) > len(groups[j].ActivityIDs)
		}
		return groups[i].ID < groups[j].ID
	})
}
