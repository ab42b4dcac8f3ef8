// Package sindex maintains an in-memory spatial index of route bounds
// using S2 cell coverings. It backs the grouping prefilter and the
// viewport queries, answering "which routes could possibly intersect
// this box" without touching track data.
package sindex

import (
	"fmt"
	"sync"

	"github.com/golang/geo/s2"
	"github.com/golang/groupcache/lru"
	"github.com/paulmach/orb"
)

// CellLevel trades index precision against cell fan-out. Level 13
// cells are roughly 1 km across at mid latitudes, which matches route
// bounding boxes well.
const CellLevel = 13

const maxCoveringCells = 16

// coveringCacheSize bounds the memoized covering computations. Bound
// boxes repeat heavily during incremental grouping.
const coveringCacheSize = 4096

// Index maps S2 cells at CellLevel to the IDs whose bounds cover them.
type Index struct {
	mu     sync.RWMutex
	cells  map[s2.CellID]map[string]struct{}
	bounds map[string]orb.Bound

	// coverings has its own lock, lru.Cache is not safe for
	// concurrent use.
	coverMu   sync.Mutex
	coverings *lru.Cache
}

func New() *Index {
	return &Index{
		cells:     make(map[s2.CellID]map[string]struct{}),
		bounds:    make(map[string]orb.Bound),
		coverings: lru.New(coveringCacheSize),
	}
}

func rectFromBound(b orb.Bound) s2.Rect {
	r := s2.EmptyRect()
	r = r.AddPoint(s2.LatLngFromDegrees(b.Min.Lat(), b.Min.Lon()))
	r = r.AddPoint(s2.LatLngFromDegrees(b.Max.Lat(), b.Max.Lon()))
	return r
}

func (x *Index) covering(b orb.Bound) s2.CellUnion {
	key := fmt.Sprintf("%.5f,%.5f,%.5f,%.5f", b.Min.Lon(), b.Min.Lat(), b.Max.Lon(), b.Max.Lat())
	x.coverMu.Lock()
	if v, ok := x.coverings.Get(key); ok {
		x.coverMu.Unlock()
		return v.(s2.CellUnion)
	}
	x.coverMu.Unlock()
	rc := &s2.RegionCoverer{MinLevel: CellLevel, MaxLevel: CellLevel, MaxCells: maxCoveringCells}
	cu := rc.Covering(rectFromBound(b))
	x.coverMu.Lock()
	x.coverings.Add(key, cu)
	x.coverMu.Unlock()
	return cu
}

// Insert adds or replaces id's bound.
func (x *Index) Insert(id string, b orb.Bound) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, ok := x.bounds[id]; ok {
		x.removeLocked(id)
	}
	x.bounds[id] = b
	for _, c := range x.covering(b) {
		set, ok := x.cells[c]
		if !ok {
			set = make(map[string]struct{})
			x.cells[c] = set
		}
		set[id] = struct{}{}
	}
}

// Remove drops id from the index. Unknown ids are a no-op.
func (x *Index) Remove(id string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.removeLocked(id)
}

func (x *Index) removeLocked(id string) {
	b, ok := x.bounds[id]
	if !ok {
		return
	}
	delete(x.bounds, id)
	for _, c := range x.covering(b) {
		if set, ok := x.cells[c]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(x.cells, c)
			}
		}
	}
}

// Query returns ids whose bounds may intersect b, verified against the
// stored bounds so no false positives from cell granularity escape.
func (x *Index) Query(b orb.Bound) []string {
	x.mu.RLock()
	defer x.mu.RUnlock()

	seen := make(map[string]struct{})
	var out []string
	for _, c := range x.covering(b) {
		for id := range x.cells[c] {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			if x.bounds[id].Intersects(b) {
				out = append(out, id)
			}
		}
	}
	return out
}

// Bound returns the stored bound for id.
func (x *Index) Bound(id string) (orb.Bound, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	b, ok := x.bounds[id]
	return b, ok
}

// Len returns the number of indexed ids.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.bounds)
}
