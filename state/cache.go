package state

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/paulmach/orb"

	"github.com/rotblauer/routecat/params"
)

// Caches fronts the store for the hot read paths. Tracks are read on
// portion, heatmap, and performance queries; consensus polylines,
// keyed by group id, on group route queries.
type Caches struct {
	Tracks    *lru.Cache[string, orb.LineString]
	Consensus *lru.Cache[string, orb.LineString]
}

func NewCaches() (*Caches, error) {
	tracks, err := lru.New[string, orb.LineString](params.TrackCacheSize)
	if err != nil {
		return nil, err
	}
	consensus, err := lru.New[string, orb.LineString](params.ConsensusCacheSize)
	if err != nil {
		return nil, err
	}
	return &Caches{Tracks: tracks, Consensus: consensus}, nil
}

// Invalidate drops everything cached for one activity.
func (c *Caches) Invalidate(activityID string) {
	c.Tracks.Remove(activityID)
}

// Purge empties every cache.
func (c *Caches) Purge() {
	c.Tracks.Purge()
	c.Consensus.Purge()
}
