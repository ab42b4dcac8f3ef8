package match

import (
	"fmt"
	"sync/atomic"

	"github.com/jellydator/ttlcache/v3"
	"github.com/mitchellh/hashstructure/v2"

	"github.com/rotblauer/routecat/params"
	"github.com/rotblauer/routecat/types/route"
)

// Comparator memoizes pairwise comparisons. Grouping revisits the same
// pairs across incremental runs, and comparisons dominate its cost.
type Comparator struct {
	cfg     *params.MatchConfig
	cfgHash string
	cache   *ttlcache.Cache[string, route.Match]

	hits, misses atomic.Uint64
}

func NewComparator(cfg *params.MatchConfig) *Comparator {
	if cfg == nil {
		cfg = params.DefaultMatchConfig
	}
	hash, err := hashstructure.Hash(cfg, hashstructure.FormatV2, nil)
	if err != nil {
		hash = 0
	}
	c := &Comparator{
		cfg:     cfg,
		cfgHash: fmt.Sprintf("%d", hash),
		cache: ttlcache.New[string, route.Match](
			ttlcache.WithTTL[string, route.Match](params.MatchCacheTTL),
			ttlcache.WithCapacity[string, route.Match](params.MatchCacheSize)),
	}
	return c
}

func (c *Comparator) Config() *params.MatchConfig { return c.cfg }

// Compare returns the cached or freshly computed match of a against b.
// The cache key is orientation-independent, a flipped result is
// reconstructed on the way out.
func (c *Comparator) Compare(a, b *route.Signature) route.Match {
	lo, hi := a.ActivityID, b.ActivityID
	flipped := false
	if lo > hi {
		lo, hi = hi, lo
		flipped = true
	}
	key := lo + "|" + hi + "|" + c.cfgHash

	if item := c.cache.Get(key); item != nil {
		c.hits.Add(1)
		m := item.Value()
		if flipped {
			m.ActivityID, m.OtherActivityID = a.ActivityID, b.ActivityID
		}
		return m
	}
	c.misses.Add(1)

	var m route.Match
	if flipped {
		m = Compare(b, a, c.cfg)
	} else {
		m = Compare(a, b, c.cfg)
	}
	c.cache.Set(key, m, ttlcache.DefaultTTL)

	if flipped {
		m.ActivityID, m.OtherActivityID = a.ActivityID, b.ActivityID
	}
	return m
}

// Purge empties the comparison cache.
func (c *Comparator) Purge() {
	c.cache.DeleteAll()
}

// Stats reports cache hit/miss counters.
func (c *Comparator) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}
