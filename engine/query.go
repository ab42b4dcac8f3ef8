package engine

import (
	"sort"
	"time"

	"github.com/paulmach/orb"

	"github.com/rotblauer/routecat/heatmap"
	"github.com/rotblauer/routecat/params"
	"github.com/rotblauer/routecat/perf"
	"github.com/rotblauer/routecat/types/activity"
	"github.com/rotblauer/routecat/types/route"
	"github.com/rotblauer/routecat/types/section"
)

// Groups returns all route groups, largest first.
func (e *Engine) Groups() []*route.Group {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.groupsSnapshotLocked()
}

func (e *Engine) groupsSnapshotLocked() []*route.Group {
	out := make([]*route.Group, len(e.groups))
	for i, g := range e.groups {
		cp := *g
		cp.ActivityIDs = append([]string(nil), g.ActivityIDs...)
		out[i] = &cp
	}
	return out
}

// GroupFor returns the group containing an activity.
func (e *Engine) GroupFor(activityID string) (*route.Group, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.metas[activityID]; !ok {
		return nil, ErrActivityNotFound
	}
	for _, g := range e.groups {
		if g.Contains(activityID) {
			cp := *g
			cp.ActivityIDs = append([]string(nil), g.ActivityIDs...)
			return &cp, nil
		}
	}
	return nil, ErrGroupNotFound
}

// ConsensusRoute returns the polyline that stands for a whole group:
// the representative (medoid) member's track. Served from the
// consensus cache, which mutations purge.
func (e *Engine) ConsensusRoute(groupID string) (orb.LineString, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var found *route.Group
	for _, g := range e.groups {
		if g.ID == groupID {
			found = g
			break
		}
	}
	if found == nil {
		return nil, ErrGroupNotFound
	}

	line, ok := e.caches.Consensus.Get(groupID)
	if !ok {
		var err error
		if line, err = e.track(found.RepresentativeID); err != nil {
			return nil, err
		}
		e.caches.Consensus.Add(groupID, line)
	}
	out := make(orb.LineString, len(line))
	copy(out, line)
	return out, nil
}

// MatchesFor compares one activity against every other stored
// activity, returning nonzero matches sorted best first.
func (e *Engine) MatchesFor(activityID string) ([]route.Match, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sig, ok := e.sigs[activityID]
	if !ok {
		return nil, ErrActivityNotFound
	}
	var matches []route.Match
	for id, other := range e.sigs {
		if id == activityID {
			continue
		}
		if m := e.cmp.Compare(sig, other); m.MatchPercent > 0 {
			matches = append(matches, m)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].MatchPercent != matches[j].MatchPercent {
			return matches[i].MatchPercent > matches[j].MatchPercent
		}
		return matches[i].OtherActivityID < matches[j].OtherActivityID
	})
	return matches, nil
}

// Activity returns one stored activity, fully reassembled.
func (e *Engine) Activity(id string) (*activity.Activity, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadActivity(id)
}

// Activities returns metadata for every stored activity, sorted by id.
func (e *Engine) Activities() []*activity.Meta {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*activity.Meta, 0, len(e.metas))
	for _, m := range e.metas {
		cp := *m
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ActivitiesInViewport returns metadata for activities whose bounds
// intersect the viewport, sorted by id.
func (e *Engine) ActivitiesInViewport(viewport orb.Bound) []*activity.Meta {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []*activity.Meta
	for _, m := range e.metas {
		if !m.Bound.Intersects(viewport) {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Sections returns all frequent sections, re-detecting first when
// activities changed since the last detection. A background detection
// in flight suppresses the synchronous recompute.
func (e *Engine) Sections() ([]*section.FrequentSection, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sectionsDirty && e.task == nil {
		if err := e.detectLocked(); err != nil {
			return nil, err
		}
	}
	return e.sectionsSnapshotLocked(), nil
}

func (e *Engine) sectionsSnapshotLocked() []*section.FrequentSection {
	out := make([]*section.FrequentSection, len(e.sections))
	for i, s := range e.sections {
		cp := *s
		out[i] = &cp
	}
	return out
}

// Section returns one section by id.
func (e *Engine) Section(id string) (*section.FrequentSection, error) {
	sections, err := e.Sections()
	if err != nil {
		return nil, err
	}
	for _, s := range sections {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, ErrSectionNotFound
}

// SectionsInViewport returns sections whose bounds intersect the
// viewport, using the spatial index.
func (e *Engine) SectionsInViewport(viewport orb.Bound) ([]*section.FrequentSection, error) {
	sections, err := e.Sections()
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	ids := e.sidx.Query(viewport)
	e.mu.Unlock()

	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := make([]*section.FrequentSection, 0, len(ids))
	for _, s := range sections {
		if want[s.ID] {
			out = append(out, s)
		}
	}
	return out, nil
}

// PotentialSections returns clusters still short of the minimum
// activity count.
func (e *Engine) PotentialSections() ([]*section.PotentialSection, error) {
	if _, err := e.Sections(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*section.PotentialSection, len(e.potentials))
	for i, p := range e.potentials {
		cp := *p
		out[i] = &cp
	}
	return out, nil
}

// Laps returns one activity's passes over a section.
func (e *Engine) Laps(sectionID, activityID string) ([]section.Lap, error) {
	sec, err := e.Section(sectionID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	act, err := e.loadActivity(activityID)
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return perf.Laps(sec, act), nil
}

// Performances ranks every member activity's laps over a section.
func (e *Engine) Performances(sectionID string) (*section.PerformanceResult, error) {
	sec, err := e.Section(sectionID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	activities := make(map[string]*activity.Activity, len(sec.ActivityIDs))
	for _, id := range sec.ActivityIDs {
		act, err := e.loadActivity(id)
		if err != nil {
			continue
		}
		activities[id] = act
	}
	e.mu.Unlock()

	return perf.Aggregate(sec, activities), nil
}

type heatState struct {
	h     *heatmap.Heatmap
	valid bool
}

func (hs *heatState) invalidate() {
	hs.valid = false
	hs.h = nil
}

// heatmapLocked returns the cached default heatmap, building it when
// stale.
func (e *Engine) heatmapLocked(cfg *params.HeatmapConfig) (*heatmap.Heatmap, error) {
	def := cfg == nil
	if def {
		cfg = params.DefaultHeatmapConfig
		if e.heat.valid {
			return e.heat.h, nil
		}
	}

	tracks := make([]heatmap.Track, 0, len(e.metas))
	for id, meta := range e.metas {
		line, err := e.track(id)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, heatmap.Track{
			ID:        id,
			Sport:     meta.Sport,
			RouteID:   e.routeIDLocked(id),
			Line:      line,
			StartTime: meta.StartTime,
		})
	}
	h := heatmap.Build(tracks, cfg)
	if def {
		e.heat.h = h
		e.heat.valid = true
	}
	return h, nil
}

func (e *Engine) routeIDLocked(activityID string) string {
	for _, g := range e.groups {
		if g.Contains(activityID) {
			return g.ID
		}
	}
	return ""
}

// Heatmap returns the visit grid, busiest cells first. A nil config
// uses defaults and is served from cache.
func (e *Engine) Heatmap(cfg *params.HeatmapConfig) ([]*heatmap.Cell, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, err := e.heatmapLocked(cfg)
	if err != nil {
		return nil, err
	}
	return h.Cells(), nil
}

// HeatmapAt describes the traffic at one point, with a human label.
func (e *Engine) HeatmapAt(p orb.Point) (*heatmap.Cell, string, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, err := e.heatmapLocked(nil)
	if err != nil {
		return nil, "", false, err
	}
	cell, label, ok := h.At(p)
	return cell, label, ok, nil
}

// Stats summarizes the engine's contents.
type Stats struct {
	Activities     int            `json:"activities"`
	Groups         int            `json:"groups"`
	Sections       int            `json:"sections"`
	Potentials     int            `json:"potentials"`
	Sports         map[string]int `json:"sports"`
	TotalDistance  float64        `json:"total_distance"`
	SectionsDirty  bool           `json:"sections_dirty"`
	LastDetection  time.Time      `json:"last_detection"`
	MatchCacheHits uint64         `json:"match_cache_hits"`
	MatchCacheMiss uint64         `json:"match_cache_misses"`
}

func (e *Engine) Stats() *Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := &Stats{
		Activities:    len(e.metas),
		Groups:        len(e.groups),
		Sections:      len(e.sections),
		Potentials:    len(e.potentials),
		Sports:        make(map[string]int),
		SectionsDirty: e.sectionsDirty,
		LastDetection: e.lastDetection,
	}
	for _, m := range e.metas {
		s.Sports[m.Sport]++
		s.TotalDistance += m.Distance
	}
	s.MatchCacheHits, s.MatchCacheMiss = e.cmp.Stats()
	return s
}
