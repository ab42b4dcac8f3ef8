// Package engine ties the matching, grouping, and section-detection
// pipelines to persistent state. One Engine owns one data directory;
// mutations are serialized behind a single writer lock and queries read
// the in-memory indexes it maintains.
package engine

import (
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/paulmach/orb"

	"github.com/rotblauer/routecat/geo/sindex"
	"github.com/rotblauer/routecat/group"
	"github.com/rotblauer/routecat/match"
	"github.com/rotblauer/routecat/params"
	"github.com/rotblauer/routecat/state"
	"github.com/rotblauer/routecat/types/activity"
	"github.com/rotblauer/routecat/types/route"
	"github.com/rotblauer/routecat/types/section"
)

var (
	ErrActivityExists   = errors.New("engine: activity already stored")
	ErrActivityNotFound = errors.New("engine: activity not found")
	ErrSectionNotFound  = errors.New("engine: section not found")
	ErrGroupNotFound    = errors.New("engine: group not found")
)

const (
	nameKeyGroup   = "group/"
	nameKeySection = "section/"

	metaKeySectionsDirty = "sections_dirty"
	metaKeyLastDetection = "last_detection"
)

// Engine is the persistent route-matching engine. Safe for concurrent
// use.
type Engine struct {
	cfg *params.EngineConfig

	store  *state.Store
	caches *state.Caches
	cmp    *match.Comparator
	grp    *group.Grouper

	mu sync.Mutex

	sigs       map[string]*route.Signature
	metas      map[string]*activity.Meta
	groups     []*route.Group
	sections   []*section.FrequentSection
	potentials []*section.PotentialSection
	names      map[string]string
	sidx       *sindex.Index

	sectionsDirty bool
	lastDetection time.Time
	heat          *heatState

	task *DetectionTask

	logger *slog.Logger
}

// Open opens the engine at cfg.DataDir, creating the database when
// absent, and loads all persisted state into memory.
func Open(cfg *params.EngineConfig) (*Engine, error) {
	if cfg == nil {
		cfg = params.DefaultEngineConfig()
	}
	if cfg.Match == nil {
		cfg.Match = params.DefaultMatchConfig
	} else if err := cfg.Match.Validate(); err != nil {
		slog.Warn("Invalid match config, using defaults", "error", err)
		cfg.Match = params.DefaultMatchConfig
	}
	if cfg.Detection == nil {
		cfg.Detection = params.DefaultDetectionConfig()
	} else if err := cfg.Detection.Validate(); err != nil {
		slog.Warn("Invalid detection config, using defaults", "error", err)
		cfg.Detection = params.DefaultDetectionConfig()
	}

	store, err := state.Open(filepath.Join(cfg.DataDir, params.EngineDBName), false)
	if err != nil {
		return nil, err
	}
	caches, err := state.NewCaches()
	if err != nil {
		store.Close()
		return nil, err
	}

	cmp := match.NewComparator(cfg.Match)
	e := &Engine{
		cfg:    cfg,
		store:  store,
		caches: caches,
		cmp:    cmp,
		grp:    group.NewGrouper(cmp),
		sigs:   make(map[string]*route.Signature),
		metas:  make(map[string]*activity.Meta),
		names:  make(map[string]string),
		sidx:   sindex.New(),
		heat:   &heatState{},
		logger: slog.With("pkg", "engine"),
	}
	if err := e.load(); err != nil {
		store.Close()
		return nil, err
	}
	e.logger.Info("Engine opened", "datadir", cfg.DataDir,
		"activities", len(e.metas), "groups", len(e.groups), "sections", len(e.sections))
	return e, nil
}

func (e *Engine) load() error {
	sigs, err := state.AllJSON[*route.Signature](e.store, params.SignaturesBucket)
	if err != nil {
		return err
	}
	for _, sig := range sigs {
		e.sigs[sig.ActivityID] = sig
	}

	metas, err := state.AllJSON[*activity.Meta](e.store, params.ActivitiesBucket)
	if err != nil {
		return err
	}
	for _, m := range metas {
		e.metas[m.ID] = m
	}

	if e.groups, err = state.AllJSON[*route.Group](e.store, params.GroupsBucket); err != nil {
		return err
	}
	if e.sections, err = state.AllJSON[*section.FrequentSection](e.store, params.SectionsBucket); err != nil {
		return err
	}
	if e.potentials, err = state.AllJSON[*section.PotentialSection](e.store, params.PotentialsBucket); err != nil {
		return err
	}

	err = e.store.ForEach(params.NamesBucket, func(k, v []byte) error {
		e.names[string(k)] = string(v)
		return nil
	})
	if err != nil {
		return err
	}
	e.applyNamesLocked()
	e.applyGroupSportsLocked()

	for _, s := range e.sections {
		e.sidx.Insert(s.ID, s.Bound)
	}

	dirty, err := state.GetJSON[bool](e.store, params.MetaBucket, metaKeySectionsDirty)
	if err != nil && !errors.Is(err, state.ErrNotFound) {
		return err
	}
	e.sectionsDirty = dirty
	if len(e.sections) == 0 && len(e.metas) > 0 {
		e.sectionsDirty = true
	}

	last, err := state.GetJSON[time.Time](e.store, params.MetaBucket, metaKeyLastDetection)
	if err != nil && !errors.Is(err, state.ErrNotFound) {
		return err
	}
	e.lastDetection = last
	return nil
}

// Close stops any background detection and closes the database.
func (e *Engine) Close() error {
	e.mu.Lock()
	task := e.task
	e.mu.Unlock()
	if task != nil {
		task.Cancel()
		task.wait()
	}
	return e.store.Close()
}

// applyNamesLocked overlays custom names onto groups and sections so
// they survive regrouping and re-detection.
func (e *Engine) applyNamesLocked() {
	for _, g := range e.groups {
		if name, ok := e.names[nameKeyGroup+g.ID]; ok {
			g.Name = name
		}
	}
	for _, s := range e.sections {
		if name, ok := e.names[nameKeySection+s.ID]; ok {
			s.Name = name
		}
	}
}

// applyGroupSportsLocked stamps each group with its representative's
// sport. Signatures don't carry sport, so grouping can't do it.
func (e *Engine) applyGroupSportsLocked() {
	for _, g := range e.groups {
		if meta, ok := e.metas[g.RepresentativeID]; ok {
			g.Sport = meta.Sport
		}
	}
}

func (e *Engine) markDirtyLocked() {
	e.sectionsDirty = true
	e.heat.invalidate()
	if err := state.PutJSON(e.store, params.MetaBucket, metaKeySectionsDirty, true); err != nil {
		e.logger.Error("Failed to persist dirty flag", "error", err)
	}
}

// persistGroupsLocked rewrites the groups bucket to match memory.
func (e *Engine) persistGroupsLocked() error {
	if err := e.store.DropBucket(params.GroupsBucket); err != nil {
		return err
	}
	for _, g := range e.groups {
		if err := state.PutJSON(e.store, params.GroupsBucket, g.ID, g); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) persistSectionsLocked() error {
	if err := e.store.DropBucket(params.SectionsBucket); err != nil {
		return err
	}
	for _, s := range e.sections {
		if err := state.PutJSON(e.store, params.SectionsBucket, s.ID, s); err != nil {
			return err
		}
	}
	if err := e.store.DropBucket(params.PotentialsBucket); err != nil {
		return err
	}
	for _, p := range e.potentials {
		if err := state.PutJSON(e.store, params.PotentialsBucket, p.ID, p); err != nil {
			return err
		}
	}
	return nil
}

// track loads an activity's raw track, through the cache.
func (e *Engine) track(id string) (orb.LineString, error) {
	if line, ok := e.caches.Tracks.Get(id); ok {
		return line, nil
	}
	line, err := state.GetJSON[orb.LineString](e.store, params.TracksBucket, id)
	if err != nil {
		return nil, err
	}
	e.caches.Tracks.Add(id, line)
	return line, nil
}

func (e *Engine) timeStream(id string) []float64 {
	ts, err := state.GetJSON[[]float64](e.store, params.TimeStreamsBucket, id)
	if err != nil {
		return nil
	}
	return ts
}

// loadActivity reassembles a full activity from its stored parts.
func (e *Engine) loadActivity(id string) (*activity.Activity, error) {
	meta, ok := e.metas[id]
	if !ok {
		return nil, ErrActivityNotFound
	}
	track, err := e.track(id)
	if err != nil {
		return nil, err
	}
	return &activity.Activity{
		ID:         id,
		Sport:      meta.Sport,
		Track:      track,
		TimeStream: e.timeStream(id),
		MovingTime: meta.MovingTime,
		StartTime:  meta.StartTime,
	}, nil
}
