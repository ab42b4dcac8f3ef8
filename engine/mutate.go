package engine

import (
	"time"

	"github.com/rotblauer/routecat/events"
	"github.com/rotblauer/routecat/geo"
	"github.com/rotblauer/routecat/geo/sindex"
	"github.com/rotblauer/routecat/geo/smooth"
	"github.com/rotblauer/routecat/match"
	"github.com/rotblauer/routecat/params"
	"github.com/rotblauer/routecat/state"
	"github.com/rotblauer/routecat/types/activity"
	"github.com/rotblauer/routecat/types/route"
	"github.com/rotblauer/routecat/types/section"
)

// AddActivity validates, stores, and groups one activity. The caller's
// activity is not retained. Re-adding an existing id is an error; the
// caller must remove the old one first.
func (e *Engine) AddActivity(act *activity.Activity) error {
	if err := act.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	if _, ok := e.metas[act.ID]; ok {
		e.mu.Unlock()
		return ErrActivityExists
	}

	track := act.Track
	if e.cfg.SmoothTracks {
		track = smooth.Track(track, act.TimeStream)
	}

	sig, err := match.NewSignature(act.ID, track, e.cfg.Match)
	if err != nil {
		e.mu.Unlock()
		return err
	}

	meta := &activity.Meta{
		ID:         act.ID,
		Sport:      act.Sport,
		Points:     len(track),
		Distance:   sig.Distance,
		Bound:      geo.Bound(track, 0),
		StartTime:  act.StartTime,
		MovingTime: act.MovingTime,
		HasTimes:   len(act.TimeStream) > 0,
	}

	if err := state.PutJSON(e.store, params.TracksBucket, act.ID, track); err != nil {
		e.mu.Unlock()
		return err
	}
	if len(act.TimeStream) > 0 {
		if err := state.PutJSON(e.store, params.TimeStreamsBucket, act.ID, act.TimeStream); err != nil {
			e.mu.Unlock()
			return err
		}
	}
	if err := state.PutJSON(e.store, params.SignaturesBucket, act.ID, sig); err != nil {
		e.mu.Unlock()
		return err
	}
	if err := state.PutJSON(e.store, params.ActivitiesBucket, act.ID, meta); err != nil {
		e.mu.Unlock()
		return err
	}

	e.sigs[act.ID] = sig
	e.metas[act.ID] = meta
	e.caches.Tracks.Add(act.ID, track)

	e.groups = e.grp.Incremental(e.groups, e.sigs, []string{act.ID})
	e.applyNamesLocked()
	e.applyGroupSportsLocked()
	e.caches.Consensus.Purge()
	if err := e.persistGroupsLocked(); err != nil {
		e.mu.Unlock()
		return err
	}
	e.markDirtyLocked()

	groups := e.groupsSnapshotLocked()
	stored := &activity.Activity{
		ID:         act.ID,
		Sport:      act.Sport,
		Track:      track,
		TimeStream: act.TimeStream,
		MovingTime: act.MovingTime,
		StartTime:  act.StartTime,
	}
	e.mu.Unlock()

	events.ActivityStored.Send(stored)
	events.GroupsChanged.Send(groups)
	return nil
}

// RemoveActivity deletes an activity and cascades through derived
// state: its group is rebuilt or dropped, and sections lose its
// portions, disappearing entirely when they fall below the minimum
// activity count.
func (e *Engine) RemoveActivity(id string) error {
	e.mu.Lock()
	if _, ok := e.metas[id]; !ok {
		e.mu.Unlock()
		return ErrActivityNotFound
	}

	for _, bucket := range [][]byte{
		params.ActivitiesBucket, params.TracksBucket,
		params.TimeStreamsBucket, params.SignaturesBucket,
	} {
		if err := e.store.DeleteKV(bucket, []byte(id)); err != nil {
			e.mu.Unlock()
			return err
		}
	}
	delete(e.sigs, id)
	delete(e.metas, id)
	e.caches.Invalidate(id)

	kept := e.groups[:0]
	for _, g := range e.groups {
		if !g.Contains(id) {
			kept = append(kept, g)
			continue
		}
		ids := make([]string, 0, len(g.ActivityIDs)-1)
		for _, member := range g.ActivityIDs {
			if member != id {
				ids = append(ids, member)
			}
		}
		g.ActivityIDs = ids
		if rebuilt := e.grp.Rebuild(g, e.sigs); rebuilt != nil {
			kept = append(kept, rebuilt)
		}
	}
	e.groups = kept
	e.applyNamesLocked()
	e.applyGroupSportsLocked()
	e.caches.Consensus.Purge()
	if err := e.persistGroupsLocked(); err != nil {
		e.mu.Unlock()
		return err
	}

	e.cascadeSectionsLocked(id)
	e.markDirtyLocked()

	groups := e.groupsSnapshotLocked()
	e.mu.Unlock()

	events.ActivityRemoved.Send(id)
	events.GroupsChanged.Send(groups)
	return nil
}

// cascadeSectionsLocked strips one activity from every section and
// drops sections that no longer have enough members.
func (e *Engine) cascadeSectionsLocked(id string) {
	kept := e.sections[:0]
	for _, s := range e.sections {
		if !containsID(s.ActivityIDs, id) {
			kept = append(kept, s)
			continue
		}
		s.ActivityIDs = removeID(s.ActivityIDs, id)
		s.VisitCount = len(s.ActivityIDs)
		portions := s.Portions[:0]
		for _, p := range s.Portions {
			if p.ActivityID != id {
				portions = append(portions, p)
			}
		}
		s.ObservationCount -= len(s.Portions) - len(portions)
		s.Portions = portions

		if len(s.ActivityIDs) < e.minActivitiesFor(s.Scale) {
			e.sidx.Remove(s.ID)
			continue
		}
		kept = append(kept, s)
	}
	e.sections = kept

	keptPot := e.potentials[:0]
	for _, p := range e.potentials {
		if containsID(p.ActivityIDs, id) {
			p.ActivityIDs = removeID(p.ActivityIDs, id)
			if len(p.ActivityIDs) == 0 {
				continue
			}
		}
		keptPot = append(keptPot, p)
	}
	e.potentials = keptPot

	if err := e.persistSectionsLocked(); err != nil {
		e.logger.Error("Failed to persist sections after removal", "activity", id, "error", err)
	}
}

func (e *Engine) minActivitiesFor(scale string) int {
	for _, sc := range e.cfg.Detection.Scales {
		if sc.Name == scale {
			return sc.MinActivities
		}
	}
	return e.cfg.Detection.MinActivities
}

// RenameGroup sets a custom display name that survives regrouping.
func (e *Engine) RenameGroup(id, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var found *route.Group
	for _, g := range e.groups {
		if g.ID == id {
			found = g
			break
		}
	}
	if found == nil {
		return ErrGroupNotFound
	}
	if err := e.store.WriteKV(params.NamesBucket, []byte(nameKeyGroup+id), []byte(name)); err != nil {
		return err
	}
	e.names[nameKeyGroup+id] = name
	found.Name = name
	return e.persistGroupsLocked()
}

// RenameSection sets a custom display name that survives re-detection.
func (e *Engine) RenameSection(id, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var found *section.FrequentSection
	for _, s := range e.sections {
		if s.ID == id {
			found = s
			break
		}
	}
	if found == nil {
		return ErrSectionNotFound
	}
	if err := e.store.WriteKV(params.NamesBucket, []byte(nameKeySection+id), []byte(name)); err != nil {
		return err
	}
	e.names[nameKeySection+id] = name
	found.Name = name
	return e.persistSectionsLocked()
}

// CleanupOldActivities removes activities whose start time predates
// the retention window. A zero retention keeps everything. Returns the
// number removed.
func (e *Engine) CleanupOldActivities() (int, error) {
	if e.cfg.RetentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().AddDate(0, 0, -e.cfg.RetentionDays)

	e.mu.Lock()
	var expired []string
	for id, meta := range e.metas {
		if !meta.StartTime.IsZero() && meta.StartTime.Before(cutoff) {
			expired = append(expired, id)
		}
	}
	e.mu.Unlock()

	for _, id := range expired {
		if err := e.RemoveActivity(id); err != nil {
			return 0, err
		}
	}
	if len(expired) > 0 {
		e.logger.Info("Cleaned up old activities", "removed", len(expired), "cutoff", cutoff)
	}
	return len(expired), nil
}

// Clear deletes every activity and all derived state, returning the
// engine to its just-created shape. A detection run in flight is
// canceled first.
func (e *Engine) Clear() error {
	for {
		e.mu.Lock()
		task := e.task
		if task == nil {
			break
		}
		e.mu.Unlock()
		task.Cancel()
		task.wait()
	}

	for _, bucket := range [][]byte{
		params.ActivitiesBucket, params.TracksBucket,
		params.TimeStreamsBucket, params.SignaturesBucket,
		params.GroupsBucket, params.SectionsBucket,
		params.PotentialsBucket, params.NamesBucket,
	} {
		if err := e.store.DropBucket(bucket); err != nil {
			e.mu.Unlock()
			return err
		}
	}
	if err := e.store.DeleteKV(params.MetaBucket, []byte(metaKeyLastDetection)); err != nil {
		e.mu.Unlock()
		return err
	}

	e.sigs = make(map[string]*route.Signature)
	e.metas = make(map[string]*activity.Meta)
	e.groups = nil
	e.sections = nil
	e.potentials = nil
	e.names = make(map[string]string)
	e.sidx = sindex.New()
	e.caches.Purge()
	e.cmp.Purge()
	e.sectionsDirty = false
	e.lastDetection = time.Time{}
	e.heat.invalidate()
	err := state.PutJSON(e.store, params.MetaBucket, metaKeySectionsDirty, false)
	e.mu.Unlock()
	if err != nil {
		return err
	}

	e.logger.Info("Engine cleared")
	events.ResetAll.Send(struct{}{})
	return nil
}

// MarkForRecomputation drops derived caches and forces the next
// Sections call to re-detect.
func (e *Engine) MarkForRecomputation() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.caches.Purge()
	e.cmp.Purge()
	e.markDirtyLocked()
}

func containsID(ids []string, id string) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}
