package section

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync/atomic"
	"time"

	"github.com/mitchellh/hashstructure/v2"
	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"

	"github.com/rotblauer/routecat/geo"
	"github.com/rotblauer/routecat/params"
	"github.com/rotblauer/routecat/types/section"
)

// Detection phases, reported to the progress callback in order.
const (
	PhaseLoading     = "loading"
	PhaseOverlaps    = "overlaps"
	PhaseClustering  = "clustering"
	PhaseConsensus   = "consensus"
	PhasePortions    = "portions"
	PhasePostprocess = "postprocess"
)

// ProgressFunc observes detection progress. done/total refer to the
// current phase.
type ProgressFunc func(phase string, done, total int)

// Detector runs frequent-section detection over a set of tracks.
type Detector struct {
	cfg      *params.DetectionConfig
	progress ProgressFunc
}

func NewDetector(cfg *params.DetectionConfig, progress ProgressFunc) *Detector {
	if cfg == nil {
		cfg = params.DefaultDetectionConfig()
	}
	return &Detector{cfg: cfg, progress: progress}
}

func (d *Detector) report(phase string, done, total int) {
	if d.progress != nil {
		d.progress(phase, done, total)
	}
}

// scales returns the configured scale presets, or a single synthetic
// scale from the base section config.
func (d *Detector) scales() []params.ScalePreset {
	if len(d.cfg.Scales) > 0 {
		return d.cfg.Scales
	}
	return []params.ScalePreset{{
		Name:          "",
		MinLength:     d.cfg.MinSectionLength,
		MaxLength:     d.cfg.MaxSectionLength,
		MinActivities: d.cfg.MinActivities,
	}}
}

// Detect finds frequent sections across all inputs. Empty input yields
// an empty result. Cancellation is checked between phases and inside
// the pairwise loop; a canceled run returns nil.
func (d *Detector) Detect(ctx context.Context, inputs []*Input) *section.MultiScaleResult {
	started := time.Now()
	result := &section.MultiScaleResult{
		Stats: section.DetectionStats{
			SectionsByScale:   make(map[string]int),
			PotentialsByScale: make(map[string]int),
		},
	}
	if len(inputs) == 0 {
		return result
	}

	scales := d.scales()

	// Overlap runs must be long enough for the smallest scale.
	base := d.cfg.SectionConfig
	base.MinSectionLength = scales[0].MinLength
	for _, sc := range scales {
		if sc.MinLength < base.MinSectionLength {
			base.MinSectionLength = sc.MinLength
		}
	}

	bySport := make(map[string][]*Input)
	for _, in := range inputs {
		if len(in.Track) < minOverlapPoints {
			continue
		}
		bySport[in.Sport] = append(bySport[in.Sport], in)
	}
	result.Stats.ActivitiesProcessed = len(inputs)

	sports := make([]string, 0, len(bySport))
	for sport := range bySport {
		sports = append(sports, sport)
	}
	sort.Strings(sports)

	var all []*section.FrequentSection
	for _, sport := range sports {
		sections, potentials, overlaps := d.detectSport(ctx, sport, bySport[sport], &base, scales)
		if ctx.Err() != nil {
			return nil
		}
		result.Stats.OverlapsFound += overlaps
		all = append(all, sections...)
		result.Potentials = append(result.Potentials, potentials...)
	}

	// Cross-scale dedupe unless the caller wants nested sections kept.
	if !d.cfg.PreserveHierarchy && len(scales) > 1 {
		d.report(PhasePostprocess, 0, 1)
		all = removeContainedSections(all, &base)
		d.report(PhasePostprocess, 1, 1)
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].ObservationCount != all[j].ObservationCount {
			return all[i].ObservationCount > all[j].ObservationCount
		}
		return all[i].ID < all[j].ID
	})
	result.Sections = all

	for _, s := range all {
		result.Stats.SectionsByScale[s.Scale]++
	}
	for _, p := range result.Potentials {
		result.Stats.PotentialsByScale[p.Scale]++
	}
	result.Stats.Elapsed = time.Since(started)

	slog.Info("Section detection complete",
		"activities", result.Stats.ActivitiesProcessed,
		"overlaps", result.Stats.OverlapsFound,
		"sections", len(result.Sections),
		"potentials", len(result.Potentials),
		"elapsed", result.Stats.Elapsed.Round(time.Millisecond))
	return result
}

func (d *Detector) detectSport(ctx context.Context, sport string, inputs []*Input, base *params.SectionConfig, scales []params.ScalePreset) ([]*section.FrequentSection, []*section.PotentialSection, int) {
	// Index every track once.
	d.report(PhaseLoading, 0, len(inputs))
	indexes := make([]*pointIndex, len(inputs))
	bounds := make([]orb.Bound, len(inputs))
	for i, in := range inputs {
		indexes[i] = newPointIndex(in.Track, base.ProximityThreshold)
		bounds[i] = geo.Bound(in.Track, geo.MetersToDegrees(base.ProximityThreshold))
		d.report(PhaseLoading, i+1, len(inputs))
	}

	// Pairwise overlap runs, sharded across cores with bounding-box
	// prefiltering. Results land in per-row buckets and are flattened
	// in index order so clustering sees a deterministic sequence.
	pairs := len(inputs) * (len(inputs) - 1) / 2
	rows := make([][]*overlap, len(inputs))
	var done atomic.Int64
	var eg errgroup.Group
	eg.SetLimit(runtime.GOMAXPROCS(0))
	d.report(PhaseOverlaps, 0, pairs)
	for i := range inputs {
		i := i
		eg.Go(func() error {
			var row []*overlap
			for j := i + 1; j < len(inputs); j++ {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				n := done.Add(1)
				if !bounds[i].Intersects(bounds[j]) {
					continue
				}
				row = append(row, findOverlaps(inputs[i], inputs[j], indexes[j], base)...)
				d.report(PhaseOverlaps, int(n), pairs)
			}
			rows[i] = row
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, nil, 0
	}
	var overlaps []*overlap
	for _, row := range rows {
		overlaps = append(overlaps, row...)
	}

	if ctx.Err() != nil {
		return nil, nil, 0
	}
	d.report(PhaseClustering, 0, 1)
	clusters := clusterOverlaps(overlaps, base)
	d.report(PhaseClustering, 1, 1)

	tracks := make(map[string]orb.LineString, len(inputs))
	times := make(map[string]time.Time, len(inputs))
	for _, in := range inputs {
		tracks[in.ID] = in.Track
		times[in.ID] = in.StartTime
	}

	var sections []*section.FrequentSection
	var potentials []*section.PotentialSection

	d.report(PhaseConsensus, 0, len(clusters))
	for ci, c := range clusters {
		if ctx.Err() != nil {
			return nil, nil, 0
		}
		ids := c.activityIDs()
		scale, ok := scaleFor(geo.Length(c.seed.polyline), scales)
		if !ok {
			d.report(PhaseConsensus, ci+1, len(clusters))
			continue
		}

		if len(ids) < scale.MinActivities {
			if d.cfg.IncludePotentials && len(ids) >= 1 && len(ids) <= 2 {
				potentials = append(potentials, potentialFrom(sport, c, ids, scale))
			}
			d.report(PhaseConsensus, ci+1, len(clusters))
			continue
		}

		s := d.buildSection(sport, c, ids, tracks, times, base)
		if s != nil {
			s.Scale = scale.Name
			sections = append(sections, s)
		}
		d.report(PhaseConsensus, ci+1, len(clusters))
	}

	// Portions against the final consensus geometry.
	d.report(PhasePortions, 0, len(sections))
	for si, s := range sections {
		if ctx.Err() != nil {
			return nil, nil, 0
		}
		idx := newPointIndex(s.Polyline, base.ProximityThreshold)
		var portions []section.ActivityPortion
		for _, id := range s.ActivityIDs {
			if p, ok := findPortion(id, tracks[id], s.Polyline, idx, base); ok {
				portions = append(portions, p)
			}
		}
		s.Portions = portions
		d.report(PhasePortions, si+1, len(sections))
	}

	d.report(PhasePostprocess, 0, 1)
	sections = postprocess(sections, tracks, base)
	d.report(PhasePostprocess, 1, 1)

	// Scale bounds re-checked, postprocessing changes lengths.
	kept := sections[:0]
	for _, s := range sections {
		if scale, ok := scaleFor(s.Distance, scales); ok {
			s.Scale = scale.Name
			kept = append(kept, s)
		}
	}
	return kept, potentials, len(overlaps)
}

// buildSection averages a cluster into a frequent section.
func (d *Detector) buildSection(sport string, c *cluster, ids []string, tracks map[string]orb.LineString, times map[string]time.Time, cfg *params.SectionConfig) *section.FrequentSection {
	traces := make(map[string]orb.LineString, len(c.overlaps))
	for _, ov := range c.overlaps {
		// One trace per activity; the longest run wins.
		if cur, ok := traces[ov.activityID]; !ok || geo.Length(cur) < ov.length {
			traces[ov.activityID] = ov.polyline
		}
	}

	// Overlap runs are recorded on one side of each pair only. Members
	// seen only as the indexed side get their trace extracted against
	// the cluster seed.
	seedIdx := newPointIndex(c.seed.polyline, cfg.ProximityThreshold*1.2)
	for _, id := range ids {
		if _, ok := traces[id]; ok {
			continue
		}
		if tr := extractTrace(tracks[id], seedIdx, cfg); len(tr) >= params.MinTracePoints {
			traces[id] = tr
		}
	}
	if len(traces) == 0 {
		return nil
	}

	medoidID := medoidTrace(traces, cfg.ConsensusSamples)
	consensus := buildConsensus(traces[medoidID], traces, medoidID, cfg)

	distance := geo.Length(consensus.polyline)
	if distance < cfg.MinSectionLength {
		return nil
	}

	sort.Strings(ids)
	var first, last time.Time
	for _, id := range ids {
		ts := times[id]
		if ts.IsZero() {
			continue
		}
		if first.IsZero() || ts.Before(first) {
			first = ts
		}
		if last.IsZero() || ts.After(last) {
			last = ts
		}
	}

	return &section.FrequentSection{
		ID:               sectionID(sport, consensus.polyline),
		Sport:            sport,
		Polyline:         consensus.polyline,
		Distance:         distance,
		ActivityIDs:      ids,
		VisitCount:       len(ids),
		MedoidActivityID: medoidID,
		Confidence:       confidence(len(c.overlaps), consensus.spread, cfg),
		ObservationCount: len(c.overlaps),
		AverageSpread:    consensus.spread,
		PointDensity:     consensus.density,
		Bound:            consensus.polyline.Bound(),
		FirstVisit:       first,
		LastVisit:        last,
	}
}

// scaleFor assigns a length to the first matching scale preset.
func scaleFor(length float64, scales []params.ScalePreset) (params.ScalePreset, bool) {
	for _, sc := range scales {
		if length < sc.MinLength {
			continue
		}
		if sc.MaxLength > 0 && length >= sc.MaxLength {
			continue
		}
		return sc, true
	}
	return params.ScalePreset{}, false
}

func potentialFrom(sport string, c *cluster, ids []string, scale params.ScalePreset) *section.PotentialSection {
	sort.Strings(ids)
	missing := scale.MinActivities - len(ids)
	if missing < 0 {
		missing = 0
	}
	return &section.PotentialSection{
		ID:                  "pot_" + sectionID(sport, c.seed.polyline),
		Sport:               sport,
		Polyline:            c.seed.polyline,
		Distance:            c.seed.length,
		ActivityIDs:         ids,
		ObservationCount:    len(c.overlaps),
		Scale:               scale.Name,
		MissingObservations: missing,
	}
}

// sectionID derives a stable id from the rounded geometry, so repeated
// detections over the same data agree.
func sectionID(sport string, polyline orb.LineString) string {
	rounded := make([][2]int64, 0, len(polyline))
	for _, p := range polyline {
		rounded = append(rounded, [2]int64{int64(p.Lon() * 1e4), int64(p.Lat() * 1e4)})
	}
	hash, err := hashstructure.Hash(rounded, hashstructure.FormatV2, nil)
	if err != nil {
		hash = uint64(len(polyline))
	}
	return fmt.Sprintf("sec_%s_%x", sport, hash)
}
