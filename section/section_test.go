package section

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/paulmach/orb"

	"github.com/rotblauer/routecat/geo"
	"github.com/rotblauer/routecat/params"
	"github.com/rotblauer/routecat/testing/testdata"
	"github.com/rotblauer/routecat/types/route"
	"github.com/rotblauer/routecat/types/section"
)

// sharedStretchInputs builds n activities that approach from different
// directions, ride the same ~1.5km stretch, and diverge again.
func sharedStretchInputs(n int) []*Input {
	shared := testdata.StraightTrack(47.0, 8.0, 150, 10)
	var inputs []*Input
	for i := 0; i < n; i++ {
		off := float64(i+1) * 500
		approach := testdata.OffsetTrack(testdata.StraightTrack(46.99, 8.0, 50, 10), off)
		exit := testdata.OffsetTrack(testdata.StraightTrack(47.014, 8.0, 50, 10), -off)
		track := testdata.Concat(approach, testdata.Jittered(shared, 8, int64(i)), exit)
		inputs = append(inputs, &Input{
			ID:    fmt.Sprintf("act-%d", i),
			Sport: "Run",
			Track: track,
		})
	}
	return inputs
}

func singleScaleConfig() *params.DetectionConfig {
	cfg := params.DefaultDetectionConfig()
	cfg.Scales = nil
	return cfg
}

func TestDetectEmptyInput(t *testing.T) {
	d := NewDetector(singleScaleConfig(), nil)
	result := d.Detect(context.Background(), nil)
	if len(result.Sections) != 0 || len(result.Potentials) != 0 {
		t.Error("empty input must yield empty result")
	}
}

func TestDetectSharedStretch(t *testing.T) {
	inputs := sharedStretchInputs(3)
	d := NewDetector(singleScaleConfig(), nil)
	result := d.Detect(context.Background(), inputs)

	if len(result.Sections) != 1 {
		t.Fatalf("got %d sections, want 1", len(result.Sections))
	}
	s := result.Sections[0]
	if len(s.ActivityIDs) != 3 {
		t.Fatalf("section has %d activities, want 3: %v", len(s.ActivityIDs), s.ActivityIDs)
	}
	if s.VisitCount != len(s.ActivityIDs) {
		t.Errorf("visit count %d, want %d", s.VisitCount, len(s.ActivityIDs))
	}
	if s.Distance < 1000 || s.Distance > 2000 {
		t.Errorf("section length %.0fm, want about 1500", s.Distance)
	}
	if s.Confidence <= 0 || s.Confidence > 1 {
		t.Errorf("confidence %v out of range", s.Confidence)
	}
	if s.MedoidActivityID == "" {
		t.Error("section must record its medoid trace")
	}

	// Consensus must stay near every member's track.
	threshold := params.DefaultSectionConfig.ProximityThreshold
	for _, in := range inputs {
		idx := newPointIndex(in.Track, threshold)
		for _, p := range s.Polyline {
			if n, _ := idx.Nearest(p, threshold); n < 0 {
				t.Errorf("consensus point %v farther than %vm from %s", p, threshold, in.ID)
				break
			}
		}
	}
}

func TestDetectPortionsAndDirections(t *testing.T) {
	inputs := sharedStretchInputs(3)
	// Run the stretch southbound for one member.
	inputs[2].Track = testdata.Reversed(inputs[2].Track)

	d := NewDetector(singleScaleConfig(), nil)
	result := d.Detect(context.Background(), inputs)
	if len(result.Sections) != 1 {
		t.Fatalf("got %d sections, want 1", len(result.Sections))
	}
	s := result.Sections[0]
	if len(s.Portions) != 3 {
		t.Fatalf("got %d portions, want 3", len(s.Portions))
	}

	tracks := make(map[string]orb.LineString)
	for _, in := range inputs {
		tracks[in.ID] = in.Track
	}
	dirs := make(map[string]route.Direction)
	for _, p := range s.Portions {
		if p.EndIdx <= p.StartIdx {
			t.Errorf("portion %s has empty index range [%d,%d]", p.ActivityID, p.StartIdx, p.EndIdx)
		}
		if full := geo.Length(tracks[p.ActivityID]); p.DistanceMeters <= 0 || p.DistanceMeters > full {
			t.Errorf("portion %s distance %.0fm out of (0, %.0f]", p.ActivityID, p.DistanceMeters, full)
		}
		dirs[p.ActivityID] = p.Direction
	}
	if dirs["act-0"] != dirs["act-1"] {
		t.Errorf("same-direction members disagree: %v vs %v", dirs["act-0"], dirs["act-1"])
	}
	if dirs["act-2"] == dirs["act-0"] {
		t.Error("reversed member must report the opposite direction")
	}
}

func TestDetectPotentialSection(t *testing.T) {
	inputs := sharedStretchInputs(2) // below MinActivities 3
	d := NewDetector(singleScaleConfig(), nil)
	result := d.Detect(context.Background(), inputs)

	if len(result.Sections) != 0 {
		t.Fatalf("2 activities must not form a section, got %d", len(result.Sections))
	}
	if len(result.Potentials) != 1 {
		t.Fatalf("got %d potentials, want 1", len(result.Potentials))
	}
	p := result.Potentials[0]
	if len(p.ActivityIDs) != 2 {
		t.Errorf("potential has %d activities, want 2", len(p.ActivityIDs))
	}
	if p.MissingObservations != 1 {
		t.Errorf("missing observations = %d, want 1", p.MissingObservations)
	}
}

func TestDetectWithoutPotentials(t *testing.T) {
	cfg := singleScaleConfig()
	cfg.IncludePotentials = false
	result := NewDetector(cfg, nil).Detect(context.Background(), sharedStretchInputs(2))
	if len(result.Potentials) != 0 {
		t.Errorf("potentials disabled but got %d", len(result.Potentials))
	}
}

func TestDetectMultiScale(t *testing.T) {
	// 5 members so the landmark scale (min 5) qualifies, stretch kept
	// under 1500m so it lands in landmark, not segment.
	shared := testdata.StraightTrack(47.0, 8.0, 100, 10) // ~1 km
	var inputs []*Input
	for i := 0; i < 5; i++ {
		off := float64(i+1) * 500
		approach := testdata.OffsetTrack(testdata.StraightTrack(46.99, 8.0, 50, 10), off)
		inputs = append(inputs, &Input{
			ID:    fmt.Sprintf("act-%d", i),
			Sport: "Ride",
			Track: testdata.Concat(approach, testdata.Jittered(shared, 8, int64(i))),
		})
	}

	result := NewDetector(params.DefaultDetectionConfig(), nil).Detect(context.Background(), inputs)
	if len(result.Sections) == 0 {
		t.Fatal("want at least one section")
	}
	if result.Sections[0].Scale != "landmark" {
		t.Errorf("scale = %q, want landmark", result.Sections[0].Scale)
	}
	if result.Stats.SectionsByScale["landmark"] == 0 {
		t.Error("stats must count the landmark section")
	}
}

func TestDetectSeparatesSports(t *testing.T) {
	runs := sharedStretchInputs(3)
	rides := sharedStretchInputs(3)
	for i, in := range rides {
		in.ID = fmt.Sprintf("ride-%d", i)
		in.Sport = "Ride"
	}
	result := NewDetector(singleScaleConfig(), nil).Detect(context.Background(), append(runs, rides...))
	if len(result.Sections) != 2 {
		t.Fatalf("got %d sections, want one per sport", len(result.Sections))
	}
	if result.Sections[0].Sport == result.Sections[1].Sport {
		t.Error("sections must be split by sport")
	}
}

func TestDetectReportsProgress(t *testing.T) {
	// The overlap phase reports from several goroutines at once.
	var mu sync.Mutex
	phases := make(map[string]bool)
	d := NewDetector(singleScaleConfig(), func(phase string, done, total int) {
		mu.Lock()
		defer mu.Unlock()
		phases[phase] = true
		if done > total {
			t.Errorf("phase %s: done %d > total %d", phase, done, total)
		}
	})
	d.Detect(context.Background(), sharedStretchInputs(3))

	for _, want := range []string{PhaseLoading, PhaseOverlaps, PhaseClustering, PhaseConsensus, PhasePortions, PhasePostprocess} {
		if !phases[want] {
			t.Errorf("phase %s never reported", want)
		}
	}
}

func TestDetectCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := NewDetector(singleScaleConfig(), nil)
	if result := d.Detect(ctx, sharedStretchInputs(3)); result != nil {
		t.Error("canceled detection must return nil, not partial results")
	}
}

func TestFindOverlapsToleratesGaps(t *testing.T) {
	base := testdata.StraightTrack(47.0, 8.0, 100, 10)
	// Push two mid-track points far off path; the run must survive.
	noisy := append(orb.LineString(nil), base...)
	noisy[50] = orb.Point{noisy[50].Lon() + 0.01, noisy[50].Lat()}
	noisy[51] = orb.Point{noisy[51].Lon() + 0.01, noisy[51].Lat()}

	a := &Input{ID: "a", Sport: "Run", Track: noisy}
	b := &Input{ID: "b", Sport: "Run", Track: base}
	cfg := params.DefaultSectionConfig
	overlaps := findOverlaps(a, b, newPointIndex(b.Track, cfg.ProximityThreshold), cfg)

	if len(overlaps) != 1 {
		t.Fatalf("got %d overlaps, want 1 continuous run", len(overlaps))
	}
	if overlaps[0].startIdx != 0 || overlaps[0].endIdx != len(noisy)-1 {
		t.Errorf("run [%d,%d], want full track", overlaps[0].startIdx, overlaps[0].endIdx)
	}
}

func TestFindOverlapsSplitsOnLongGaps(t *testing.T) {
	seg1 := testdata.StraightTrack(47.0, 8.0, 60, 10)
	gap := testdata.OffsetTrack(testdata.StraightTrack(47.0055, 8.0, 20, 10), 3000)
	seg2 := testdata.StraightTrack(47.0075, 8.0, 60, 10)
	a := &Input{ID: "a", Sport: "Run", Track: testdata.Concat(seg1, gap, seg2)}
	b := &Input{ID: "b", Sport: "Run", Track: testdata.Concat(seg1, seg2)}

	cfg := *params.DefaultSectionConfig
	cfg.MinSectionLength = 300
	overlaps := findOverlaps(a, b, newPointIndex(b.Track, cfg.ProximityThreshold), &cfg)
	if len(overlaps) != 2 {
		t.Fatalf("got %d overlaps, want 2 runs split by the detour", len(overlaps))
	}
}

func TestRemoveContainedSections(t *testing.T) {
	long := testdata.StraightTrack(47.0, 8.0, 200, 10)

	t.Run("near-duplicate keeps shorter", func(t *testing.T) {
		sections := fixtures(
			&sectionFixture{id: "long", poly: long, obs: 3},
			&sectionFixture{id: "short", poly: long[10:190], obs: 3},
		)
		kept := removeContainedSections(sections, params.DefaultSectionConfig)
		if len(kept) != 1 || kept[0].ID != "short" {
			t.Fatalf("want only the shorter near-duplicate, got %v", ids(kept))
		}
	})

	t.Run("small subset folds into long", func(t *testing.T) {
		sections := fixtures(
			&sectionFixture{id: "long", poly: long, obs: 3},
			&sectionFixture{id: "subset", poly: long[50:120], obs: 5},
		)
		kept := removeContainedSections(sections, params.DefaultSectionConfig)
		if len(kept) != 1 || kept[0].ID != "long" {
			t.Fatalf("want the fully-containing section, got %v", ids(kept))
		}
	})
}

func TestMergeNearbySectionsDropsReversedTwin(t *testing.T) {
	poly := testdata.StraightTrack(47.0, 8.0, 100, 10)
	sections := fixtures(
		&sectionFixture{id: "fwd", poly: poly, obs: 6},
		&sectionFixture{id: "rev", poly: testdata.Reversed(testdata.OffsetTrack(poly, 20)), obs: 2},
	)
	kept := mergeNearbySections(sections, params.DefaultSectionConfig)
	if len(kept) != 1 {
		t.Fatalf("got %d sections, want 1", len(kept))
	}
	if kept[0].ID != "fwd" {
		t.Errorf("kept %s, want the most visited", kept[0].ID)
	}
}

func TestSplitFoldingSections(t *testing.T) {
	out := testdata.StraightTrack(47.0, 8.0, 60, 10) // ~600 m one way
	sections := fixtures(&sectionFixture{id: "oab", poly: testdata.OutAndBack(out), obs: 4})

	split := splitFoldingSections(sections, params.DefaultSectionConfig)
	if len(split) != 2 {
		t.Fatalf("got %d sections, want outbound and return", len(split))
	}
	for _, s := range split {
		if s.Distance < params.DefaultSectionConfig.MinSectionLength {
			t.Errorf("section %s only %.0fm long", s.ID, s.Distance)
		}
	}
}

func TestScaleFor(t *testing.T) {
	scales := params.DefaultScalePresets
	cases := []struct {
		length float64
		want   string
		ok     bool
	}{
		{length: 500, want: "landmark", ok: true},
		{length: 3000, want: "segment", ok: true},
		{length: 20000, want: "journey", ok: true},
		{length: 100, ok: false},
	}
	for _, c := range cases {
		sc, ok := scaleFor(c.length, scales)
		if ok != c.ok || (ok && sc.Name != c.want) {
			t.Errorf("scaleFor(%v) = %q/%v, want %q/%v", c.length, sc.Name, ok, c.want, c.ok)
		}
	}
}

type sectionFixture struct {
	id   string
	poly orb.LineString
	obs  int
}

func fixtures(fs ...*sectionFixture) []*section.FrequentSection {
	var out []*section.FrequentSection
	for _, f := range fs {
		out = append(out, &section.FrequentSection{
			ID:               f.id,
			Sport:            "Run",
			Polyline:         f.poly,
			Distance:         geo.Length(f.poly),
			ObservationCount: f.obs,
			Bound:            f.poly.Bound(),
		})
	}
	return out
}

func ids(sections []*section.FrequentSection) []string {
	out := make([]string, 0, len(sections))
	for _, s := range sections {
		out = append(out, s.ID)
	}
	return out
}

func TestSectionIDStable(t *testing.T) {
	poly := testdata.StraightTrack(47.0, 8.0, 50, 10)
	if sectionID("Run", poly) != sectionID("Run", poly) {
		t.Error("section id must be deterministic")
	}
	if sectionID("Run", poly) == sectionID("Ride", poly) {
		t.Error("section id must incorporate the sport")
	}
}
