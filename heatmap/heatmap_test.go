package heatmap

import (
	"fmt"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"github.com/rotblauer/routecat/params"
	"github.com/rotblauer/routecat/testing/testdata"
)

func testTracks() []Track {
	shared := testdata.StraightTrack(47.0, 8.0, 100, 10)
	day := func(d int) time.Time {
		return time.Date(2025, 6, 1+d, 8, 0, 0, 0, time.UTC)
	}
	return []Track{
		{ID: "a", Sport: "Run", RouteID: "group_a", Line: shared, StartTime: day(0)},
		{ID: "b", Sport: "Run", RouteID: "group_b", Line: testdata.Jittered(shared, 5, 1), StartTime: day(1)},
		{ID: "c", Sport: "Ride", RouteID: "group_c", Line: testdata.OffsetTrack(shared, 5000), StartTime: day(2)},
	}
}

func TestBuildEmpty(t *testing.T) {
	h := Build(nil, nil)
	if h.Len() != 0 {
		t.Errorf("empty input: %d cells, want 0", h.Len())
	}
	if cells := h.Cells(); len(cells) != 0 {
		t.Errorf("empty input: Cells() returned %d", len(cells))
	}
	if _, _, ok := h.At(orb.Point{8, 47}); ok {
		t.Error("point query on empty heatmap must miss")
	}
}

func TestBuildMarksCommonPath(t *testing.T) {
	h := Build(testTracks(), nil)
	cells := h.Cells()
	if len(cells) == 0 {
		t.Fatal("no cells built")
	}

	// Busiest cells carry both runs and two distinct routes.
	busiest := cells[0]
	if busiest.VisitCount < 2 {
		t.Errorf("busiest cell has %d visits, want >= 2", busiest.VisitCount)
	}
	if !busiest.IsCommonPath {
		t.Error("cell visited by two routes must be a common path")
	}
	if busiest.Density != 1.0 {
		t.Errorf("busiest cell density = %v, want 1.0", busiest.Density)
	}
	if !busiest.FirstVisit.Equal(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)) {
		t.Errorf("first visit = %v", busiest.FirstVisit)
	}
}

func TestBuildSportFilter(t *testing.T) {
	cfg := *params.DefaultHeatmapConfig
	cfg.Sport = "Ride"
	h := Build(testTracks(), &cfg)
	for _, c := range h.Cells() {
		for _, id := range c.ActivityIDs {
			if id != "c" {
				t.Fatalf("sport filter leaked activity %s", id)
			}
		}
	}
}

func TestAtFindsNeighborCell(t *testing.T) {
	h := Build(testTracks(), nil)

	cell, label, ok := h.At(orb.Point{8.0, 47.0})
	if !ok {
		t.Fatal("query on a track point must hit")
	}
	if cell.VisitCount == 0 {
		t.Error("hit cell has no visits")
	}
	if label == "" {
		t.Error("hit must carry a label")
	}

	// Slightly off the track but within a neighbor cell.
	if _, _, ok := h.At(orb.Point{8.0008, 47.0}); !ok {
		t.Error("neighbor fallback failed")
	}

	// Far away must miss.
	if _, _, ok := h.At(orb.Point{9.5, 48.5}); ok {
		t.Error("distant query must miss")
	}
}

func TestMinVisitsFloor(t *testing.T) {
	cfg := *params.DefaultHeatmapConfig
	cfg.MinVisits = 2
	h := Build(testTracks(), &cfg)
	for _, c := range h.Cells() {
		if c.VisitCount < 2 {
			t.Errorf("cell below visit floor leaked: %d", c.VisitCount)
		}
	}
}

func TestLabelSharedPath(t *testing.T) {
	h := Build(testTracks(), nil)
	cells := h.Cells()
	if len(cells) == 0 {
		t.Fatal("no cells")
	}
	_, label, ok := h.At(cells[0].Center)
	if !ok {
		t.Fatal("center query missed")
	}
	want := fmt.Sprintf("shared path (2 routes, %d visits)", cells[0].VisitCount)
	if cells[0].IsCommonPath && label != want {
		t.Errorf("label = %q, want %q", label, want)
	}
}
