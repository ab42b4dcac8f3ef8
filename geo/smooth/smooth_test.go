package smooth

import (
	"testing"

	"github.com/rotblauer/routecat/geo"
	"github.com/rotblauer/routecat/testing/testdata"
)

func TestTrackPreservesLength(t *testing.T) {
	line := testdata.Jittered(testdata.StraightTrack(45.0, -122.0, 50, 20), 30, 1)
	got := Track(line, testdata.UniformTimes(line, 5.0))
	if len(got) != len(line) {
		t.Fatalf("got %d points, want %d", len(got), len(line))
	}
}

func TestTrackStaysNearInput(t *testing.T) {
	clean := testdata.StraightTrack(45.0, -122.0, 50, 20)
	noisy := testdata.Jittered(clean, 30, 7)
	smoothed := Track(noisy, testdata.UniformTimes(noisy, 5.0))

	// Estimates track the observations, they never run away from them.
	for i := range smoothed {
		if d := geo.Haversine(smoothed[i], noisy[i]); d > 100 {
			t.Fatalf("point %d drifted %.1fm from observation", i, d)
		}
	}
}

func TestTrackShortInputUnchanged(t *testing.T) {
	line := testdata.StraightTrack(45.0, -122.0, 2, 20)
	got := Track(line, nil)
	if len(got) != 2 || got[0] != line[0] {
		t.Errorf("short track modified: %v", got)
	}
}
