package perf

import (
	"math"
	"testing"

	"github.com/rotblauer/routecat/geo"
	"github.com/rotblauer/routecat/testing/testdata"
	"github.com/rotblauer/routecat/types/activity"
	"github.com/rotblauer/routecat/types/route"
	"github.com/rotblauer/routecat/types/section"
)

func timedActivity(id string, speedMps float64) *activity.Activity {
	track := testdata.StraightTrack(45.0, -122.0, 101, 20)
	return &activity.Activity{
		ID:         id,
		Sport:      "ride",
		Track:      track,
		TimeStream: testdata.UniformTimes(track, speedMps),
	}
}

func sectionOver(act *activity.Activity, start, end int, dir route.Direction) *section.FrequentSection {
	return &section.FrequentSection{
		ID:          "sec_test",
		Sport:       act.Sport,
		Distance:    geo.Length(act.Track[start : end+1]),
		ActivityIDs: []string{act.ID},
		Portions: []section.ActivityPortion{
			{ActivityID: act.ID, StartIdx: start, EndIdx: end, Direction: dir},
		},
	}
}

func TestLapsFromTimeStream(t *testing.T) {
	act := timedActivity("a1", 5.0)
	sec := sectionOver(act, 20, 80, route.DirectionSame)

	laps := Laps(sec, act)
	if len(laps) != 1 {
		t.Fatalf("got %d laps, want 1", len(laps))
	}
	lap := laps[0]
	if lap.IsEstimated {
		t.Error("lap from time stream marked estimated")
	}

	wantSeconds := lap.Distance / 5.0
	if math.Abs(lap.Seconds-wantSeconds) > wantSeconds*0.01 {
		t.Errorf("seconds = %.1f, want ~%.1f", lap.Seconds, wantSeconds)
	}
	if math.Abs(lap.SpeedMps-5.0) > 0.1 {
		t.Errorf("speed = %.2f m/s, want ~5.0", lap.SpeedMps)
	}
	wantPace := lap.Seconds / (lap.Distance / 1000)
	if math.Abs(lap.PaceSecPerKm-wantPace) > 1e-9 {
		t.Errorf("pace = %.2f, want %.2f", lap.PaceSecPerKm, wantPace)
	}
}

func TestLapsEstimateFallback(t *testing.T) {
	act := timedActivity("a1", 5.0)
	total := geo.Length(act.Track)
	act.TimeStream = nil
	act.MovingTime = total / 5.0

	sec := sectionOver(act, 20, 80, route.DirectionSame)

	laps := Laps(sec, act)
	if len(laps) != 1 {
		t.Fatalf("got %d laps, want 1", len(laps))
	}
	lap := laps[0]
	if !lap.IsEstimated {
		t.Error("fallback lap not marked estimated")
	}
	wantSeconds := act.MovingTime * sec.Distance / total
	if math.Abs(lap.Seconds-wantSeconds) > 1e-9 {
		t.Errorf("seconds = %.1f, want %.1f", lap.Seconds, wantSeconds)
	}
}

func TestLapsNoUsableData(t *testing.T) {
	act := timedActivity("a1", 5.0)
	act.TimeStream = nil
	act.MovingTime = 0

	sec := sectionOver(act, 20, 80, route.DirectionSame)
	if laps := Laps(sec, act); len(laps) != 0 {
		t.Fatalf("got %d laps without time data, want 0", len(laps))
	}
}

func TestLapsIgnoresOtherActivities(t *testing.T) {
	act := timedActivity("a1", 5.0)
	other := timedActivity("a2", 5.0)
	sec := sectionOver(act, 20, 80, route.DirectionSame)

	if laps := Laps(sec, other); len(laps) != 0 {
		t.Fatalf("got %d laps for non-member activity, want 0", len(laps))
	}
}

func TestAggregateRanksByBestLap(t *testing.T) {
	fast := timedActivity("fast", 8.0)
	slow := timedActivity("slow", 4.0)
	reversed := timedActivity("back", 6.0)

	sec := &section.FrequentSection{
		ID:          "sec_test",
		Sport:       "ride",
		Distance:    geo.Length(fast.Track[20:81]),
		ActivityIDs: []string{"slow", "fast", "back"},
		Portions: []section.ActivityPortion{
			{ActivityID: "fast", StartIdx: 20, EndIdx: 80, Direction: route.DirectionSame},
			{ActivityID: "slow", StartIdx: 20, EndIdx: 80, Direction: route.DirectionSame},
			{ActivityID: "back", StartIdx: 20, EndIdx: 80, Direction: route.DirectionReverse},
		},
	}

	activities := map[string]*activity.Activity{
		"fast": fast, "slow": slow, "back": reversed,
	}

	result := Aggregate(sec, activities)
	if got := len(result.Records); got != 3 {
		t.Fatalf("got %d records, want 3", got)
	}
	if result.Records[0].ActivityID != "fast" {
		t.Errorf("fastest record = %q, want fast", result.Records[0].ActivityID)
	}
	if result.Records[2].ActivityID != "slow" {
		t.Errorf("slowest record = %q, want slow", result.Records[2].ActivityID)
	}

	if result.Forward.Count != 2 {
		t.Errorf("forward count = %d, want 2", result.Forward.Count)
	}
	if result.Reverse.Count != 1 {
		t.Errorf("reverse count = %d, want 1", result.Reverse.Count)
	}
	if result.Forward.BestSeconds != result.Records[0].BestLap.Seconds {
		t.Errorf("forward best = %.1f, want %.1f",
			result.Forward.BestSeconds, result.Records[0].BestLap.Seconds)
	}
	if result.Reverse.BestSeconds != result.Reverse.AvgSeconds {
		t.Error("single reverse lap should have best == avg")
	}
	if result.Records[2].Direction != route.DirectionSame {
		t.Errorf("slow direction = %q, want same", result.Records[2].Direction)
	}
}

func TestAggregateSkipsMissingActivities(t *testing.T) {
	act := timedActivity("a1", 5.0)
	sec := sectionOver(act, 20, 80, route.DirectionSame)
	sec.ActivityIDs = append(sec.ActivityIDs, "gone")

	result := Aggregate(sec, map[string]*activity.Activity{"a1": act})
	if got := len(result.Records); got != 1 {
		t.Fatalf("got %d records, want 1", got)
	}
	if result.SectionID != sec.ID {
		t.Errorf("section id = %q, want %q", result.SectionID, sec.ID)
	}
}
