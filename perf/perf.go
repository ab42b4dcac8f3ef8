// Package perf computes timed performances over frequent sections from
// recorded time streams, with a proportional estimate fallback for
// activities recorded without one.
package perf

import (
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/rotblauer/routecat/geo"
	"github.com/rotblauer/routecat/types/activity"
	"github.com/rotblauer/routecat/types/route"
	"github.com/rotblauer/routecat/types/section"
)

// Laps times every recorded pass of an activity over a section. When
// the activity has no time stream, a single estimated lap is derived
// proportionally from moving time. No usable data yields no laps.
func Laps(sec *section.FrequentSection, act *activity.Activity) []section.Lap {
	var laps []section.Lap
	for _, portion := range sec.Portions {
		if portion.ActivityID != act.ID {
			continue
		}
		if lap, ok := timedLap(portion, act); ok {
			laps = append(laps, lap)
			continue
		}
		if lap, ok := estimatedLap(sec, portion, act); ok {
			laps = append(laps, lap)
		}
	}
	return laps
}

func timedLap(portion section.ActivityPortion, act *activity.Activity) (section.Lap, bool) {
	seconds, ok := act.ElapsedBetween(portion.StartIdx, portion.EndIdx)
	if !ok || seconds <= 0 {
		return section.Lap{}, false
	}
	if portion.EndIdx >= len(act.Track) {
		return section.Lap{}, false
	}
	distance := geo.Length(act.Track[portion.StartIdx : portion.EndIdx+1])
	if distance <= 0 {
		return section.Lap{}, false
	}
	return section.Lap{
		ActivityID:   act.ID,
		StartIdx:     portion.StartIdx,
		EndIdx:       portion.EndIdx,
		Seconds:      seconds,
		Distance:     distance,
		PaceSecPerKm: seconds / (distance / 1000),
		SpeedMps:     distance / seconds,
		Direction:    portion.Direction,
	}, true
}

// estimatedLap prorates the activity's moving time by the fraction of
// its distance spent on the section.
func estimatedLap(sec *section.FrequentSection, portion section.ActivityPortion, act *activity.Activity) (section.Lap, bool) {
	if act.MovingTime <= 0 {
		return section.Lap{}, false
	}
	total := geo.Length(act.Track)
	if total <= 0 || sec.Distance <= 0 {
		return section.Lap{}, false
	}
	seconds := act.MovingTime * sec.Distance / total
	if seconds <= 0 {
		return section.Lap{}, false
	}
	return section.Lap{
		ActivityID:   act.ID,
		StartIdx:     portion.StartIdx,
		EndIdx:       portion.EndIdx,
		Seconds:      seconds,
		Distance:     sec.Distance,
		PaceSecPerKm: seconds / (sec.Distance / 1000),
		SpeedMps:     sec.Distance / seconds,
		Direction:    portion.Direction,
		IsEstimated:  true,
	}, true
}

// Aggregate ranks per-activity records over a section, fastest best
// lap first, and summarizes each direction.
func Aggregate(sec *section.FrequentSection, activities map[string]*activity.Activity) *section.PerformanceResult {
	result := &section.PerformanceResult{SectionID: sec.ID}

	var forwardTimes, reverseTimes []float64
	byActivity := make(map[string][]section.Lap)
	for _, id := range sec.ActivityIDs {
		act, ok := activities[id]
		if !ok {
			continue
		}
		laps := Laps(sec, act)
		if len(laps) == 0 {
			continue
		}
		byActivity[id] = laps
		for _, lap := range laps {
			if lap.Direction == route.DirectionReverse {
				reverseTimes = append(reverseTimes, lap.Seconds)
			} else {
				forwardTimes = append(forwardTimes, lap.Seconds)
			}
		}
	}

	for id, laps := range byActivity {
		record := section.PerformanceRecord{ActivityID: id, LapCount: len(laps)}
		var sum float64
		reverse := 0
		estimated := false
		best := laps[0]
		for _, lap := range laps {
			sum += lap.Seconds
			if lap.Seconds < best.Seconds {
				best = lap
			}
			if lap.Direction == route.DirectionReverse {
				reverse++
			}
			if lap.IsEstimated {
				estimated = true
			}
		}
		record.BestLap = best
		record.AvgSeconds = sum / float64(len(laps))
		record.IsEstimated = estimated
		record.Direction = route.DirectionSame
		if 2*reverse > len(laps) {
			record.Direction = route.DirectionReverse
		}
		result.Records = append(result.Records, record)
	}

	sort.Slice(result.Records, func(i, j int) bool {
		if result.Records[i].BestLap.Seconds != result.Records[j].BestLap.Seconds {
			return result.Records[i].BestLap.Seconds < result.Records[j].BestLap.Seconds
		}
		return result.Records[i].ActivityID < result.Records[j].ActivityID
	})

	result.Forward = directionStats(forwardTimes)
	result.Reverse = directionStats(reverseTimes)
	return result
}

func directionStats(times []float64) section.DirectionStats {
	if len(times) == 0 {
		return section.DirectionStats{}
	}
	best, err := stats.Min(stats.Float64Data(times))
	if err != nil {
		return section.DirectionStats{}
	}
	avg, err := stats.Mean(stats.Float64Data(times))
	if err != nil {
		return section.DirectionStats{}
	}
	return section.DirectionStats{
		Count:       len(times),
		BestSeconds: best,
		AvgSeconds:  avg,
	}
}
