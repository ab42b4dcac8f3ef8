package section

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/paulmach/orb"

	"github.com/rotblauer/routecat/geo"
	"github.com/rotblauer/routecat/params"
	"github.com/rotblauer/routecat/types/section"
)

// postprocess cleans raw detected sections: splits out-and-back folds,
// merges near-duplicates, removes contained sections, and splits off
// high-traffic portions.
func postprocess(sections []*section.FrequentSection, tracks map[string]orb.LineString, cfg *params.SectionConfig) []*section.FrequentSection {
	sections = splitFoldingSections(sections, cfg)
	sections = mergeNearbySections(sections, cfg)
	sections = removeContainedSections(sections, cfg)
	sections = splitHighDensitySections(sections, tracks, cfg)
	return sections
}

// foldRatio measures how much the last third of a polyline retraces
// the first third.
func foldRatio(polyline orb.LineString, thresholdMeters float64) float64 {
	if len(polyline) < 6 {
		return 0
	}
	third := len(polyline) / 3
	idx := newPointIndex(polyline[:third], thresholdMeters)

	close := 0
	for _, p := range polyline[len(polyline)-third:] {
		if n, _ := idx.Nearest(p, thresholdMeters); n >= 0 {
			close++
		}
	}
	return float64(close) / float64(third)
}

// foldPoint finds where a polyline turns back on itself: the first
// second-half point, with at least two successors, that returns within
// threshold of the first half.
func foldPoint(polyline orb.LineString, thresholdMeters float64) int {
	if len(polyline) < 10 {
		return -1
	}
	half := len(polyline) / 2
	idx := newPointIndex(polyline[:half], thresholdMeters)

	var candidates []int
	for i, p := range polyline[half:] {
		if n, _ := idx.Nearest(p, thresholdMeters); n >= 0 {
			candidates = append(candidates, half+i)
		}
	}
	if len(candidates) < 3 {
		return -1
	}
	return candidates[0]
}

// splitFoldingSections splits out-and-back sections at the fold into
// outbound and return halves.
func splitFoldingSections(sections []*section.FrequentSection, cfg *params.SectionConfig) []*section.FrequentSection {
	var out []*section.FrequentSection
	for _, s := range sections {
		if foldRatio(s.Polyline, cfg.ProximityThreshold) <= params.FoldRatioLimit {
			out = append(out, s)
			continue
		}
		fold := foldPoint(s.Polyline, cfg.ProximityThreshold)
		if fold < 0 {
			out = append(out, s)
			continue
		}

		halves := []struct {
			suffix string
			poly   orb.LineString
		}{
			{"_out", s.Polyline[:fold]},
			{"_ret", s.Polyline[fold:]},
		}
		split := 0
		for _, h := range halves {
			length := geo.Length(h.poly)
			if length < cfg.MinSectionLength {
				continue
			}
			cp := *s
			cp.ID = s.ID + h.suffix
			cp.Polyline = h.poly
			cp.Distance = length
			cp.Bound = h.poly.Bound()
			cp.Portions = nil
			cp.PointDensity = nil
			out = append(out, &cp)
			split++
		}
		if split == 0 {
			out = append(out, s)
			continue
		}
		slog.Debug("Split folding section", "section", s.ID, "fold", fold)
	}
	return out
}

// mergeNearbySections drops sections mostly contained, forward or
// reversed, in a more-visited one. The containment distance is twice
// the proximity threshold: wide roads plus GPS error can separate two
// recordings of one path by well over the base threshold.
func mergeNearbySections(sections []*section.FrequentSection, cfg *params.SectionConfig) []*section.FrequentSection {
	if len(sections) < 2 {
		return sections
	}
	sort.Slice(sections, func(i, j int) bool {
		return sections[i].ObservationCount > sections[j].ObservationCount
	})

	mergeThreshold := 2 * cfg.ProximityThreshold
	keep := make([]bool, len(sections))
	for i := range keep {
		keep[i] = true
	}

	for i := range sections {
		if !keep[i] {
			continue
		}
		idx := newPointIndex(sections[i].Polyline, mergeThreshold)
		for j := i + 1; j < len(sections); j++ {
			if !keep[j] {
				continue
			}
			ratio := sections[i].Distance / maxf(sections[j].Distance, 1)
			if ratio > 3 || ratio < 1.0/3 {
				continue
			}
			forward := containment(sections[j].Polyline, idx, mergeThreshold)
			reversed := containment(reversedLine(sections[j].Polyline), idx, mergeThreshold)
			if maxf(forward, reversed) > params.MergeContainment {
				keep[j] = false
				slog.Debug("Merged nearby section",
					"into", sections[i].ID, "dropped", sections[j].ID,
					"containment", maxf(forward, reversed))
			}
		}
	}
	return filterKept(sections, keep)
}

// removeContainedSections deduplicates overlapping sections, shorter
// sections win: a specific stretch beats a long route that happens to
// include it.
func removeContainedSections(sections []*section.FrequentSection, cfg *params.SectionConfig) []*section.FrequentSection {
	if len(sections) < 2 {
		return sections
	}
	sort.Slice(sections, func(i, j int) bool {
		if sections[i].Distance != sections[j].Distance {
			return sections[i].Distance < sections[j].Distance
		}
		return sections[i].ObservationCount > sections[j].ObservationCount
	})

	keep := make([]bool, len(sections))
	for i := range keep {
		keep[i] = true
	}

	for i := range sections {
		if !keep[i] {
			continue
		}
		idxI := newPointIndex(sections[i].Polyline, cfg.ProximityThreshold)
		for j := i + 1; j < len(sections); j++ {
			if !keep[j] {
				continue
			}
			idxJ := newPointIndex(sections[j].Polyline, cfg.ProximityThreshold)
			jInI := containment(sections[j].Polyline, idxI, cfg.ProximityThreshold)
			iInJ := containment(sections[i].Polyline, idxJ, cfg.ProximityThreshold)

			switch {
			case jInI > params.ContainedInShorter:
				keep[j] = false
			case iInJ > params.ContainedInLonger:
				keep[i] = false
			case jInI > params.MergeContainment && iInJ > params.MergeContainment:
				keep[j] = false
			}
			if !keep[i] {
				break
			}
		}
	}
	return filterKept(sections, keep)
}

// containment is the fraction of line points within threshold of the
// indexed polyline.
func containment(line orb.LineString, idx *pointIndex, thresholdMeters float64) float64 {
	if len(line) == 0 {
		return 0
	}
	in := 0
	for _, p := range line {
		if n, _ := idx.Nearest(p, thresholdMeters); n >= 0 {
			in++
		}
	}
	return float64(in) / float64(len(line))
}

// splitHighDensitySections carves out portions of a section that carry
// markedly more traffic than its endpoints, keeping the original too.
func splitHighDensitySections(sections []*section.FrequentSection, tracks map[string]orb.LineString, cfg *params.SectionConfig) []*section.FrequentSection {
	var out []*section.FrequentSection
	for _, s := range sections {
		out = append(out, splitByDensity(s, tracks, cfg)...)
	}
	return out
}

type splitCandidate struct {
	startIdx int
	endIdx   int
	density  float64
}

func findSplitCandidates(s *section.FrequentSection) []splitCandidate {
	density := s.PointDensity
	if len(density) < params.MinSplitPoints*2 {
		return nil
	}

	window := len(density) / 10
	if window < 3 {
		window = 3
	}
	var startSum, endSum float64
	for i := 0; i < window; i++ {
		startSum += float64(density[i])
		endSum += float64(density[len(density)-1-i])
	}
	endpointDensity := (startSum + endSum) / (2 * float64(window))
	if endpointDensity < 1 {
		return nil
	}

	winSize := len(density) / 5
	if winSize < params.MinSplitPoints {
		winSize = params.MinSplitPoints
	}

	var candidates []splitCandidate
	i := winSize
	for i < len(density)-winSize {
		var sum float64
		for k := i - winSize/2; k < i+winSize/2; k++ {
			sum += float64(density[k])
		}
		windowDensity := sum / float64(winSize)

		if windowDensity/endpointDensity < params.SplitDensityRatio {
			i++
			continue
		}

		start, end := i-winSize/2, i+winSize/2
		for start > 0 && float64(density[start-1]) >= endpointDensity*1.5 {
			start--
		}
		for end < len(density)-1 && float64(density[end+1]) >= endpointDensity*1.5 {
			end++
		}

		length := geo.Length(s.Polyline[start : end+1])
		if length >= params.MinSplitLength && end-start >= params.MinSplitPoints {
			var portionSum float64
			for k := start; k <= end; k++ {
				portionSum += float64(density[k])
			}
			candidates = append(candidates, splitCandidate{
				startIdx: start,
				endIdx:   end,
				density:  portionSum / float64(end-start+1),
			})
			i = end + winSize
			continue
		}
		i++
	}
	return candidates
}

func splitByDensity(s *section.FrequentSection, tracks map[string]orb.LineString, cfg *params.SectionConfig) []*section.FrequentSection {
	candidates := findSplitCandidates(s)
	if len(candidates) == 0 {
		return []*section.FrequentSection{s}
	}

	var out []*section.FrequentSection
	for n, cand := range candidates {
		poly := s.Polyline[cand.startIdx : cand.endIdx+1]
		length := geo.Length(poly)
		idx := newPointIndex(poly, cfg.ProximityThreshold)

		// Re-verify which member activities actually ride the split
		// portion for at least half its length.
		var ids []string
		for _, id := range s.ActivityIDs {
			track, ok := tracks[id]
			if !ok {
				continue
			}
			var near orb.LineString
			for _, p := range track {
				if hit, _ := idx.Nearest(p, cfg.ProximityThreshold); hit >= 0 {
					near = append(near, p)
				}
			}
			if geo.Length(near) >= 0.5*length {
				ids = append(ids, id)
			}
		}
		if len(ids) < cfg.MinActivities {
			continue
		}

		cp := *s
		cp.ID = fmt.Sprintf("%s_split%d", s.ID, n)
		cp.Polyline = poly
		cp.Distance = length
		cp.Bound = poly.Bound()
		cp.ActivityIDs = ids
		cp.VisitCount = len(ids)
		cp.Portions = nil
		cp.ObservationCount = int(cand.density)
		cp.PointDensity = append([]int(nil), s.PointDensity[cand.startIdx:cand.endIdx+1]...)
		out = append(out, &cp)

		slog.Debug("Split high-density section",
			"parent", s.ID, "section", cp.ID, "activities", len(ids))
	}

	out = append(out, s)
	return out
}

func filterKept(sections []*section.FrequentSection, keep []bool) []*section.FrequentSection {
	out := sections[:0]
	for i, s := range sections {
		if keep[i] {
			out = append(out, s)
		}
	}
	return out
}

func reversedLine(line orb.LineString) orb.LineString {
	out := make(orb.LineString, len(line))
	for i, p := range line {
		out[len(line)-1-i] = p
	}
	return out
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
