// Package section detects frequent sections: stretches of path shared
// by several activities even when their full routes differ.
package section

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/rotblauer/routecat/geo"
)

// pointIndex is a uniform grid over one polyline for nearest-point
// queries. Cell size equals the query threshold so a 3x3 neighborhood
// scan is sufficient.
type pointIndex struct {
	line    orb.LineString
	cells   map[[2]int][]int
	cellLat float64
	cellLng float64
}

func newPointIndex(line orb.LineString, thresholdMeters float64) *pointIndex {
	cellLat := geo.MetersToDegrees(thresholdMeters)
	scale := 1.0
	if len(line) > 0 {
		scale = geo.LngScale(line[0].Lat())
	}
	idx := &pointIndex{
		line:    line,
		cells:   make(map[[2]int][]int),
		cellLat: cellLat,
		cellLng: cellLat / scale,
	}
	for i, p := range line {
		c := idx.cell(p)
		idx.cells[c] = append(idx.cells[c], i)
	}
	return idx
}

func (x *pointIndex) cell(p orb.Point) [2]int {
	return [2]int{
		int(math.Floor(p.Lat() / x.cellLat)),
		int(math.Floor(p.Lon() / x.cellLng)),
	}
}

// Nearest returns the index of the closest line point within
// thresholdMeters of p, or -1.
func (x *pointIndex) Nearest(p orb.Point, thresholdMeters float64) (int, float64) {
	c := x.cell(p)
	best, bestDist := -1, math.Inf(1)
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			for _, i := range x.cells[[2]int{c[0] + dr, c[1] + dc}] {
				if d := geo.Haversine(p, x.line[i]); d < bestDist {
					best, bestDist = i, d
				}
			}
		}
	}
	if best < 0 || bestDist > thresholdMeters {
		return -1, math.Inf(1)
	}
	return best, bestDist
}
