// Package testdata generates synthetic GPS tracks for tests. All
// generators are deterministic; jitter takes an explicit seed.
package testdata

import (
	"math"
	"math/rand"

	"github.com/paulmach/orb"

	"github.com/rotblauer/routecat/geo"
)

// StraightTrack returns n points heading due north from (lat, lng),
// spaced stepMeters apart.
func StraightTrack(lat, lng float64, n int, stepMeters float64) orb.LineString {
	dLat := stepMeters / geo.MetersPerLatDegree
	line := make(orb.LineString, 0, n)
	for i := 0; i < n; i++ {
		line = append(line, orb.Point{lng, lat + float64(i)*dLat})
	}
	return line
}

// OffsetTrack shifts a track east by offsetMeters.
func OffsetTrack(line orb.LineString, offsetMeters float64) orb.LineString {
	out := make(orb.LineString, 0, len(line))
	for _, p := range line {
		dLng := offsetMeters / (geo.MetersPerLatDegree * geo.LngScale(p.Lat()))
		out = append(out, orb.Point{p.Lon() + dLng, p.Lat()})
	}
	return out
}

// Reversed returns the track in reverse point order.
func Reversed(line orb.LineString) orb.LineString {
	out := make(orb.LineString, len(line))
	for i, p := range line {
		out[len(line)-1-i] = p
	}
	return out
}

// Jittered perturbs every point by up to maxMeters in each axis.
func Jittered(line orb.LineString, maxMeters float64, seed int64) orb.LineString {
	rng := rand.New(rand.NewSource(seed))
	out := make(orb.LineString, 0, len(line))
	for _, p := range line {
		dLat := (rng.Float64()*2 - 1) * maxMeters / geo.MetersPerLatDegree
		dLng := (rng.Float64()*2 - 1) * maxMeters / (geo.MetersPerLatDegree * geo.LngScale(p.Lat()))
		out = append(out, orb.Point{p.Lon() + dLng, p.Lat() + dLat})
	}
	return out
}

// LoopTrack returns a closed circular track of the given radius
// centered at (lat, lng).
func LoopTrack(lat, lng float64, n int, radiusMeters float64) orb.LineString {
	line := make(orb.LineString, 0, n+1)
	rLat := radiusMeters / geo.MetersPerLatDegree
	rLng := radiusMeters / (geo.MetersPerLatDegree * geo.LngScale(lat))
	for i := 0; i <= n; i++ {
		theta := 2 * math.Pi * float64(i) / float64(n)
		line = append(line, orb.Point{lng + rLng*math.Cos(theta), lat + rLat*math.Sin(theta)})
	}
	return line
}

// OutAndBack returns a track that goes out along line and returns the
// same way.
func OutAndBack(line orb.LineString) orb.LineString {
	out := make(orb.LineString, 0, 2*len(line)-1)
	out = append(out, line...)
	for i := len(line) - 2; i >= 0; i-- {
		out = append(out, line[i])
	}
	return out
}

// Concat joins tracks end to end.
func Concat(lines ...orb.LineString) orb.LineString {
	var out orb.LineString
	for _, l := range lines {
		out = append(out, l...)
	}
	return out
}

// UniformTimes returns a cumulative time stream covering a track at a
// constant speed (meters/second).
func UniformTimes(line orb.LineString, speedMps float64) []float64 {
	ts := make([]float64, len(line))
	cum := geo.CumulativeLengths(line)
	for i, d := range cum {
		ts[i] = d / speedMps
	}
	return ts
}
