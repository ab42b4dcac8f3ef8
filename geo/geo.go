// Package geo holds the spherical-distance and polyline primitives the
// matching and section packages are built on.
package geo

import (
	"math"

	"github.com/paulmach/orb"
)

const (
	// EarthRadius in meters.
	EarthRadius = 6371000.0

	// MetersPerLatDegree is approximately constant over the globe.
	MetersPerLatDegree = 111320.0
)

// Haversine returns the great-circle distance between two points in
// meters. Points are orb convention: [lng, lat].
func Haversine(a, b orb.Point) float64 {
	lat1 := a.Lat() * math.Pi / 180
	lat2 := b.Lat() * math.Pi / 180
	dLat := (b.Lat() - a.Lat()) * math.Pi / 180
	dLng := (b.Lon() - a.Lon()) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return EarthRadius * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Bearing returns the initial great-circle bearing from a to b, in
// degrees clockwise from north, normalized to [0, 360).
func Bearing(a, b orb.Point) float64 {
	lat1 := a.Lat() * math.Pi / 180
	lat2 := b.Lat() * math.Pi / 180
	dLng := (b.Lon() - a.Lon()) * math.Pi / 180

	y := math.Sin(dLng) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLng)
	deg := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}

// Length returns the haversine length of a polyline in meters.
func Length(line orb.LineString) float64 {
	var sum float64
	for i := 1; i < len(line); i++ {
		sum += Haversine(line[i-1], line[i])
	}
	return sum
}

// CumulativeLengths returns per-vertex cumulative distance, meters.
// Result has len(line) entries, first is 0.
func CumulativeLengths(line orb.LineString) []float64 {
	if len(line) == 0 {
		return nil
	}
	cum := make([]float64, len(line))
	for i := 1; i < len(line); i++ {
		cum[i] = cum[i-1] + Haversine(line[i-1], line[i])
	}
	return cum
}

// Resample returns line resampled to n points uniformly spaced by arc
// length. Inputs with fewer than 2 points, or n < 2, are returned as a
// copy. A zero-length line yields n copies of its first point.
func Resample(line orb.LineString, n int) orb.LineString {
	if len(line) < 2 || n < 2 {
		out := make(orb.LineString, len(line))
		copy(out, line)
		return out
	}

	cum := CumulativeLengths(line)
	total := cum[len(cum)-1]
	out := make(orb.LineString, 0, n)

	if total == 0 {
		for i := 0; i < n; i++ {
			out = append(out, line[0])
		}
		return out
	}

	seg := 1
	for i := 0; i < n; i++ {
		target := total * float64(i) / float64(n-1)
		for seg < len(cum)-1 && cum[seg] < target {
			seg++
		}
		prev, next := seg-1, seg
		span := cum[next] - cum[prev]
		var t float64
		if span > 0 {
			t = (target - cum[prev]) / span
		}
		out = append(out, orb.Point{
			line[prev][0] + t*(line[next][0]-line[prev][0]),
			line[prev][1] + t*(line[next][1]-line[prev][1]),
		})
	}
	return out
}

// MetersToDegrees converts a distance in meters to approximate degrees
// of latitude.
func MetersToDegrees(meters float64) float64 {
	return meters / MetersPerLatDegree
}

// LngScale returns the longitude-degree compression factor at a
// latitude, clamped away from the poles.
func LngScale(lat float64) float64 {
	return math.Max(math.Abs(math.Cos(lat*math.Pi/180)), 0.1)
}

// Bound returns the bounding box of a polyline, padded by pad degrees.
func Bound(line orb.LineString, pad float64) orb.Bound {
	b := line.Bound()
	if pad != 0 {
		b.Min[0] -= pad
		b.Min[1] -= pad
		b.Max[0] += pad
		b.Max[1] += pad
	}
	return b
}

// Center returns the midpoint of a polyline's bounding box.
func Center(line orb.LineString) orb.Point {
	return line.Bound().Center()
}
