package geo

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func TestHaversine(t *testing.T) {
	cases := []struct {
		name string
		a, b orb.Point
		want float64
		tol  float64
	}{
		{name: "zero", a: orb.Point{10, 50}, b: orb.Point{10, 50}, want: 0, tol: 0.001},
		{name: "one degree lat", a: orb.Point{0, 0}, b: orb.Point{0, 1}, want: 111195, tol: 100},
		{name: "one degree lng at 60N", a: orb.Point{0, 60}, b: orb.Point{1, 60}, want: 55597, tol: 100},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Haversine(c.a, c.b)
			if math.Abs(got-c.want) > c.tol {
				t.Errorf("Haversine = %.1f, want %.1f", got, c.want)
			}
		})
	}
}

func TestBearing(t *testing.T) {
	cases := []struct {
		name string
		a, b orb.Point
		want float64
		tol  float64
	}{
		{name: "due north", a: orb.Point{8, 47}, b: orb.Point{8, 48}, want: 0, tol: 0.01},
		{name: "due south", a: orb.Point{8, 48}, b: orb.Point{8, 47}, want: 180, tol: 0.01},
		{name: "due east at equator", a: orb.Point{0, 0}, b: orb.Point{1, 0}, want: 90, tol: 0.01},
		{name: "due west at equator", a: orb.Point{1, 0}, b: orb.Point{0, 0}, want: 270, tol: 0.01},
		{name: "northeast", a: orb.Point{0, 0}, b: orb.Point{1, 1}, want: 45, tol: 0.5},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Bearing(c.a, c.b)
			if math.Abs(got-c.want) > c.tol {
				t.Errorf("Bearing = %.2f, want %.2f", got, c.want)
			}
		})
	}
}

func TestLength(t *testing.T) {
	line := orb.LineString{{0, 0}, {0, 0.01}, {0, 0.02}}
	got := Length(line)
	want := 2 * 1111.95
	if math.Abs(got-want) > 5 {
		t.Errorf("Length = %.1f, want about %.1f", got, want)
	}
	if Length(orb.LineString{{1, 1}}) != 0 {
		t.Error("single point line should have zero length")
	}
}

func TestResample(t *testing.T) {
	line := orb.LineString{{0, 0}, {0, 0.1}}
	out := Resample(line, 11)
	if len(out) != 11 {
		t.Fatalf("got %d points, want 11", len(out))
	}
	if out[0] != line[0] || out[10] != line[1] {
		t.Error("resample must preserve endpoints")
	}
	// Uniform spacing along a straight segment.
	for i := 1; i < len(out); i++ {
		step := out[i][1] - out[i-1][1]
		if math.Abs(step-0.01) > 1e-9 {
			t.Errorf("step %d = %v, want 0.01", i, step)
		}
	}
}

func TestResampleDegenerate(t *testing.T) {
	if got := Resample(orb.LineString{{1, 2}}, 10); len(got) != 1 {
		t.Errorf("short input should pass through, got %d points", len(got))
	}
	same := orb.LineString{{5, 5}, {5, 5}, {5, 5}}
	out := Resample(same, 4)
	if len(out) != 4 {
		t.Fatalf("got %d points, want 4", len(out))
	}
	for _, p := range out {
		if p != (orb.Point{5, 5}) {
			t.Errorf("zero-length line must resample to copies of its point, got %v", p)
		}
	}
}

func TestCumulativeLengths(t *testing.T) {
	line := orb.LineString{{0, 0}, {0, 0.01}, {0, 0.03}}
	cum := CumulativeLengths(line)
	if cum[0] != 0 {
		t.Error("first cumulative distance must be 0")
	}
	if cum[2] <= cum[1] || cum[1] <= 0 {
		t.Errorf("cumulative distances must increase: %v", cum)
	}
}

func TestLngScale(t *testing.T) {
	if s := LngScale(0); math.Abs(s-1) > 1e-9 {
		t.Errorf("equator scale = %v, want 1", s)
	}
	if s := LngScale(89.9); s != 0.1 {
		t.Errorf("polar scale should clamp to 0.1, got %v", s)
	}
}
