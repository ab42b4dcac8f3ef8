package cmd

import (
	"errors"
	"testing"

	"github.com/rotblauer/routecat/types/activity"
)

func TestParseActivity(t *testing.T) {
	line := []byte(`{"id":"a1","sport":"ride","track":[[-122.0,45.0],[-122.0,45.001],[-122.0,45.002]],"time_stream":[0,10,20],"moving_time":20,"start_time":"2024-11-20T08:00:00Z"}`)
	act, err := parseActivity(line)
	if err != nil {
		t.Fatal(err)
	}
	if act.ID != "a1" || act.Sport != "ride" {
		t.Errorf("id/sport = %q/%q", act.ID, act.Sport)
	}
	if len(act.Track) != 3 || len(act.TimeStream) != 3 {
		t.Errorf("track/timestream lengths = %d/%d", len(act.Track), len(act.TimeStream))
	}
	if act.Track[0].Lon() != -122.0 || act.Track[0].Lat() != 45.0 {
		t.Errorf("first point = %v", act.Track[0])
	}
	if act.StartTime.IsZero() || act.MovingTime != 20 {
		t.Errorf("start/moving = %v/%v", act.StartTime, act.MovingTime)
	}
}

func TestParseActivityErrors(t *testing.T) {
	cases := []struct {
		name string
		line string
	}{
		{"garbage", `not json`},
		{"missing id", `{"sport":"ride","track":[[0,0],[1,1]]}`},
		{"bad coordinate", `{"id":"x","track":[[0]]}`},
		{"bad start time", `{"id":"x","track":[[0,0],[1,1]],"start_time":"yesterday"}`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := parseActivity([]byte(c.line)); err == nil {
				t.Error("expected error")
			}
		})
	}

	// Too few points fails validation, not parsing.
	if _, err := parseActivity([]byte(`{"id":"x","track":[[0,0]]}`)); !errors.Is(err, activity.ErrTooFewPoints) {
		t.Errorf("err = %v, want ErrTooFewPoints", err)
	}
}
