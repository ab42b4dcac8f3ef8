// Package influxdb posts engine activity to an InfluxDB v2 Write API,
// one measurement per stored activity and one per detection run.
package influxdb

import (
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/rotblauer/routecat/params"
	"github.com/rotblauer/routecat/types/activity"
	"github.com/rotblauer/routecat/types/section"
)

// Reporter writes engine measurements. Zero value is unusable, use
// NewReporter.
type Reporter struct {
	cfg *params.InfluxConfig
}

func NewReporter(cfg *params.InfluxConfig) *Reporter {
	return &Reporter{cfg: cfg}
}

// export writes a batch of points. The Write API buffers and flushes;
// the last async error encountered is returned.
func (r *Reporter) export(points []*write.Point) error {
	opts := influxdb2.DefaultOptions()
	opts.SetPrecision(time.Second)
	client := influxdb2.NewClientWithOptions(r.cfg.URL, r.cfg.Token, opts)
	writeAPI := client.WriteAPI(r.cfg.Org, r.cfg.Bucket)

	// Errors returns a channel for reading errors which occur during
	// async writes. Must be called before performing any writes for
	// errors to be collected. The chan is unbuffered and must be
	// drained or the writer will block.
	errorsCh := writeAPI.Errors()
	var err error
	wait := sync.WaitGroup{}
	wait.Add(1)
	go func() {
		defer wait.Done()
		for e := range errorsCh {
			if e != nil {
				err = e
			}
		}
	}()

	for _, p := range points {
		writeAPI.WritePoint(p)
	}
	writeAPI.Flush()
	client.Close()
	wait.Wait()
	return err
}

// ExportActivity posts one stored activity.
func (r *Reporter) ExportActivity(act *activity.Activity, distance float64) error {
	at := act.StartTime
	if at.IsZero() {
		at = time.Now()
	}
	p := influxdb2.NewPointWithMeasurement("activity").
		SetTime(at).
		AddTag("sport", act.Sport).
		AddTag("id", act.ID).
		AddField("points", len(act.Track)).
		AddField("distance", distance).
		AddField("moving_time", act.MovingTime).
		AddField("has_times", len(act.TimeStream) > 0)
	return r.export([]*write.Point{p})
}

// ExportDetection posts summary stats of one detection run.
func (r *Reporter) ExportDetection(result *section.MultiScaleResult) error {
	p := influxdb2.NewPointWithMeasurement("detection").
		SetTime(time.Now()).
		AddField("activities", result.Stats.ActivitiesProcessed).
		AddField("overlaps", result.Stats.OverlapsFound).
		AddField("sections", len(result.Sections)).
		AddField("potentials", len(result.Potentials)).
		AddField("elapsed_ms", result.Stats.Elapsed.Milliseconds())
	for scale, n := range result.Stats.SectionsByScale {
		p.AddField("sections_"+scale, n)
	}
	return r.export([]*write.Point{p})
}
