/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/paulmach/orb"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/rotblauer/routecat/engine"
	"github.com/rotblauer/routecat/stream"
	"github.com/rotblauer/routecat/types/activity"
)

var optImportSmooth bool

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import [files...]",
	Short: "Import activities from NDJSON files or stdin",
	Long: `Reads newline-delimited JSON activities and stores them in the engine.

Each line is one activity:

  {"id": "...", "sport": "ride", "track": [[lng,lat],...],
   "time_stream": [0, 4.1, ...], "moving_time": 3600,
   "start_time": "2024-11-20T08:00:00Z"}

Files ending in .gz are decompressed. With no file arguments, stdin is
read. Lines that fail to decode or validate are logged and skipped.

Examples:

  zcat rides.ndjson.gz | routecat import
  routecat import rides.ndjson walks.ndjson.gz
`,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)

		cfg := engineConfig()
		cfg.SmoothTracks = optImportSmooth
		eng, err := engine.Open(cfg)
		if err != nil {
			log.Fatalln(err)
		}
		defer eng.Close()

		started := time.Now()
		var stored, skipped int
		ctx := context.Background()

		importReader := func(r io.Reader) {
			acts := stream.Transform(ctx, func(line []byte) *activity.Activity {
				act, err := parseActivity(line)
				if err != nil {
					slog.Error("Failed to decode activity", "error", err)
					return nil
				}
				return act
			}, stream.Lines(ctx, r))

			stream.Sink(ctx, func(act *activity.Activity) {
				if act == nil {
					skipped++
					return
				}
				if err := eng.AddActivity(act); err != nil {
					if errors.Is(err, engine.ErrActivityExists) {
						slog.Warn("Skipping duplicate activity", "id", act.ID)
					} else {
						slog.Error("Failed to store activity", "id", act.ID, "error", err)
					}
					skipped++
					return
				}
				stored++
			}, acts)
		}

		if len(args) == 0 {
			importReader(os.Stdin)
		}
		for _, path := range args {
			f, err := os.Open(path)
			if err != nil {
				log.Fatalln(err)
			}
			var r io.Reader = f
			if strings.HasSuffix(path, ".gz") {
				gzr, err := gzip.NewReader(f)
				if err != nil {
					log.Fatalln(err)
				}
				r = gzr
			}
			importReader(r)
			f.Close()
		}

		slog.Info("Import done",
			"stored", humanize.Comma(int64(stored)),
			"skipped", humanize.Comma(int64(skipped)),
			"elapsed", time.Since(started).Round(time.Millisecond))
	},
}

// parseActivity decodes one NDJSON activity line.
func parseActivity(line []byte) (*activity.Activity, error) {
	if !gjson.ValidBytes(line) {
		return nil, fmt.Errorf("invalid JSON")
	}
	id := gjson.GetBytes(line, "id").String()
	if id == "" {
		return nil, fmt.Errorf("missing id")
	}

	coords := gjson.GetBytes(line, "track").Array()
	track := make(orb.LineString, 0, len(coords))
	for _, c := range coords {
		pair := c.Array()
		if len(pair) != 2 {
			return nil, fmt.Errorf("activity %s: bad coordinate %q", id, c.Raw)
		}
		track = append(track, orb.Point{pair[0].Float(), pair[1].Float()})
	}

	act := &activity.Activity{
		ID:         id,
		Sport:      gjson.GetBytes(line, "sport").String(),
		Track:      track,
		MovingTime: gjson.GetBytes(line, "moving_time").Float(),
	}

	if ts := gjson.GetBytes(line, "time_stream").Array(); len(ts) > 0 {
		act.TimeStream = make([]float64, len(ts))
		for i, v := range ts {
			act.TimeStream[i] = v.Float()
		}
	}
	if st := gjson.GetBytes(line, "start_time").String(); st != "" {
		t, err := time.Parse(time.RFC3339, st)
		if err != nil {
			return nil, fmt.Errorf("activity %s: start_time: %w", id, err)
		}
		act.StartTime = t
	}
	return act, act.Validate()
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.PersistentFlags().BoolVar(&optImportSmooth, "smooth", false, "Kalman-smooth imported tracks")
}
