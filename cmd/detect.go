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
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/rotblauer/routecat/engine"
	"github.com/rotblauer/routecat/events"
	"github.com/rotblauer/routecat/metrics/influxdb"
	"github.com/rotblauer/routecat/types/section"
)

// detectCmd represents the detect command
var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Run frequent-section detection once",
	Long: `Runs multi-scale section detection over every stored activity and
prints summary stats. Interruptible; a canceled run keeps previously
detected sections.`,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)

		cfg := engineConfig()
		eng, err := engine.Open(cfg)
		if err != nil {
			log.Fatalln(err)
		}
		defer eng.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

		// Ship run stats to InfluxDB when configured.
		if cfg.Influx != nil {
			reporter := influxdb.NewReporter(cfg.Influx)
			results := make(chan *section.MultiScaleResult, 1)
			sub := events.SectionsDetected.Subscribe(results)
			defer sub.Unsubscribe()
			go func() {
				for result := range results {
					if err := reporter.ExportDetection(result); err != nil {
						slog.Error("Failed to export detection metrics", "error", err)
					}
				}
			}()
		}

		task, err := eng.StartDetection(ctx)
		if err != nil {
			log.Fatalln(err)
		}

		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
	pollLoop:
		for {
			select {
			case sig := <-interrupt:
				fmt.Fprintln(os.Stderr, "interrupted:", sig)
				task.Cancel()
			case <-ticker.C:
				status := task.Poll()
				if status.State != engine.TaskRunning {
					break pollLoop
				}
				fmt.Fprintf(os.Stderr, "\r%-12s %d/%d", status.Progress.Phase,
					status.Progress.Done, status.Progress.Total)
			}
		}
		fmt.Fprintln(os.Stderr)

		status := task.Poll()
		if status.Err != nil {
			log.Fatalln(status.Err)
		}
		if status.State == engine.TaskIdle {
			fmt.Println("detection canceled, prior sections kept")
			return
		}

		stats := eng.Stats()
		fmt.Printf("activities  %s\n", humanize.Comma(int64(stats.Activities)))
		fmt.Printf("groups      %s\n", humanize.Comma(int64(stats.Groups)))
		fmt.Printf("sections    %s\n", humanize.Comma(int64(stats.Sections)))
		fmt.Printf("potentials  %s\n", humanize.Comma(int64(stats.Potentials)))
	},
}

func init() {
	rootCmd.AddCommand(detectCmd)
}
