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
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/rotblauer/routecat/engine"
)

var optStatsJSON bool

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print engine stats",
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)

		eng, err := engine.Open(engineConfig())
		if err != nil {
			log.Fatalln(err)
		}
		defer eng.Close()

		stats := eng.Stats()
		if optStatsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(stats); err != nil {
				log.Fatalln(err)
			}
			return
		}

		fmt.Printf("activities      %s\n", humanize.Comma(int64(stats.Activities)))
		fmt.Printf("groups          %s\n", humanize.Comma(int64(stats.Groups)))
		fmt.Printf("sections        %s\n", humanize.Comma(int64(stats.Sections)))
		fmt.Printf("potentials      %s\n", humanize.Comma(int64(stats.Potentials)))
		fmt.Printf("total distance  %s\n", humanize.SIWithDigits(stats.TotalDistance, 1, "m"))
		for sport, n := range stats.Sports {
			fmt.Printf("  %-14s%s\n", sport, humanize.Comma(int64(n)))
		}
		if stats.SectionsDirty {
			fmt.Println("sections stale; run `routecat detect`")
		}
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.PersistentFlags().BoolVar(&optStatsJSON, "json", false, "JSON output")
}
