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
	"encoding/json"
	"log"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rotblauer/routecat/engine"
	"github.com/rotblauer/routecat/flat"
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export activities, groups, and sections as gzipped NDJSON",
	Long: `Writes the engine contents to <datadir>/exports as gzipped NDJSON
files. Activity lines use the same shape 'routecat import' reads, so an
export can seed another engine.`,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)

		eng, err := engine.Open(engineConfig())
		if err != nil {
			log.Fatalln(err)
		}
		defer eng.Close()

		dest := flat.NewFlatWithRoot(viper.GetString("datadir")).ForExports()
		if err := dest.MkdirAll(); err != nil {
			log.Fatalln(err)
		}

		var nActs int
		err = writeNDJSONGZ(dest, flat.ActivitiesFileName, func(write func(any) error) error {
			for _, meta := range eng.Activities() {
				act, err := eng.Activity(meta.ID)
				if err != nil {
					return err
				}
				if err := write(act); err != nil {
					return err
				}
				nActs++
			}
			return nil
		})
		if err != nil {
			log.Fatalln(err)
		}

		groups := eng.Groups()
		err = writeNDJSONGZ(dest, flat.GroupsFileName, func(write func(any) error) error {
			for _, g := range groups {
				if err := write(g); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			log.Fatalln(err)
		}

		sections, err := eng.Sections()
		if err != nil {
			log.Fatalln(err)
		}
		err = writeNDJSONGZ(dest, flat.SectionsFileName, func(write func(any) error) error {
			for _, s := range sections {
				if err := write(s); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			log.Fatalln(err)
		}

		slog.Info("Export done", "path", dest.Path(),
			"activities", humanize.Comma(int64(nActs)),
			"groups", humanize.Comma(int64(len(groups))),
			"sections", humanize.Comma(int64(len(sections))))
	},
}

// writeNDJSONGZ truncates and rewrites one export file, one JSON value
// per line.
func writeNDJSONGZ(dest *flat.Flat, name string, fill func(write func(any) error) error) error {
	gzw, err := dest.NamedGZWriter(name, &flat.GZFileWriterConfig{
		CompressionLevel: gzip.DefaultCompression,
		Flag:             os.O_WRONLY | os.O_CREATE | os.O_TRUNC,
		FilePerm:         0660,
		DirPerm:          0770,
	})
	if err != nil {
		return err
	}
	enc := json.NewEncoder(gzw.Writer())
	if err := fill(func(v any) error { return enc.Encode(v) }); err != nil {
		gzw.Close()
		return err
	}
	return gzw.Close()
}

func init() {
	rootCmd.AddCommand(exportCmd)
}
