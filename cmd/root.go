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
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rotblauer/routecat/params"
)

var (
	optDatadir string
	optVerbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "routecat",
	Short: "Route matching, grouping, and frequent-section detection for GPS activities",
	Long: `routecat ingests GPS activities, matches and groups repeated routes,
detects frequently-ridden sections across activities, and serves the
results over HTTP.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	pFlags := rootCmd.PersistentFlags()
	pFlags.StringVar(&optDatadir, "datadir", params.DatadirRoot, "Engine data directory")
	pFlags.BoolVarP(&optVerbose, "verbose", "v", false, "Debug logging")

	viper.SetEnvPrefix("ROUTECAT")
	viper.AutomaticEnv()
	_ = viper.BindPFlag("datadir", pFlags.Lookup("datadir"))
	_ = viper.BindPFlag("verbose", pFlags.Lookup("verbose"))
}

// setDefaultSlog configures the process logger from the verbosity
// flag. Call it first in every command's Run.
func setDefaultSlog(cmd *cobra.Command, args []string) {
	level := slog.LevelInfo
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

// engineConfig assembles the engine configuration from flags and env.
func engineConfig() *params.EngineConfig {
	cfg := params.DefaultEngineConfig()
	cfg.DataDir = viper.GetString("datadir")
	cfg.Influx = params.InfluxConfigFromEnv()
	return cfg
}
