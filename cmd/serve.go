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
	"log"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/rotblauer/routecat/daemon/webd"
	"github.com/rotblauer/routecat/engine"
	"github.com/rotblauer/routecat/params"
)

var (
	optHTTPAddr    string
	optHTTPNetwork string
	optSmooth      bool
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the engine webserver",
	Long:  `Opens the engine and serves routes, sections, and heatmaps over HTTP.`,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)

		cfg := engineConfig()
		cfg.SmoothTracks = optSmooth
		eng, err := engine.Open(cfg)
		if err != nil {
			log.Fatalln(err)
		}
		defer eng.Close()

		server := webd.NewWebDaemon(&params.WebDaemonConfig{
			DataDir: cfg.DataDir,
			ListenerConfig: params.ListenerConfig{
				Network: optHTTPNetwork,
				Address: optHTTPAddr,
			},
			Engine: cfg,
		}, eng)

		slog.Info("serve.Run")
		if err := server.Run(); err != nil {
			log.Fatalln(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	defaults := params.DefaultWebListenerConfig()
	pFlags := serveCmd.PersistentFlags()
	pFlags.StringVar(&optHTTPAddr, "address", defaults.Address, "HTTP address to listen on")
	pFlags.StringVar(&optHTTPNetwork, "network", defaults.Network, "Listener network (tcp, unix)")
	pFlags.BoolVar(&optSmooth, "smooth", false, "Kalman-smooth incoming tracks")
}
