package main

import (
	"github.com/spf13/cobra"

	"github.com/tturner/fieldsim/internal/app"
)

func newFINSCmd() *cobra.Command {
	var opts app.FINSOptions

	cmd := &cobra.Command{
		Use:   "fins",
		Short: "Run the OMRON FINS simulator (UDP)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.RunFINS(opts)
		},
	}

	cmd.Flags().StringVar(&opts.ListenIP, "listen", "", "Listen IP (overrides config)")
	cmd.Flags().IntVar(&opts.Port, "port", 0, "Listen port (overrides config)")
	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "Config file path (defaults apply when omitted)")
	cmd.Flags().StringVar(&opts.PCAPFile, "pcap", "", "Write exchanged frames to a pcap file")
	cmd.Flags().StringVar(&opts.LogLevel, "log-level", "", "Log level: silent|error|info|verbose|debug")
	cmd.Flags().StringVar(&opts.LogFile, "log-file", "", "Also write logs to this file")
	cmd.Flags().BoolVar(&opts.NoSim, "no-sim", false, "Disable the background process simulator")

	return cmd
}
