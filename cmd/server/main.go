package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "gpscodec-svr",
		Short:         "TCP server for GPS tracker protocols (HuaSheng, RoboTrack, Teltonika)",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Config file (.env or YAML); env vars take precedence")

	root.AddCommand(newServeCommand(&configPath))
	root.AddCommand(newReplayCommand())
	return root
}
