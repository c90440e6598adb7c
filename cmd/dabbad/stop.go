package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/packetd/dabba/registry"
	"github.com/packetd/dabba/service"
	"github.com/packetd/dabba/worker"
)

func newStopCmd(reg *registry.Registry) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "stop [id]",
		Short: "Stop a running worker, or all of them with --all",
		RunE: func(cmd *cobra.Command, args []string) error {
			if all {
				reg.StopAll()
				return nil
			}
			if len(args) != 1 {
				return cmd.Help()
			}
			n, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return err
			}
			return service.StopCapture(reg, worker.ID(n))
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "stop every running worker")

	return cmd
}
