package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/packetd/dabba/packetmmap"
	"github.com/packetd/dabba/registry"
	"github.com/packetd/dabba/service"
)

func newReplayCmd(reg *registry.Registry) *cobra.Command {
	var (
		iface      string
		pcapPath   string
		frameCount uint32
	)

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a pcap file onto an interface, looping at end of file",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := service.ReplayRequest{
				Interface:  iface,
				PCAPPath:   pcapPath,
				FrameSize:  packetmmap.FrameSizeStandard,
				FrameCount: frameCount,
			}
			id, err := service.StartReplay(context.Background(), reg, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "started replay worker %d\n", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&iface, "interface", "", "interface to replay onto")
	cmd.Flags().StringVar(&pcapPath, "pcap", "", "pcap file to read from")
	cmd.Flags().Uint32Var(&frameCount, "frame-count", 32, "ring frame count, must be a power of two >= 8")

	return cmd
}
