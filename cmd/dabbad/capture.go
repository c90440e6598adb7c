package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/packetd/dabba/packetmmap"
	"github.com/packetd/dabba/registry"
	"github.com/packetd/dabba/service"
)

func newCaptureCmd(reg *registry.Registry) *cobra.Command {
	var (
		iface      string
		pcapPath   string
		append_    bool
		frameCount uint32
		filterPath string
	)

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Start capturing an interface to a pcap file",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := service.CaptureRequest{
				Interface:  iface,
				PCAPPath:   pcapPath,
				Append:     append_,
				FrameSize:  packetmmap.FrameSizeStandard,
				FrameCount: frameCount,
			}
			if filterPath != "" {
				f, err := os.Open(filterPath)
				if err != nil {
					return err
				}
				defer f.Close()
				req.Filter = f
			}

			id, err := service.StartCapture(context.Background(), reg, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "started capture worker %d\n", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&iface, "interface", "", "interface to capture from")
	cmd.Flags().StringVar(&pcapPath, "pcap", "", "pcap file to write to")
	cmd.Flags().BoolVar(&append_, "append", false, "append to an existing pcap file instead of creating one")
	cmd.Flags().Uint32Var(&frameCount, "frame-count", 128, "ring frame count, must be a power of two >= 8")
	cmd.Flags().StringVar(&filterPath, "filter", "", "path to a BPF program file")

	return cmd
}
