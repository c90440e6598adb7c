package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/packetd/dabba/registry"
)

func newListCmd(reg *registry.Registry) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List running capture and replay workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, id := range reg.List() {
				rec, ok := reg.Get(id)
				if !ok {
					continue
				}
				path, err := rec.PCAPPath()
				if err != nil {
					path = "?"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\t%s\t%s\n", id, rec.Kind, rec.Interface, rec.Status(), path)
			}
			return nil
		},
	}
}
