package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/packetd/dabba/registry"
	"github.com/packetd/dabba/worker"
)

func newReconfigureCmd(reg *registry.Registry) *cobra.Command {
	var (
		policyName string
		priority   int
		affinity   string
		havePrio   bool
	)

	cmd := &cobra.Command{
		Use:   "reconfigure [id]",
		Short: "Change a running worker's scheduling policy, priority, or CPU affinity",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return cmd.Help()
			}
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return err
			}

			var policy *worker.SchedPolicy
			if policyName != "" {
				p, err := parseSchedPolicy(policyName)
				if err != nil {
					return err
				}
				policy = &p
			}

			var prio *int
			if havePrio {
				prio = &priority
			}

			var cpus []int
			if affinity != "" {
				cpus, err = registry.ParseAffinity(affinity)
				if err != nil {
					return err
				}
			}

			if err := reg.Reconfigure(worker.ID(id), policy, prio, cpus); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reconfigured worker %d\n", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&policyName, "policy", "", "scheduling policy: other, fifo, rr")
	cmd.Flags().IntVar(&priority, "priority", 0, "scheduling priority")
	cmd.Flags().StringVar(&affinity, "affinity", "", "CPU affinity, e.g. 0,5,7,9-11")
	cmd.PreRun = func(cmd *cobra.Command, args []string) {
		havePrio = cmd.Flags().Changed("priority")
	}

	return cmd
}

func parseSchedPolicy(s string) (worker.SchedPolicy, error) {
	switch s {
	case "other":
		return worker.SchedOther, nil
	case "fifo":
		return worker.SchedFIFO, nil
	case "rr":
		return worker.SchedRR, nil
	default:
		return 0, fmt.Errorf("unknown scheduling policy %q", s)
	}
}

func newCapabilitiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "capabilities",
		Short: "List the priority range the kernel accepts for each scheduling policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			caps, err := registry.Capabilities()
			if err != nil {
				return err
			}
			for _, c := range caps {
				fmt.Fprintf(cmd.OutOrStdout(), "%v\t%d\t%d\n", c.Policy, c.PrioMin, c.PrioMax)
			}
			return nil
		},
	}
}
