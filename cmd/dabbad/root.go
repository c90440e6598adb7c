package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/packetd/dabba/internal/config"
	"github.com/packetd/dabba/registry"
)

var configPath string

func newRootCmd(reg *registry.Registry) *cobra.Command {
	root := &cobra.Command{
		Use:   "dabbad",
		Short: "Capture and replay traffic over packet-mmap rings",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.WorkerLogDir != "" {
				logrus.WithField("worker_log_dir", cfg.WorkerLogDir).Debug("loaded daemon config")
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a TOML config file")

	root.AddCommand(newCaptureCmd(reg))
	root.AddCommand(newReplayCmd(reg))
	root.AddCommand(newListCmd(reg))
	root.AddCommand(newStopCmd(reg))
	root.AddCommand(newReconfigureCmd(reg))
	root.AddCommand(newCapabilitiesCmd())

	return root
}

func loadConfig() (*config.Daemon, error) {
	if configPath == "" {
		return &config.Daemon{}, nil
	}
	return config.Load(configPath)
}
