// Package config loads the surrounding daemon process's options: the
// pidfile path and RPC listener address. The core packages (pcap,
// sockfilter, packetmmap, worker, registry, service) never read this
// package; only cmd/dabbad does, to demonstrate how the out-of-scope
// RPC transport would be wired up.
package config

import "github.com/BurntSushi/toml"

// Daemon is the on-disk shape of the daemon's TOML config file.
type Daemon struct {
	PidFile      string `toml:"pidfile"`
	ListenNet    string `toml:"listen_net"`  // "unix" or "tcp"
	ListenAddr   string `toml:"listen_addr"` // socket path or host:port
	WorkerLogDir string `toml:"worker_log_dir"`
}

// Load reads and parses a daemon config file from path.
func Load(path string) (*Daemon, error) {
	var d Daemon
	if _, err := toml.DecodeFile(path, &d); err != nil {
		return nil, err
	}
	return &d, nil
}
