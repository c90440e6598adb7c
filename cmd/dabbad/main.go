// Command dabbad wires the capture and replay facades to a small
// cobra CLI. It is not the full RPC daemon the original dabba project
// exposes over protobuf — that transport and schema are out of scope —
// but it demonstrates the same facade boundary a daemon's RPC handlers
// would call into.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/packetd/dabba/registry"
)

func main() {
	reg := registry.New()
	root := newRootCmd(reg)

	if err := root.Execute(); err != nil {
		logrus.WithError(err).Error("dabbad exited with error")
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
