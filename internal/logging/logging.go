// Package logging builds the field-tagged logrus loggers used across
// the core: one per worker, one for the registry. No call in this
// package logs per-frame; only lifecycle transitions are worth a line
// at line rate.
package logging

import "github.com/sirupsen/logrus"

// Base is the process-wide logger. Replaced in tests with a buffer-backed
// instance when a test wants to assert on log output.
var Base = logrus.StandardLogger()

// ForWorker returns a logger tagged with a worker's identity, mirroring
// the field-tagged logger construction used across the example pack's
// Linux introspection libraries.
func ForWorker(id, kind, iface string) *logrus.Entry {
	return Base.WithFields(logrus.Fields{
		"worker_id": id,
		"kind":      kind,
		"interface": iface,
	})
}

// ForRegistry returns the registry's logger.
func ForRegistry() *logrus.Entry {
	return Base.WithField("component", "registry")
}
