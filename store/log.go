package store

import "github.com/btcsuite/btclog"

// log is this package's subsystem logger. It defaults to a disabled
// logger so the package is silent until the embedding application wires
// one in via UseLogger, matching the per-package logger convention used
// throughout the teacher daemon.
var log = btclog.Disabled

// UseLogger sets the package-wide logger used by the store.
func UseLogger(logger btclog.Logger) {
	log = logger
}
