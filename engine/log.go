package engine

import "github.com/btcsuite/btclog"

// log is this package's subsystem logger, silent until wired by the
// embedding application, matching the convention used throughout the
// teacher daemon and mirrored by every other package in this repo.
var log = btclog.Disabled

// UseLogger sets the package-wide logger used by the engine.
func UseLogger(logger btclog.Logger) {
	log = logger
}
