package pegin

import "github.com/btcsuite/btclog"

// log is this package's subsystem logger, silent until wired in by the
// embedding application.
var log = btclog.Disabled

// UseLogger sets the package-wide logger used by pegin.
func UseLogger(logger btclog.Logger) {
	log = logger
}
