package connections

import "github.com/btcsuite/btclog"

// log is the package-level logger, disabled until UseLogger is called.
var log btclog.Logger = btclog.Disabled

// UseLogger sets the package-wide logger.
func UseLogger(logger btclog.Logger) {
	log = logger
}

// DisableLog disables all output from this package.
func DisableLog() {
	log = btclog.Disabled
}
