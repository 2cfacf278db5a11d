package message

import "github.com/btcsuite/btclog"

// log is the package-level logger. It is disabled by default until
// UseLogger is called, matching the teacher's convention (lnd
// contractcourt/log.go et al).
var log btclog.Logger = btclog.Disabled

// UseLogger sets the package-wide logger.
func UseLogger(logger btclog.Logger) {
	log = logger
}

// DisableLog disables all output from this package.
func DisableLog() {
	log = btclog.Disabled
}
