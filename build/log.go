// Package build provides the small amount of shared logging scaffolding
// every other package's log.go relies on: a single backend writer and a
// constructor for per-subsystem loggers.
//
// This is a trimmed adaptation of lnd's build.NewSubLogger: the original
// also switches on a Production/Development build tag and a "stdlog"/"nolog"
// compile-time logging mode, which is daemon packaging concern this module
// doesn't carry. What's kept is the one piece every subsystem log.go needs:
// a shared backend and a subsystem-tagged logger built from it.
package build

import (
	"io"
	"os"

	"github.com/btcsuite/btclog"
)

// NewBackend creates a logging backend that writes to w. Passing nil uses
// os.Stdout.
func NewBackend(w io.Writer) *btclog.Backend {
	if w == nil {
		w = os.Stdout
	}

	return btclog.NewBackend(w)
}

// NewSubLogger builds a subsystem logger from backend. A nil backend
// disables logging for the subsystem, matching the teacher's convention
// that every package starts up silent until UseLogger is called.
func NewSubLogger(backend *btclog.Backend, subsystem, level string) btclog.Logger {
	if backend == nil {
		return btclog.Disabled
	}

	logger := backend.Logger(subsystem)

	if lvl, ok := btclog.LevelFromString(level); ok {
		logger.SetLevel(lvl)
	}

	return logger
}
