package main

import (
	"os"

	"github.com/btcsuite/btclog"

	"github.com/bitprim/bitprim-network/build"
	"github.com/bitprim/bitprim-network/internal/acceptor"
	"github.com/bitprim/bitprim-network/internal/connections"
	"github.com/bitprim/bitprim-network/internal/message"
	"github.com/bitprim/bitprim-network/internal/proxy"
)

var log btclog.Logger

// setupLogging wires a single shared backend into every subsystem's
// package-level logger, matching the teacher's top-level log.go
// convention of a fan-out UseLogger call per package.
func setupLogging(level string) {
	backend := build.NewBackend(os.Stdout)

	log = build.NewSubLogger(backend, "BTPD", level)
	proxy.UseLogger(build.NewSubLogger(backend, "PRXY", level))
	acceptor.UseLogger(build.NewSubLogger(backend, "ACPT", level))
	connections.UseLogger(build.NewSubLogger(backend, "CONN", level))
	message.UseLogger(build.NewSubLogger(backend, "MSGR", level))
}
