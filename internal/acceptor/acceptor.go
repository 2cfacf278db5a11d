// Package acceptor implements the inbound connection listener of
// spec.md §4.5, grounded on original_source/include/bitcoin/network/
// acceptor.hpp: start a listener on a configured port, hand off each
// accepted connection as a socket.Socket, and cancel cleanly on Stop.
package acceptor

import (
	"net"
	"strconv"
	"sync"

	"github.com/bitprim/bitprim-network/internal/netcode"
	"github.com/bitprim/bitprim-network/internal/socket"
)

// SocketOptions configures accepted connections. Recovered from the
// original's settings struct (see SPEC_FULL.md §5); spec.md's
// distillation only names the listen port.
type SocketOptions struct {
	// KeepAlive enables TCP keepalive probing on accepted connections.
	KeepAlive bool

	// NoDelay disables Nagle's algorithm on accepted connections,
	// matching the low-latency expectations of a gossip-style protocol.
	NoDelay bool
}

// Acceptor listens for inbound connections on one port at a time. It is
// safe for concurrent use; Listen, Accept, and Stop may be called from
// different goroutines.
type Acceptor struct {
	opts SocketOptions

	mu       sync.Mutex
	listener net.Listener
	stopped  bool
}

// New constructs an Acceptor that has not yet started listening.
func New(opts SocketOptions) *Acceptor {
	return &Acceptor{opts: opts}
}

// Listen binds the listener to port on all interfaces. Listen may only
// be called once per Acceptor.
func (a *Acceptor) Listen(port uint16) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopped {
		return netcode.ErrServiceStopped
	}
	if a.listener != nil {
		return netcode.ErrOperationFailed
	}

	ln, err := net.Listen("tcp", net.JoinHostPort("", strconv.Itoa(int(port))))
	if err != nil {
		log.Warnf("failed to listen on port %d: %v", port, err)
		return netcode.IOError(err)
	}

	a.listener = ln
	log.Infof("listening on port %d", port)
	return nil
}

// Accept blocks for the next inbound connection, wraps it as a
// socket.Socket, and applies SocketOptions. It returns
// netcode.ErrServiceStopped once the Acceptor has been stopped.
func (a *Acceptor) Accept() (*socket.Socket, error) {
	a.mu.Lock()
	ln := a.listener
	stopped := a.stopped
	a.mu.Unlock()

	if stopped {
		return nil, netcode.ErrServiceStopped
	}
	if ln == nil {
		return nil, netcode.ErrOperationFailed
	}

	conn, err := ln.Accept()
	if err != nil {
		a.mu.Lock()
		stopped = a.stopped
		a.mu.Unlock()
		if stopped {
			return nil, netcode.ErrServiceStopped
		}
		return nil, netcode.IOError(err)
	}

	if tc, ok := conn.(*net.TCPConn); ok {
		if err := tc.SetNoDelay(a.opts.NoDelay); err != nil {
			log.Debugf("failed to set no-delay: %v", err)
		}
		if err := tc.SetKeepAlive(a.opts.KeepAlive); err != nil {
			log.Debugf("failed to set keep-alive: %v", err)
		}
	}

	sock, err := socket.New(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}

	log.Debugf("accepted connection from [%s]", sock.RemoteAuthority())
	return sock, nil
}

// Stop cancels the listener and unblocks any outstanding Accept call.
// Stop is idempotent.
func (a *Acceptor) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopped {
		return nil
	}
	a.stopped = true

	if a.listener == nil {
		return nil
	}
	return a.listener.Close()
}
