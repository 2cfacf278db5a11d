// Command bitprimd runs a standalone Bitcoin P2P wire-channel-core
// node: it accepts inbound peer connections, frames and dispatches
// their messages, and tracks live channels in a connection registry.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/bitprim/bitprim-network/internal/acceptor"
	"github.com/bitprim/bitprim-network/internal/config"
	"github.com/bitprim/bitprim-network/internal/connections"
	"github.com/bitprim/bitprim-network/internal/netcode"
	"github.com/bitprim/bitprim-network/internal/proxy"
	"github.com/bitprim/bitprim-network/internal/socket"
)

// nonceCounter assigns each locally accepted channel a distinct nonce
// until the version handshake supplies the peer's own. The protocol's
// real nonce collision check (spec.md §4.6) happens once that
// handshake layer populates it from the negotiated wire.MsgVersion.
var nonceCounter atomic.Uint64

func main() {
	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	setupLogging(cfg.DebugLevel)

	if err := run(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	registry := connections.New(cfg.OutboundPeers + cfg.InboundPeers)

	acc := acceptor.New(acceptor.SocketOptions{NoDelay: true, KeepAlive: true})
	if cfg.Listen {
		if err := acc.Listen(cfg.ListenPort); err != nil {
			return err
		}
		log.Infof("accepting inbound connections on port %d", cfg.ListenPort)
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	acceptDone := make(chan struct{})
	if cfg.Listen {
		go acceptLoop(acc, registry, cfg)
	} else {
		close(acceptDone)
	}

	<-shutdown
	log.Infof("shutting down")

	_ = acc.Stop()
	registry.Stop(netcode.ErrServiceStopped)

	return nil
}

func acceptLoop(acc *acceptor.Acceptor, registry *connections.Connections, cfg *config.Config) {
	for {
		sock, err := acc.Accept()
		if err != nil {
			log.Debugf("accept loop exiting: %v", err)
			return
		}

		p := proxy.New(sock, proxy.Config{
			Magic:   cfg.Magic(),
			Version: cfg.ProtocolMaximum,
		})

		adapter := channelAdapter{p: p, nonce: nonceCounter.Add(1)}

		if err := registry.Store(adapter); err != nil {
			log.Warnf("rejecting connection from [%s]: %v", p.Authority(), err)
			p.Stop(err)
			continue
		}

		p.SubscribeStop(func(code error) {
			_ = registry.Remove(adapter)
		})

		if err := p.Start(); err != nil {
			log.Warnf("failed to start channel for [%s]: %v", p.Authority(), err)
			continue
		}

		log.Infof("accepted channel [%s]", p.Authority())
	}
}

// channelAdapter satisfies connections.Channel. *proxy.Proxy has no
// Nonce of its own since the wire protocol's nonce lives in the
// version handshake payload, not the transport; see nonceCounter.
type channelAdapter struct {
	p     *proxy.Proxy
	nonce uint64
}

func (c channelAdapter) Authority() socket.Authority { return c.p.Authority() }

func (c channelAdapter) Nonce() uint64 { return c.nonce }

func (c channelAdapter) Stop(err error) { c.p.Stop(err) }
