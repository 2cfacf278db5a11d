// Package proxy implements the core read/send/stop state machine of
// spec.md §4.3: a single reader goroutine that frames and dispatches
// inbound messages, an ordered send path, and a one-shot, idempotent
// stop that tears both down together with the underlying socket.
//
// Grounded on original_source/src/proxy.cpp, adapted from its
// async_read continuation chain to a structured-concurrency read loop
// per spec.md §9 ("Cooperative coroutine control").
package proxy

import (
	"bytes"
	"sync"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/queue"
	"github.com/lightningnetwork/lnd/ticker"

	"github.com/bitprim/bitprim-network/internal/message"
	"github.com/bitprim/bitprim-network/internal/netcode"
	"github.com/bitprim/bitprim-network/internal/socket"
	"github.com/bitprim/bitprim-network/internal/subscriber"
	"github.com/bitprim/bitprim-network/internal/wireframe"
)

const (
	stateInitial int32 = iota
	stateRunning
	stateStopped
)

// sendQueueDepth is the channel buffer size of the send queue;
// queue.ConcurrentQueue itself is unbounded and holds any excess in an
// internal overflow list. The original's boost::asio strand serializes
// writes implicitly, queue.ConcurrentQueue gives the same FIFO guarantee
// here.
const sendQueueDepth = 20

// Hooks are caller-supplied callbacks invoked at points in the channel
// lifecycle the original exposes as virtual methods (handle_activity,
// handle_stopping) for subclasses to override. Either field may be nil.
type Hooks struct {
	// OnActivity is called twice per inbound frame: once after the
	// heading's magic and payload size are validated, before the payload
	// read, and once after the payload is validated and dispatched,
	// before the next read is issued.
	OnActivity func()

	// OnStopping is called once, during Stop, after subscribers have
	// been notified but before the socket is closed.
	OnStopping func()
}

// Config collects the parameters a Proxy needs at construction.
type Config struct {
	// Magic is the expected network magic; headings with any other
	// value are rejected as bad_stream.
	Magic wire.BitcoinNet

	// Version is the protocol version used to decode inbound payloads
	// and, until renegotiated, to encode outbound ones.
	Version uint32

	Hooks Hooks

	// IdleTicker, when non-nil, drives the idle-timeout watchdog: on each
	// tick, the channel is stopped if no inbound activity has been
	// recorded for at least IdleTimeout. This is the ambient "Timeouts"
	// concern of spec.md §5, which the distilled spec leaves to the
	// session layer surrounding a Proxy; ticker.Ticker lets callers
	// substitute ticker.Force in tests the way the teacher's own timers do
	// (routing.Config.statTicker, discovery.syncManagerCfg et al).
	IdleTicker ticker.Ticker

	// IdleTimeout is the minimum quiet period that trips the watchdog.
	// Ignored if IdleTicker is nil.
	IdleTimeout time.Duration
}

type sendJob struct {
	frame  []byte
	result chan error
}

// Proxy is a single framed, bidirectional wire-protocol channel over a
// socket.Socket. The zero value is not usable; construct with New.
type Proxy struct {
	sock    *socket.Socket
	magic   wire.BitcoinNet
	hooks   Hooks
	state   atomic.Int32
	version atomic.Uint32

	messages *message.Subscriber
	stopSub  *subscriber.StopSubscriber

	sendQueue *queue.ConcurrentQueue
	sendWG    sync.WaitGroup
	stopCh    chan struct{}

	idleTicker  ticker.Ticker
	idleTimeout time.Duration
	lastActive  atomic.Int64

	payloadBuf []byte
}

// New constructs a stopped Proxy bound to sock. The Proxy does not take
// ownership of sock's lifecycle beyond closing it on Stop.
func New(sock *socket.Socket, cfg Config) *Proxy {
	p := &Proxy{
		sock:        sock,
		magic:       cfg.Magic,
		hooks:       cfg.Hooks,
		messages:    message.NewSubscriber(),
		stopSub:     subscriber.NewStopSubscriber(),
		sendQueue:   queue.NewConcurrentQueue(sendQueueDepth),
		stopCh:      make(chan struct{}),
		idleTicker:  cfg.IdleTicker,
		idleTimeout: cfg.IdleTimeout,
		payloadBuf:  make([]byte, wireframe.MaxPayloadCurrent),
	}
	p.state.Store(stateInitial)
	p.version.Store(cfg.Version)
	return p
}

// Authority returns the remote endpoint's identity.
func (p *Proxy) Authority() socket.Authority {
	return p.sock.RemoteAuthority()
}

// NegotiatedVersion returns the protocol version currently used for
// payload decoding.
func (p *Proxy) NegotiatedVersion() uint32 {
	return p.version.Load()
}

// SetNegotiatedVersion updates the protocol version used for subsequent
// payload decodes, e.g. once a version handshake completes.
func (p *Proxy) SetNegotiatedVersion(v uint32) {
	p.version.Store(v)
}

// Stopped reports whether the Proxy has stopped, or has never been
// started: a Proxy is born stopped (spec.md §3) until Start succeeds.
func (p *Proxy) Stopped() bool {
	return p.state.Load() != stateRunning
}

// Messages exposes the per-command message subscription registry.
func (p *Proxy) Messages() *message.Subscriber {
	return p.messages
}

// SubscribeStop registers handler to be invoked, exactly once, with the
// code the Proxy stopped with. If the Proxy has already stopped,
// handler is invoked immediately.
func (p *Proxy) SubscribeStop(handler subscriber.StopHandler) {
	p.stopSub.Subscribe(handler)
}

// Start arms subscriptions and begins the read and send loops. A Proxy
// that has already been started, or has already stopped, cannot be
// started again (spec.md §3 invariant).
func (p *Proxy) Start() error {
	if !p.state.CompareAndSwap(stateInitial, stateRunning) {
		return netcode.ErrOperationFailed
	}

	p.stopSub.Start()
	p.messages.Start()
	p.sendQueue.Start()
	p.lastActive.Store(time.Now().UnixNano())

	p.sendWG.Add(1)
	go p.sendLoop()

	if p.idleTicker != nil {
		p.idleTicker.Resume()
		go p.idleWatch()
	}

	// Subscription is possible before the first read completes, so no
	// message delivered on the very first frame is ever missed.
	go p.readLoop()

	return nil
}

// idleWatch checks on every tick and stops the channel if no inbound
// activity has been recorded for at least idleTimeout (measured from
// Start while nothing has arrived yet).
func (p *Proxy) idleWatch() {
	for range p.idleTicker.Ticks() {
		if p.Stopped() {
			return
		}

		quiet := time.Duration(time.Now().UnixNano()-p.lastActive.Load()) * time.Nanosecond
		if quiet >= p.idleTimeout {
			log.Debugf("channel [%s] idle for %s, stopping", p.Authority(), quiet)
			p.Stop(netcode.ErrIdleTimeout)
			return
		}
	}
}

// readLoop runs for the lifetime of the Proxy, alternating heading and
// payload reads, each followed by dispatch, until a read or decode
// error stops the channel.
func (p *Proxy) readLoop() {
	headingBuf := make([]byte, wireframe.HeadingSize)

	for {
		if p.Stopped() {
			return
		}

		if err := p.sock.ReadExact(headingBuf); err != nil {
			log.Debugf("heading read failure [%s] %v", p.Authority(), err)
			p.Stop(netcode.IOError(err))
			return
		}

		if p.Stopped() {
			return
		}

		head, err := wireframe.DecodeHeading(headingBuf)
		if err != nil {
			log.Warnf("invalid heading from [%s]", p.Authority())
			p.Stop(netcode.ErrBadStream)
			return
		}

		if head.Magic != p.magic {
			log.Warnf("invalid heading magic (%d) from [%s]", head.Magic, p.Authority())
			p.Stop(netcode.ErrBadStream)
			return
		}

		if head.PayloadSize > uint32(len(p.payloadBuf)) {
			log.Warnf("oversized payload indicated by %s heading from [%s] (%d bytes)",
				head.Command, p.Authority(), head.PayloadSize)
			p.Stop(netcode.ErrBadStream)
			return
		}

		// Heading is fully validated and the payload read is about to be
		// issued: tick activity here too, mirroring handle_read_heading's
		// own handle_activity() call in the original, ahead of the second
		// tick once the payload itself is validated below.
		p.lastActive.Store(time.Now().UnixNano())
		if p.hooks.OnActivity != nil {
			p.hooks.OnActivity()
		}

		payload := p.payloadBuf[:head.PayloadSize]
		if err := p.sock.ReadExact(payload); err != nil {
			log.Debugf("payload read failure [%s] %v", p.Authority(), err)
			p.Stop(netcode.IOError(err))
			return
		}

		if head.Checksum != wireframe.Checksum(payload) {
			log.Warnf("invalid %s payload from [%s] bad checksum",
				head.Command, p.Authority())
			p.Stop(netcode.ErrBadStream)
			return
		}

		if err := p.messages.Load(head.Command, p.version.Load(), payload); err != nil {
			log.Warnf("invalid %s payload from [%s] %v", head.Command, p.Authority(), err)
			p.Stop(netcode.DecodeError(err))
			return
		}

		log.Debugf("valid %s payload from [%s] (%d bytes)", head.Command, p.Authority(), len(payload))

		p.lastActive.Store(time.Now().UnixNano())
		if p.hooks.OnActivity != nil {
			p.hooks.OnActivity()
		}
	}
}

// Send frames payload under command and enqueues it for write. Sends
// are serialized in FIFO order by the underlying concurrent queue;
// Send blocks until this message has been written (or has failed).
func (p *Proxy) Send(command string, payload []byte) error {
	if p.Stopped() {
		return netcode.ErrChannelStopped
	}

	head := wireframe.Heading{
		Magic:       p.magic,
		Command:     command,
		PayloadSize: uint32(len(payload)),
		Checksum:    wireframe.Checksum(payload),
	}
	headBytes, err := head.Encode()
	if err != nil {
		return err
	}

	frame := make([]byte, 0, len(headBytes)+len(payload))
	frame = append(frame, headBytes...)
	frame = append(frame, payload...)

	job := &sendJob{frame: frame, result: make(chan error, 1)}

	// A concurrent Stop may close stopCh (and, shortly after, the send
	// queue) between the Stopped check above and this enqueue; select
	// against stopCh here and below so a racing Send reports
	// channel_stopped instead of blocking forever on a queue nothing
	// drains anymore.
	select {
	case p.sendQueue.ChanIn() <- job:
	case <-p.stopCh:
		return netcode.ErrChannelStopped
	}

	select {
	case err := <-job.result:
		return err
	case <-p.stopCh:
		return netcode.ErrChannelStopped
	}
}

// SendMessage encodes a wire.Message and sends it under its own
// Command().
func (p *Proxy) SendMessage(msg wire.Message) error {
	var buf bytes.Buffer
	if err := msg.BtcEncode(&buf, p.version.Load(), wire.BaseEncoding); err != nil {
		return err
	}
	return p.Send(msg.Command(), buf.Bytes())
}

// sendLoop drains the send queue in order, writing each frame to the
// socket and reporting the result back to its caller.
func (p *Proxy) sendLoop() {
	defer p.sendWG.Done()

	for raw := range p.sendQueue.ChanOut() {
		job := raw.(*sendJob)

		log.Debugf("sending %d bytes to [%s]", len(job.frame), p.Authority())
		err := p.sock.WriteAll(job.frame)
		if err != nil {
			log.Debugf("failure sending %d byte message to [%s] %v",
				len(job.frame), p.Authority(), err)
		}
		job.result <- err
	}
}

// Stop terminates the channel: subscribers are notified, hooks are
// invoked, and the socket is closed. Stop is idempotent and safe to
// call from any goroutine, any number of times; only the first call's
// code has any effect on subscribers.
func (p *Proxy) Stop(code error) {
	if code == nil {
		code = netcode.ErrOperationFailed
	}

	// CompareAndSwap from either prior state: stop is valid whether or
	// not Start ever ran, but must only run its body once.
	if p.state.Load() == stateStopped {
		return
	}
	if !p.state.CompareAndSwap(stateRunning, stateStopped) {
		if !p.state.CompareAndSwap(stateInitial, stateStopped) {
			return
		}
	}

	close(p.stopCh)

	p.messages.Stop(netcode.ErrChannelStopped)
	p.messages.Broadcast(netcode.ErrChannelStopped)

	p.stopSub.Stop(code)
	p.stopSub.Relay(code)

	if p.hooks.OnStopping != nil {
		p.hooks.OnStopping()
	}

	p.sendQueue.Stop()
	if p.idleTicker != nil {
		p.idleTicker.Stop()
	}
	_ = p.sock.Close()
}
