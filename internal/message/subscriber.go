// Package message dispatches decoded wire.Message values to per-command
// subscribers (spec.md §4.3, MessageSubscriber). Subscribers register by
// message type; dispatch is keyed at runtime by wire.Message.Command(),
// with TypedSubscriber[M] giving each registered type its own
// compile-time-typed delivery path.
package message

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/wire"

	"github.com/bitprim/bitprim-network/internal/netcode"
	"github.com/bitprim/bitprim-network/internal/subscriber"
)

// endpoint is the type-erased half of a registration: it knows how to
// decode a payload for its command and hand the result to the typed
// subscriber behind it, without the Subscriber itself knowing the
// concrete message type.
type endpoint interface {
	start()
	stop(err error)
	decodeAndRelay(version uint32, payload []byte) error
	relayError(err error)
}

// typedEndpoint binds one wire.Message concrete type to its
// TypedSubscriber. M is always a pointer receiver type implementing
// wire.Message (e.g. *wire.MsgPing), so a fresh zero value is
// addressable and decodable.
type typedEndpoint[M wire.Message] struct {
	sub    *subscriber.TypedSubscriber[M]
	newMsg func() M
}

func newTypedEndpoint[M wire.Message](newMsg func() M) *typedEndpoint[M] {
	return &typedEndpoint[M]{
		sub:    subscriber.New[M](),
		newMsg: newMsg,
	}
}

func (e *typedEndpoint[M]) start() { e.sub.Start() }

func (e *typedEndpoint[M]) stop(err error) { e.sub.Stop(err) }

func (e *typedEndpoint[M]) decodeAndRelay(version uint32, payload []byte) error {
	msg := e.newMsg()
	r := bytes.NewReader(payload)
	if err := msg.BtcDecode(r, version, wire.BaseEncoding); err != nil {
		return err
	}
	if r.Len() != 0 {
		return fmt.Errorf("message: %d trailing bytes after %s payload: %w",
			r.Len(), msg.Command(), netcode.ErrBadStream)
	}
	e.sub.Relay(msg)
	return nil
}

func (e *typedEndpoint[M]) relayError(err error) { e.sub.RelayError(err) }

// Subscriber is the MessageSubscriber of spec.md §4.3: it owns one
// endpoint per supported command and routes decoded payloads to it.
// Commands it was not built with knowledge of are consumed and dropped
// (spec.md §9, Open Question resolution: unknown-but-well-formed
// commands are not an error).
type Subscriber struct {
	endpoints map[string]endpoint
	started   bool
}

// NewSubscriber builds a Subscriber pre-registered for every message
// type this module understands.
func NewSubscriber() *Subscriber {
	ms := &Subscriber{endpoints: make(map[string]endpoint)}

	register(ms, wire.CmdVersion, func() *wire.MsgVersion { return &wire.MsgVersion{} })
	register(ms, wire.CmdVerAck, func() *wire.MsgVerAck { return &wire.MsgVerAck{} })
	register(ms, wire.CmdPing, func() *wire.MsgPing { return &wire.MsgPing{} })
	register(ms, wire.CmdPong, func() *wire.MsgPong { return &wire.MsgPong{} })
	register(ms, wire.CmdGetAddr, func() *wire.MsgGetAddr { return &wire.MsgGetAddr{} })
	register(ms, wire.CmdAddr, func() *wire.MsgAddr { return &wire.MsgAddr{} })
	register(ms, wire.CmdInv, func() *wire.MsgInv { return &wire.MsgInv{} })
	register(ms, wire.CmdGetData, func() *wire.MsgGetData { return &wire.MsgGetData{} })
	register(ms, wire.CmdNotFound, func() *wire.MsgNotFound { return &wire.MsgNotFound{} })
	register(ms, wire.CmdHeaders, func() *wire.MsgHeaders { return &wire.MsgHeaders{} })

	return ms
}

func register[M wire.Message](ms *Subscriber, command string, newMsg func() M) {
	ms.endpoints[command] = newTypedEndpoint(newMsg)
}

// Start arms every registered endpoint's delivery queue.
func (ms *Subscriber) Start() {
	if ms.started {
		return
	}
	ms.started = true
	for _, e := range ms.endpoints {
		e.start()
	}
}

// Stop marks every registered endpoint's underlying TypedSubscriber
// stopped with err: future Subscribe calls for any command are
// delivered err immediately rather than being enqueued (spec.md §4.2,
// "stop propagates to every contained TypedSubscriber"). Stop does not
// itself flush handlers already enqueued; pair with Broadcast for that.
func (ms *Subscriber) Stop(err error) {
	for _, e := range ms.endpoints {
		e.stop(err)
	}
}

// Load decodes a payload for command at the given protocol version and
// relays it to the matching endpoint. Unrecognized commands are
// consumed and dropped, returning nil: the frame was well-formed, this
// module simply has no subscriber for it (spec.md §9).
func (ms *Subscriber) Load(command string, version uint32, payload []byte) error {
	e, ok := ms.endpoints[command]
	if !ok {
		log.Debugf("dropping unsubscribed command %q (%d bytes)",
			command, len(payload))
		return nil
	}
	return e.decodeAndRelay(version, payload)
}

// Broadcast delivers err to every registered endpoint's pending
// handlers, used when the owning Proxy's read loop terminates
// (spec.md §4.3: message subscribers are stopped alongside the proxy).
func (ms *Subscriber) Broadcast(err error) {
	for _, e := range ms.endpoints {
		e.relayError(err)
	}
}

// Subscribe registers handler for message type M. M must be one of the
// concrete *wire.MsgXxx types NewSubscriber registered; subscribing for
// an unregistered type is a programming error and panics, mirroring
// the teacher's convention of failing loudly on subsystem misuse
// rather than silently dropping the registration.
func Subscribe[M wire.Message](ms *Subscriber, command string, handler subscriber.Handler[M]) {
	e, ok := ms.endpoints[command]
	if !ok {
		panic(fmt.Sprintf("message: no subscriber registered for command %q", command))
	}
	typed, ok := e.(*typedEndpoint[M])
	if !ok {
		panic(fmt.Sprintf("message: command %q is not of the requested type", command))
	}
	typed.sub.Subscribe(handler)
}
