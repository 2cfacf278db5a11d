// Package subscriber implements the publish/subscribe dispatch primitives
// of spec.md §4.2: TypedSubscriber, a per-message-type fan-out registry
// with one-shot stop semantics, and StopSubscriber, its single-event
// specialization.
//
// TypedSubscriber is parameterized at instantiation (Go generics) rather
// than keyed by a runtime type tag, resolving the "Dynamic dispatch on
// message type" design note in favor of the compile-time option: each
// concrete message type gets its own TypedSubscriber[M] instance, the way
// the original's C++ templates gave one subscriber per Message type.
package subscriber

import "sync"

// Handler is invoked exactly once per subscription, either with a relayed
// message and a nil error, or with the zero value of M and a non-nil stop
// error.
type Handler[M any] func(M, error)

// TypedSubscriber is an ordered list of handlers for messages of type M.
// The zero value is not usable; construct with New.
type TypedSubscriber[M any] struct {
	mu       sync.Mutex
	started  bool
	stopped  bool
	stopErr  error
	handlers []Handler[M]
}

// New constructs a not-yet-started TypedSubscriber.
func New[M any]() *TypedSubscriber[M] {
	return &TypedSubscriber[M]{}
}

// Start arms the subscriber. Start must be called before Subscribe is
// meaningful, matching spec.md §4.2; Subscribe does not itself check
// "started" since a not-yet-started subscriber behaves identically to an
// empty, not-stopped one.
func (s *TypedSubscriber[M]) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
}

// Subscribe enqueues handler. If the subscriber has already been stopped,
// handler is invoked immediately, synchronously, with the stored stop
// error.
func (s *TypedSubscriber[M]) Subscribe(handler Handler[M]) {
	s.mu.Lock()
	if s.stopped {
		err := s.stopErr
		s.mu.Unlock()

		var zero M
		handler(zero, err)
		return
	}

	s.handlers = append(s.handlers, handler)
	s.mu.Unlock()
}

// Relay invokes every currently enqueued handler exactly once with msg and
// a nil error, then clears the queue. Handlers added during Relay (from
// within another handler) do not observe this event.
func (s *TypedSubscriber[M]) Relay(msg M) {
	s.mu.Lock()
	handlers := s.handlers
	s.handlers = nil
	s.mu.Unlock()

	for _, h := range handlers {
		h(msg, nil)
	}
}

// RelayError invokes every currently enqueued handler exactly once with the
// zero value of M and err, then clears the queue. Used for the
// channel-stopped broadcast (spec.md §4.5 step 2), distinct from Stop:
// Stop only arms future Subscribe calls, RelayError flushes the handlers
// already enqueued.
func (s *TypedSubscriber[M]) RelayError(err error) {
	s.mu.Lock()
	handlers := s.handlers
	s.handlers = nil
	s.mu.Unlock()

	var zero M
	for _, h := range handlers {
		h(zero, err)
	}
}

// Stop transitions the subscriber to stopped: every future Subscribe call
// invokes its handler synchronously with err. Stop only ever takes effect
// once; subsequent calls are no-ops, so the first stop error always wins
// regardless of how many times Stop is called (spec.md's idempotence
// property).
func (s *TypedSubscriber[M]) Stop(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.stopped = true
	s.stopErr = err
}
