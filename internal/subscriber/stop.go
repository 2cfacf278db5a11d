package subscriber

import "sync"

// StopHandler receives the terminal stop code of a channel exactly once.
type StopHandler func(error)

// StopSubscriber is the single-event specialization of TypedSubscriber
// used for channel-stop notification (spec.md §4.2). It is not built on
// top of TypedSubscriber[error] because its "message" and its "stop code"
// are the same value: relaying IS stopping, unlike a typed message
// subscriber where Relay (a message) and Stop (an error) are distinct
// events.
type StopSubscriber struct {
	mu       sync.Mutex
	started  bool
	stopped  bool
	code     error
	handlers []StopHandler
}

// NewStopSubscriber constructs a not-yet-started StopSubscriber.
func NewStopSubscriber() *StopSubscriber {
	return &StopSubscriber{}
}

// Start arms the subscriber.
func (s *StopSubscriber) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
}

// Subscribe enqueues handler, or invokes it immediately with the stored
// stop code if Stop has already been called.
func (s *StopSubscriber) Subscribe(handler StopHandler) {
	s.mu.Lock()
	if s.stopped {
		code := s.code
		s.mu.Unlock()
		handler(code)
		return
	}

	s.handlers = append(s.handlers, handler)
	s.mu.Unlock()
}

// Stop marks the subscriber stopped and records code for any Subscribe
// call that arrives after this point. It does not itself invoke any
// handler; call Relay for that. Only the first call's code is kept.
func (s *StopSubscriber) Stop(code error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.stopped = true
	s.code = code
}

// Relay invokes every currently enqueued handler exactly once with code,
// then clears the queue. Calling Relay again (e.g. from a second Proxy.Stop
// call) is a no-op because the queue is already empty, which is how
// Proxy.stop's idempotence is achieved without guarding this method itself.
func (s *StopSubscriber) Relay(code error) {
	s.mu.Lock()
	handlers := s.handlers
	s.handlers = nil
	s.mu.Unlock()

	for _, h := range handlers {
		h(code)
	}
}
