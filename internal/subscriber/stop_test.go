package subscriber

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStopSubscriberRelayNotifiesAllPendingSubscribers(t *testing.T) {
	t.Parallel()

	sub := NewStopSubscriber()
	sub.Start()

	var got []error
	code := errors.New("service stopped")

	for i := 0; i < 3; i++ {
		sub.Subscribe(func(c error) {
			got = append(got, c)
		})
	}

	sub.Stop(code)
	sub.Relay(code)

	require.Len(t, got, 3)
	for _, c := range got {
		require.Equal(t, code, c)
	}
}

func TestStopSubscriberSubscribeAfterStopDeliversImmediately(t *testing.T) {
	t.Parallel()

	sub := NewStopSubscriber()
	sub.Start()

	code := errors.New("channel stopped")
	sub.Stop(code)
	sub.Relay(code)

	var got error
	sub.Subscribe(func(c error) { got = c })

	require.Equal(t, code, got)
}

// Proxy.stop called N times has the same observable effect as called once
// (spec.md §8): relaying a second time after the queue is already drained
// must not re-invoke handlers.
func TestStopSubscriberRelayTwiceInvokesHandlersOnce(t *testing.T) {
	t.Parallel()

	sub := NewStopSubscriber()
	sub.Start()

	calls := 0
	sub.Subscribe(func(c error) { calls++ })

	code := errors.New("stopped")
	sub.Stop(code)
	sub.Relay(code)
	sub.Relay(code)

	require.Equal(t, 1, calls)
}
