package connections

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bitprim/bitprim-network/internal/netcode"
	"github.com/bitprim/bitprim-network/internal/socket"
)

type fakeChannel struct {
	authority socket.Authority
	nonce     uint64
	stopCode  error
}

func (f *fakeChannel) Authority() socket.Authority { return f.authority }
func (f *fakeChannel) Nonce() uint64                { return f.nonce }
func (f *fakeChannel) Stop(err error)                { f.stopCode = err }

func TestConnectionsStoreRejectsDuplicateAuthority(t *testing.T) {
	t.Parallel()

	c := New(4)
	a := &fakeChannel{authority: socket.Authority{Host: "1.2.3.4", Port: 8333}, nonce: 1}
	b := &fakeChannel{authority: socket.Authority{Host: "1.2.3.4", Port: 8333}, nonce: 2}

	require.NoError(t, c.Store(a))
	require.ErrorIs(t, c.Store(b), netcode.ErrAddressInUse)
	require.Equal(t, 1, c.Count())
}

func TestConnectionsStoreRejectsDuplicateNonce(t *testing.T) {
	t.Parallel()

	c := New(4)
	a := &fakeChannel{authority: socket.Authority{Host: "1.1.1.1", Port: 1}, nonce: 7}
	b := &fakeChannel{authority: socket.Authority{Host: "2.2.2.2", Port: 2}, nonce: 7}

	require.NoError(t, c.Store(a))
	require.ErrorIs(t, c.Store(b), netcode.ErrAddressInUse)
}

func TestConnectionsExistsAndCount(t *testing.T) {
	t.Parallel()

	c := New(4)
	addr := socket.Authority{Host: "10.0.0.1", Port: 8333}
	require.False(t, c.Exists(addr))

	require.NoError(t, c.Store(&fakeChannel{authority: addr, nonce: 1}))
	require.True(t, c.Exists(addr))
	require.Equal(t, 1, c.Count())
}

func TestConnectionsRemoveNotFound(t *testing.T) {
	t.Parallel()

	c := New(4)
	require.ErrorIs(t, c.Remove(&fakeChannel{}), netcode.ErrNotFound)
}

func TestConnectionsStopStopsEveryMemberAndBlocksFurtherStore(t *testing.T) {
	t.Parallel()

	c := New(4)
	a := &fakeChannel{authority: socket.Authority{Host: "1.1.1.1", Port: 1}, nonce: 1}
	b := &fakeChannel{authority: socket.Authority{Host: "2.2.2.2", Port: 2}, nonce: 2}
	require.NoError(t, c.Store(a))
	require.NoError(t, c.Store(b))

	stopCode := netcode.ErrServiceStopped
	c.Stop(stopCode)

	require.Equal(t, stopCode, a.stopCode)
	require.Equal(t, stopCode, b.stopCode)

	err := c.Store(&fakeChannel{authority: socket.Authority{Host: "3.3.3.3", Port: 3}, nonce: 3})
	require.ErrorIs(t, err, netcode.ErrServiceStopped)
}

func TestConnectionsFind(t *testing.T) {
	t.Parallel()

	c := New(4)
	addr := socket.Authority{Host: "10.0.0.1", Port: 8333}

	none := c.Find(addr)
	require.False(t, none.IsSome())

	a := &fakeChannel{authority: addr, nonce: 1}
	require.NoError(t, c.Store(a))

	some := c.Find(addr)
	require.True(t, some.IsSome())
}

func TestConnectionsStopIsIdempotent(t *testing.T) {
	t.Parallel()

	c := New(4)
	a := &fakeChannel{authority: socket.Authority{Host: "1.1.1.1", Port: 1}, nonce: 1}
	require.NoError(t, c.Store(a))

	c.Stop(netcode.ErrServiceStopped)
	c.Stop(netcode.ErrOperationFailed)

	require.Equal(t, netcode.ErrServiceStopped, a.stopCode)
}
