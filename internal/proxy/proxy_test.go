package proxy

import (
	"net"
	"testing"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/ticker"
	"github.com/stretchr/testify/require"

	"github.com/bitprim/bitprim-network/internal/message"
	"github.com/bitprim/bitprim-network/internal/netcode"
	"github.com/bitprim/bitprim-network/internal/socket"
	"github.com/bitprim/bitprim-network/internal/subscriber"
)

// pipePair returns two connected sockets backed by a real loopback TCP
// connection: socket.Authority requires a host:port net.Addr, which
// net.Pipe's in-memory endpoints don't provide.
func pipePair(t *testing.T) (*socket.Socket, *socket.Socket) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	type acceptResult struct {
		conn net.Conn
		err  error
	}
	acceptCh := make(chan acceptResult, 1)
	go func() {
		conn, err := ln.Accept()
		acceptCh <- acceptResult{conn, err}
	}()

	clientConn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)

	res := <-acceptCh
	require.NoError(t, res.err)

	clientSock, err := socket.New(clientConn)
	require.NoError(t, err)
	serverSock, err := socket.New(res.conn)
	require.NoError(t, err)

	return clientSock, serverSock
}

func newTestProxy(sock *socket.Socket) *Proxy {
	return New(sock, Config{Magic: wire.MainNet, Version: wire.ProtocolVersion})
}

func TestProxyRoundTripsAMessage(t *testing.T) {
	t.Parallel()

	clientSock, serverSock := pipePair(t)
	client := newTestProxy(clientSock)
	server := newTestProxy(serverSock)

	received := make(chan *wire.MsgPing, 1)
	message.Subscribe(server.Messages(), wire.CmdPing,
		subscriber.Handler[*wire.MsgPing](func(msg *wire.MsgPing, err error) {
			require.NoError(t, err)
			received <- msg
		}))

	require.NoError(t, server.Start())
	require.NoError(t, client.Start())

	require.NoError(t, client.SendMessage(wire.NewMsgPing(777)))

	select {
	case msg := <-received:
		require.Equal(t, uint64(777), msg.Nonce)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for ping")
	}

	client.Stop(netcode.ErrOperationFailed)
	server.Stop(netcode.ErrOperationFailed)
}

func TestProxyStopIsIdempotentAndNotifiesStopSubscribers(t *testing.T) {
	t.Parallel()

	clientSock, serverSock := pipePair(t)
	client := newTestProxy(clientSock)
	defer serverSock.Close()

	require.NoError(t, client.Start())

	var got error
	client.SubscribeStop(func(code error) { got = code })

	stopCode := netcode.ErrChannelStopped
	client.Stop(stopCode)
	client.Stop(netcode.ErrBadStream) // second call must not override

	require.Equal(t, stopCode, got)
	require.True(t, client.Stopped())
}

func TestProxyCannotRestartAfterStop(t *testing.T) {
	t.Parallel()

	clientSock, serverSock := pipePair(t)
	defer serverSock.Close()
	client := newTestProxy(clientSock)

	require.NoError(t, client.Start())
	client.Stop(netcode.ErrOperationFailed)

	require.ErrorIs(t, client.Start(), netcode.ErrOperationFailed)
}

func TestProxyStartTwiceFails(t *testing.T) {
	t.Parallel()

	clientSock, serverSock := pipePair(t)
	defer serverSock.Close()
	defer clientSock.Close()
	client := newTestProxy(clientSock)

	require.NoError(t, client.Start())
	require.ErrorIs(t, client.Start(), netcode.ErrOperationFailed)

	client.Stop(netcode.ErrOperationFailed)
}

func TestProxySendAfterStopFails(t *testing.T) {
	t.Parallel()

	clientSock, serverSock := pipePair(t)
	defer serverSock.Close()
	client := newTestProxy(clientSock)

	require.NoError(t, client.Start())
	client.Stop(netcode.ErrOperationFailed)

	err := client.SendMessage(wire.NewMsgPing(1))
	require.ErrorIs(t, err, netcode.ErrChannelStopped)
}

func TestProxyIdleWatchdogStopsQuietChannel(t *testing.T) {
	t.Parallel()

	clientSock, serverSock := pipePair(t)
	defer clientSock.Close()

	mockTicker := ticker.NewForce(time.Millisecond)
	server := New(serverSock, Config{
		Magic:       wire.MainNet,
		Version:     wire.ProtocolVersion,
		IdleTicker:  mockTicker,
		IdleTimeout: 0,
	})

	stopped := make(chan error, 1)
	server.SubscribeStop(func(code error) { stopped <- code })

	require.NoError(t, server.Start())
	mockTicker.Resume()
	mockTicker.Force <- time.Now()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for idle watchdog to stop the channel")
	}
}

func TestProxyStopsOnBadMagic(t *testing.T) {
	t.Parallel()

	clientSock, serverSock := pipePair(t)

	client := New(clientSock, Config{Magic: wire.MainNet, Version: wire.ProtocolVersion})
	server := New(serverSock, Config{Magic: wire.TestNet3, Version: wire.ProtocolVersion})

	stopped := make(chan error, 1)
	server.SubscribeStop(func(code error) { stopped <- code })

	require.NoError(t, server.Start())
	require.NoError(t, client.Start())

	require.NoError(t, client.SendMessage(wire.NewMsgPing(1)))

	select {
	case code := <-stopped:
		require.ErrorIs(t, code, netcode.ErrBadStream)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stop due to bad magic")
	}

	client.Stop(netcode.ErrOperationFailed)
}
