// Package socket wraps a single OS-level stream endpoint (spec.md §4.1):
// serialized writes, authority caching, and an idempotent close that
// unblocks any outstanding read or write with a cancellation error.
package socket

import (
	"io"
	"net"
	"sync"
)

// Socket owns a net.Conn and serializes concurrent writes on it. Reads are
// not serialized here: the Proxy's single-outstanding-read discipline
// (spec.md §4.3, "Critical ordering property") is the caller's
// responsibility, not the Socket's.
type Socket struct {
	conn net.Conn

	writeMu sync.Mutex

	closeOnce sync.Once
	closeErr  error

	remote Authority
	local  Authority
}

// New wraps conn, caching both endpoint authorities.
func New(conn net.Conn) (*Socket, error) {
	remote, err := authorityFromAddr(conn.RemoteAddr())
	if err != nil {
		return nil, err
	}

	local, err := authorityFromAddr(conn.LocalAddr())
	if err != nil {
		return nil, err
	}

	return &Socket{conn: conn, remote: remote, local: local}, nil
}

// RemoteAuthority returns the cached identity of the far end of the
// connection.
func (s *Socket) RemoteAuthority() Authority {
	return s.remote
}

// LocalAuthority returns the cached identity of this end of the
// connection. Recovered from the original (see SPEC_FULL.md §5); the
// distilled spec only names RemoteAuthority but the underlying socket
// abstraction exposes both and logging wants both.
func (s *Socket) LocalAuthority() Authority {
	return s.local
}

// ReadExact fills dst entirely or returns an error. Only one ReadExact may
// be outstanding on a given Socket at a time; see the Proxy's read loop for
// the invariant that makes this safe without a read-side lock.
func (s *Socket) ReadExact(dst []byte) error {
	_, err := io.ReadFull(s.conn, dst)
	return err
}

// WriteAll writes all of src or returns an error. Concurrent callers are
// serialized: a send and a receive proceed in parallel, but two sends do
// not interleave on the wire.
func (s *Socket) WriteAll(src []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.conn.Write(src)
	return err
}

// Close is idempotent and safe to call from any goroutine at any time.
// After Close, pending and future reads/writes fail with a cancellation
// error from the underlying net.Conn.
func (s *Socket) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}
