// Package p2p drives a single Bitcoin peer connection: dialing (direct or
// SOCKS5-tunneled for onion peers), the version/verack handshake, the
// streaming read loop with automatic payload-too-short retry and auto-pong,
// and the remaining request/response operations (getaddr, addr, ping, pong,
// inv, getdata).
package p2p

import (
	"errors"
	"fmt"
)

// ErrProxyRequired is returned by Open when the destination is an onion
// address and no SOCKS5 proxy has been configured on the Conn. No network
// I/O is attempted in this case.
var ErrProxyRequired = errors.New("p2p: proxy required for .onion destination")

// ErrRemoteHostClosedConnection distinguishes a zero-length read (the peer
// shut down its write side) from other transport failures. It is always
// wrapped inside a ConnError with KindConnectionError.
var ErrRemoteHostClosedConnection = errors.New("p2p: remote host closed connection")

// Kind discriminates errors raised at the connection-driver layer. Its values
// match wire.KindProxyRequired and wire.KindConnectionError, but it is a
// separate type: driver errors surface as *ConnError, while codec errors from
// GetMessages surface unwrapped as *wire.WireError, so callers errors.As
// against each type separately.
type Kind int

const (
	KindProxyRequired Kind = iota
	KindConnectionError
)

func (k Kind) String() string {
	switch k {
	case KindProxyRequired:
		return "ProxyRequired"
	case KindConnectionError:
		return "ConnectionError"
	default:
		return "Unknown"
	}
}

// ConnError is the typed error surfaced by dialing and read/write operations
// on a Conn. Use errors.As and check Kind; for KindConnectionError, Unwrap
// may yield ErrRemoteHostClosedConnection.
type ConnError struct {
	Kind Kind
	Err  error
}

func (e *ConnError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("p2p: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("p2p: %s", e.Kind)
}

func (e *ConnError) Unwrap() error { return e.Err }

func newConnError(kind Kind, err error) *ConnError {
	return &ConnError{Kind: kind, Err: err}
}
