package p2p

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sort"

	"github.com/keato/p2pcodec/internal/metrics"
	"github.com/keato/p2pcodec/internal/wire"
)

// socketBufSize matches the buffer size a best-effort read pulls per
// syscall when no exact length is requested.
const socketBufSize = 8192

// Conn drives a single outbound connection to a Bitcoin peer: dialing,
// handshake, and the request/response operations built on GetMessages. A
// Conn is not safe for concurrent use; callers wanting parallelism should
// own one Conn per goroutine.
type Conn struct {
	toHost, fromHost string
	toPort, fromPort uint16

	cfg   wire.Config
	proxy *ProxyEndpoint

	conn net.Conn
}

// Option configures a Conn at construction time.
type Option func(*Conn)

// WithConfig overrides the codec defaults used to build outbound messages.
func WithConfig(cfg wire.Config) Option {
	return func(c *Conn) { c.cfg = cfg }
}

// WithSource binds the local address dialed from. Defaults to "0.0.0.0:0",
// i.e. let the kernel choose.
func WithSource(host string, port uint16) Option {
	return func(c *Conn) { c.fromHost, c.fromPort = host, port }
}

// WithProxy routes onion destinations through a SOCKS5 proxy at host:port.
func WithProxy(host string, port uint16) Option {
	return func(c *Conn) { c.proxy = &ProxyEndpoint{Host: host, Port: port} }
}

// NewConn prepares a Conn for toHost:toPort. Port 0 is replaced with the
// default Bitcoin mainnet port. The connection isn't dialed until Open.
func NewConn(toHost string, toPort uint16, opts ...Option) *Conn {
	if toPort == 0 {
		toPort = wire.DefaultPort
	}
	c := &Conn{
		toHost:   toHost,
		toPort:   toPort,
		fromHost: "0.0.0.0",
		fromPort: 0,
		cfg:      wire.NewConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open dials the destination, directly over TCP or through a SOCKS5 proxy
// for .onion hosts. An .onion destination with no configured proxy fails
// with ErrProxyRequired before any network I/O is attempted.
func (c *Conn) Open(ctx context.Context) error {
	dest := net.JoinHostPort(c.toHost, portString(c.toPort))
	source := net.JoinHostPort(c.fromHost, portString(c.fromPort))

	conn, err := openStream(ctx, dest, source, c.cfg.SocketTimeout, c.proxy)
	if err != nil {
		return err
	}
	c.conn = conn
	return nil
}

// Close attempts a graceful shutdown of both directions and always releases
// the underlying socket. Transport errors during shutdown are suppressed.
func (c *Conn) Close() error {
	if c.conn == nil {
		return nil
	}
	if tc, ok := c.conn.(*net.TCPConn); ok {
		_ = tc.CloseRead()
		_ = tc.CloseWrite()
	}
	return c.conn.Close()
}

func portString(p uint16) string {
	return fmt.Sprintf("%d", p)
}

func (c *Conn) send(frame []byte) error {
	if _, err := c.conn.Write(frame); err != nil {
		return newConnError(KindConnectionError, fmt.Errorf("write: %w", err))
	}
	return nil
}

// recv pulls at least length bytes when length > 0 (looping over the
// transport until satisfied, matching the original driver's accumulating
// read), or one best-effort read of up to socketBufSize bytes when length
// is 0. Each read asks for up to socketBufSize bytes, so with length > 0 the
// result can run past length when the peer has more data ready; those extra
// bytes are returned too, not held back. A zero-length read from the peer
// surfaces as ErrRemoteHostClosedConnection.
func (c *Conn) recv(length int) ([]byte, error) {
	if length <= 0 {
		chunk := make([]byte, socketBufSize)
		n, err := c.conn.Read(chunk)
		if n == 0 {
			return nil, c.closedOrErr(err)
		}
		metrics.BytesRead.Add(float64(n))
		return chunk[:n], nil
	}

	out := make([]byte, 0, length)
	for len(out) < length {
		chunk := make([]byte, socketBufSize)
		n, err := c.conn.Read(chunk)
		if n > 0 {
			out = append(out, chunk[:n]...)
			metrics.BytesRead.Add(float64(n))
		}
		if n == 0 {
			return nil, c.closedOrErr(err)
		}
		if err != nil && len(out) < length {
			return nil, newConnError(KindConnectionError, err)
		}
	}
	return out, nil
}

func (c *Conn) closedOrErr(err error) error {
	if err == nil || errors.Is(err, io.EOF) {
		return newConnError(KindConnectionError, fmt.Errorf("%s: %w", c.toHost, ErrRemoteHostClosedConnection))
	}
	return newConnError(KindConnectionError, err)
}

// GetMessages drains as many complete messages as fit in the bytes pulled
// for this call: an exact length when length > 0, otherwise one best-effort
// read. Any ping encountered is answered with a pong before the loop
// continues, regardless of commands. If commands is non-empty, the returned
// slice is filtered to those commands; auto-pong still happens for every
// ping seen, filtered or not.
func (c *Conn) GetMessages(ctx context.Context, length int, commands ...string) ([]wire.Message, error) {
	var msgs []wire.Message

	data, err := c.recv(length)
	if err != nil {
		return nil, err
	}

	for len(data) > 0 {
		select {
		case <-ctx.Done():
			return msgs, ctx.Err()
		default:
		}

		msg, rest, need, err := wire.TryDecode(data)
		if err != nil {
			return msgs, err
		}
		if msg == nil {
			metrics.ShortPayloadRetries.Inc()
			more, err := c.recv(need - len(data))
			if err != nil {
				return msgs, err
			}
			data = append(data, more...)
			msg, rest, _, err = wire.TryDecode(data)
			if err != nil {
				return msgs, err
			}
			if msg == nil {
				return msgs, fmt.Errorf("p2p: payload still incomplete after retry")
			}
		}

		if msg.Command() == "ping" && msg.Ping != nil {
			if err := c.Pong(ctx, msg.Ping.Nonce); err != nil {
				return msgs, err
			}
			metrics.AutoPongsSent.Inc()
		}

		msgs = append(msgs, *msg)
		data = rest
	}

	if len(commands) > 0 && len(msgs) > 0 {
		allow := make(map[string]bool, len(commands))
		for _, cmd := range commands {
			allow[cmd] = true
		}
		filtered := msgs[:0]
		for _, m := range msgs {
			if allow[m.Command()] {
				filtered = append(filtered, m)
			}
		}
		msgs = filtered
	}

	return msgs, nil
}

// Handshake sends version and reads at least 148 bytes (see recv), filtered
// to {version, verack}, returning them ordered with version before verack.
// Absence of either message isn't an error at this layer.
func (c *Conn) Handshake(ctx context.Context) ([]wire.Message, error) {
	v, err := wire.NewVersionPayload(c.cfg, c.toHost, c.toPort, c.fromHost, c.fromPort)
	if err != nil {
		return nil, fmt.Errorf("building version payload: %w", err)
	}
	payload, err := v.Encode()
	if err != nil {
		return nil, fmt.Errorf("encoding version payload: %w", err)
	}
	frame, err := wire.EncodeMessage("version", payload)
	if err != nil {
		return nil, fmt.Errorf("framing version: %w", err)
	}
	if err := c.send(frame); err != nil {
		return nil, err
	}

	msgs, err := c.GetMessages(ctx, 148, "version", "verack")
	if err != nil {
		return msgs, err
	}

	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Command() > msgs[j].Command()
	})
	return msgs, nil
}

// GetAddr sends an empty getaddr and reads until the transport yields data,
// filtered to addr.
func (c *Conn) GetAddr(ctx context.Context) ([]wire.Message, error) {
	frame, err := wire.EncodeMessage("getaddr", nil)
	if err != nil {
		return nil, err
	}
	if err := c.send(frame); err != nil {
		return nil, err
	}
	return c.GetMessages(ctx, 0, "addr")
}

// Addr sends one addr frame with entries. The caller is responsible for the
// <=1000 entry cap.
func (c *Conn) Addr(entries []wire.AddrEntry) error {
	payload, err := wire.EncodeAddrPayload(entries)
	if err != nil {
		return err
	}
	frame, err := wire.EncodeMessage("addr", payload)
	if err != nil {
		return err
	}
	return c.send(frame)
}

// Ping sends a ping with nonce, generating a fresh 64-bit random nonce if
// nonce is nil, and returns the nonce actually sent.
func (c *Conn) Ping(nonce *uint64) (uint64, error) {
	n, err := resolveNonce(nonce)
	if err != nil {
		return 0, err
	}
	payload, err := wire.PingPayload{Nonce: n}.Encode()
	if err != nil {
		return 0, err
	}
	frame, err := wire.EncodeMessage("ping", payload)
	if err != nil {
		return 0, err
	}
	return n, c.send(frame)
}

// Pong sends a pong echoing exactly nonce.
func (c *Conn) Pong(ctx context.Context, nonce uint64) error {
	payload, err := wire.PingPayload{Nonce: nonce}.Encode()
	if err != nil {
		return err
	}
	frame, err := wire.EncodeMessage("pong", payload)
	if err != nil {
		return err
	}
	return c.send(frame)
}

// Inv sends an inv frame announcing vectors.
func (c *Conn) Inv(vectors []wire.InvVector) error {
	payload, err := wire.EncodeInvPayload(vectors)
	if err != nil {
		return err
	}
	frame, err := wire.EncodeMessage("inv", payload)
	if err != nil {
		return err
	}
	return c.send(frame)
}

// RequestData sends a getdata frame requesting vectors without waiting for a
// response; the tx/block payloads arrive on whatever GetMessages call the
// caller's own read loop is already running.
func (c *Conn) RequestData(vectors []wire.InvVector) error {
	payload, err := wire.EncodeInvPayload(vectors)
	if err != nil {
		return err
	}
	frame, err := wire.EncodeMessage("getdata", payload)
	if err != nil {
		return err
	}
	return c.send(frame)
}

// GetData sends a getdata frame requesting vectors, then reads filtered to
// {tx, block}.
func (c *Conn) GetData(ctx context.Context, vectors []wire.InvVector) ([]wire.Message, error) {
	if err := c.RequestData(vectors); err != nil {
		return nil, err
	}
	return c.GetMessages(ctx, 0, "tx", "block")
}

func resolveNonce(nonce *uint64) (uint64, error) {
	if nonce != nil {
		return *nonce, nil
	}
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("generating nonce: %w", err)
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}
