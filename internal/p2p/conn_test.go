package p2p

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/keato/p2pcodec/internal/wire"
)

func newTestConn(client net.Conn) *Conn {
	c := NewConn("127.0.0.1", wire.DefaultPort)
	c.conn = client
	return c
}

// readFrame reads one full frame off r. It returns an error instead of
// calling t.Fatalf so it's safe to use from a goroutine other than the
// test's own (testing.T.FailNow is only safe from the test goroutine).
func readFrame(r io.Reader) (command string, payload []byte, err error) {
	hdr := make([]byte, wire.HeaderLen)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return "", nil, fmt.Errorf("reading header: %w", err)
	}
	length := binary.LittleEndian.Uint32(hdr[16:20])
	payload = make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return "", nil, fmt.Errorf("reading payload: %w", err)
		}
	}
	msg, _, err := wire.DecodeMessage(append(append([]byte{}, hdr...), payload...))
	if err != nil {
		return "", nil, fmt.Errorf("decoding frame: %w", err)
	}
	return msg.Command(), payload, nil
}

func TestHandshakeOrdersVersionBeforeVerack(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	c := newTestConn(client)

	done := make(chan struct{})
	go func() {
		defer close(done)
		// consume the outbound version frame
		if _, _, err := readFrame(server); err != nil {
			t.Errorf("reading outbound version: %v", err)
			return
		}

		peerVersion, err := wire.NewVersionPayload(wire.NewConfig(), "0.0.0.0", 0, "0.0.0.0", 0)
		if err != nil {
			t.Errorf("NewVersionPayload: %v", err)
			return
		}
		vPayload, err := peerVersion.Encode()
		if err != nil {
			t.Errorf("Encode: %v", err)
			return
		}
		vFrame, err := wire.EncodeMessage("version", vPayload)
		if err != nil {
			t.Errorf("EncodeMessage version: %v", err)
			return
		}
		verackFrame, err := wire.EncodeMessage("verack", nil)
		if err != nil {
			t.Errorf("EncodeMessage verack: %v", err)
			return
		}

		// write verack first to prove Handshake reorders the result.
		if _, err := server.Write(verackFrame); err != nil {
			t.Errorf("writing verack: %v", err)
			return
		}
		if _, err := server.Write(vFrame); err != nil {
			t.Errorf("writing version: %v", err)
			return
		}
	}()

	msgs, err := c.Handshake(context.Background())
	<-done
	if err != nil {
		t.Fatalf("Handshake: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2: %+v", len(msgs), msgs)
	}
	if msgs[0].Command() != "version" || msgs[1].Command() != "verack" {
		t.Errorf("order = [%s, %s], want [version, verack]", msgs[0].Command(), msgs[1].Command())
	}
}

func TestHandshakeIncompatibleClient(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	c := newTestConn(client)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, _, err := readFrame(server); err != nil {
			t.Errorf("reading outbound version: %v", err)
			return
		}

		toAddr, _ := wire.EncodeHost("0.0.0.0", 0, 0)
		fromAddr, _ := wire.EncodeHost("0.0.0.0", 0, 0)
		peerVersion := rawStaleVersion(toAddr, fromAddr)
		payload, err := peerVersion.Encode()
		if err != nil {
			t.Errorf("Encode: %v", err)
			return
		}
		frame, err := wire.EncodeMessage("version", payload)
		if err != nil {
			t.Errorf("EncodeMessage: %v", err)
			return
		}
		// Handshake's recv(148) blocks for 148 raw bytes before any parsing
		// starts; pad past that floor so it doesn't deadlock waiting for
		// bytes that will never come. The pad is never reached by the
		// decoder, since decoding the undersized version fails first.
		padded := append(append([]byte{}, frame...), make([]byte, 64)...)
		if _, err := server.Write(padded); err != nil {
			t.Errorf("writing version: %v", err)
			return
		}
	}()

	_, err := c.Handshake(context.Background())
	<-done
	if err == nil {
		t.Fatal("expected error for incompatible client version")
	}
	var werr *wire.WireError
	if !errors.As(err, &werr) || werr.Kind != wire.KindIncompatibleClient {
		t.Fatalf("err = %v, want KindIncompatibleClient", err)
	}
}

// rawStaleVersion builds a version payload carrying a pre-70001 version
// number, which NewVersionPayload itself refuses to construct.
func rawStaleVersion(toAddr, fromAddr wire.NetAddr) wire.VersionPayload {
	return wire.VersionPayload{
		Version:  70000,
		Services: 0,
		ToAddr:   toAddr,
		FromAddr: fromAddr,
	}
}

func TestAutoPongDuringGetMessages(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	c := newTestConn(client)

	const nonce = uint64(0xaabbccddeeff0011)
	pingPayload, err := wire.PingPayload{Nonce: nonce}.Encode()
	if err != nil {
		t.Fatalf("Encode ping: %v", err)
	}
	pingFrame, err := wire.EncodeMessage("ping", pingPayload)
	if err != nil {
		t.Fatalf("EncodeMessage ping: %v", err)
	}
	addrPayload, err := wire.EncodeAddrPayload(nil)
	if err != nil {
		t.Fatalf("EncodeAddrPayload: %v", err)
	}
	addrFrame, err := wire.EncodeMessage("addr", addrPayload)
	if err != nil {
		t.Fatalf("EncodeMessage addr: %v", err)
	}

	gotPongNonce := make(chan uint64, 1)
	go func() {
		combined := append(append([]byte{}, pingFrame...), addrFrame...)
		if _, err := server.Write(combined); err != nil {
			t.Errorf("writing ping+addr: %v", err)
			return
		}
		cmd, payload, err := readFrame(server)
		if err != nil {
			t.Errorf("reading pong: %v", err)
			return
		}
		if cmd != "pong" {
			t.Errorf("got command %q, want pong", cmd)
			return
		}
		gotPongNonce <- binary.LittleEndian.Uint64(payload)
	}()

	msgs, err := c.GetMessages(context.Background(), 0, "addr")
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Command() != "addr" {
		t.Fatalf("got %+v, want single addr message", msgs)
	}

	select {
	case got := <-gotPongNonce:
		if got != nonce {
			t.Errorf("pong nonce = %x, want %x", got, nonce)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no pong observed on the wire")
	}
}

func TestOnionWithoutProxyFailsFast(t *testing.T) {
	c := NewConn("abcdefghij234567.onion", 8333)
	err := c.Open(context.Background())
	if err == nil {
		t.Fatal("expected error dialing onion host without a proxy")
	}
	if !errors.Is(err, ErrProxyRequired) {
		t.Fatalf("err = %v, want ErrProxyRequired", err)
	}
	if c.conn != nil {
		t.Error("Open must not establish a connection without a proxy")
	}
}
