package wire

import (
	"bytes"
	"testing"
)

func TestNetAddrRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		host string
		port uint16
	}{
		{"ipv4", "1.2.3.4", 8333},
		{"ipv6", "2001:db8::1", 8333},
		{"onion", "abcdefghij234567.onion", 8333},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			addr, err := EncodeHost(c.host, c.port, DefaultServices)
			if err != nil {
				t.Fatalf("EncodeHost(%q): %v", c.host, err)
			}

			buf := new(bytes.Buffer)
			if err := addr.Encode(buf, false, 0); err != nil {
				t.Fatalf("Encode: %v", err)
			}

			decoded, ts, err := DecodeNetAddr(bytes.NewReader(buf.Bytes()), false)
			if err != nil {
				t.Fatalf("DecodeNetAddr: %v", err)
			}
			if ts != 0 {
				t.Errorf("timestamp = %d, want 0 for no-timestamp form", ts)
			}

			host, port := decoded.HostPort()
			if host != c.host {
				t.Errorf("host = %q, want %q", host, c.host)
			}
			if port != c.port {
				t.Errorf("port = %d, want %d", port, c.port)
			}
		})
	}
}

func TestNetAddrIPv4EncodingBytes(t *testing.T) {
	addr, err := EncodeHost("1.2.3.4", 8333, 0)
	if err != nil {
		t.Fatalf("EncodeHost: %v", err)
	}

	want := [16]byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0xff, 0xff, 1, 2, 3, 4}
	if addr.IP != want {
		t.Errorf("IP bytes = %x, want %x", addr.IP, want)
	}

	buf := new(bytes.Buffer)
	if err := addr.Encode(buf, false, 0); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	b := buf.Bytes()
	portBytes := b[len(b)-2:]
	if !bytes.Equal(portBytes, []byte{0x20, 0x8d}) {
		t.Errorf("port bytes = %x, want 208d", portBytes)
	}
}

func TestNetAddrWithTimestamp(t *testing.T) {
	addr, err := EncodeHost("5.6.7.8", 8333, DefaultServices)
	if err != nil {
		t.Fatalf("EncodeHost: %v", err)
	}

	buf := new(bytes.Buffer)
	if err := addr.Encode(buf, true, 1234); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, ts, err := DecodeNetAddr(bytes.NewReader(buf.Bytes()), true)
	if err != nil {
		t.Fatalf("DecodeNetAddr: %v", err)
	}
	if ts != 1234 {
		t.Errorf("timestamp = %d, want 1234", ts)
	}
	if host, _ := decoded.HostPort(); host != "5.6.7.8" {
		t.Errorf("host = %q, want 5.6.7.8", host)
	}
}

func TestEncodeHostInvalid(t *testing.T) {
	if _, err := EncodeHost("not-an-address", 1, 0); err == nil {
		t.Fatal("expected error for unparseable host")
	}
}
