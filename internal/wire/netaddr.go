package wire

import (
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strings"
)

// onionPrefix marks a 16-byte address slot as carrying a v2 onion identity
// rather than a real IPv6 address.
var onionPrefix = [6]byte{0xfd, 0x87, 0xd8, 0x7e, 0xeb, 0x43}

var onionEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NetAddr is a Bitcoin network address record: 8-byte services field, 16-byte
// IP slot (IPv4-mapped IPv6, raw IPv6, or onion-prefixed onion identity), and
// a big-endian port. The addr message prefixes each entry with a 4-byte
// timestamp; the version payload's to_addr/from_addr do not.
type NetAddr struct {
	Services uint64
	IP       [16]byte
	Port     uint16
}

// EncodeHost builds a NetAddr for host, which may be an IPv4 dotted-quad, an
// IPv6 literal, or a "xxxxxxxxxxxxxxxx.onion" v2 onion hostname (16 base32
// characters, decoding to exactly 10 raw bytes).
func EncodeHost(host string, port uint16, services uint64) (NetAddr, error) {
	addr := NetAddr{Services: services, Port: port}

	if strings.HasSuffix(host, ".onion") {
		label := strings.ToUpper(strings.TrimSuffix(host, ".onion"))
		raw, err := onionEncoding.DecodeString(label)
		if err != nil {
			return NetAddr{}, fmt.Errorf("decoding onion label %q: %w", host, err)
		}
		if len(raw) != 10 {
			return NetAddr{}, fmt.Errorf("onion label %q decodes to %d bytes, want 10", host, len(raw))
		}
		copy(addr.IP[:6], onionPrefix[:])
		copy(addr.IP[6:], raw)
		return addr, nil
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return NetAddr{}, fmt.Errorf("invalid host %q", host)
	}
	if v4 := ip.To4(); v4 != nil {
		// 10 zero bytes, 2 0xFF bytes, then the 4-byte v4 address.
		addr.IP[10] = 0xff
		addr.IP[11] = 0xff
		copy(addr.IP[12:], v4)
		return addr, nil
	}
	copy(addr.IP[:], ip.To16())
	return addr, nil
}

// HostPort decodes a into exactly one of {ipv4, ipv6, onion} plus its port.
// If the leading 6 bytes match onionPrefix, the remaining 10 bytes are
// rendered as a lowercase base32 ".onion" hostname. Otherwise the 16 bytes
// are interpreted as IPv6; if that IPv6 textual form is the v4-mapped form
// of the trailing 4 bytes, the v4 dotted-quad is exposed instead.
func (a NetAddr) HostPort() (host string, port uint16) {
	port = a.Port

	if a.IP[0] == onionPrefix[0] && a.IP[1] == onionPrefix[1] && a.IP[2] == onionPrefix[2] &&
		a.IP[3] == onionPrefix[3] && a.IP[4] == onionPrefix[4] && a.IP[5] == onionPrefix[5] {
		return strings.ToLower(onionEncoding.EncodeToString(a.IP[6:])) + ".onion", port
	}

	v6 := net.IP(append([]byte(nil), a.IP[:]...))
	v4 := net.IP(a.IP[12:16])
	if v6.String() == v4.String() {
		return v4.String(), port
	}
	return v6.String(), port
}

// IsOnion reports whether a carries a v2 onion identity.
func (a NetAddr) IsOnion() bool {
	return a.IP[0] == onionPrefix[0] && a.IP[1] == onionPrefix[1] && a.IP[2] == onionPrefix[2] &&
		a.IP[3] == onionPrefix[3] && a.IP[4] == onionPrefix[4] && a.IP[5] == onionPrefix[5]
}

// Encode writes a to w. When withTimestamp is true, ts is written as a
// 4-byte little-endian prefix before the services field (addr-message form);
// otherwise no timestamp is written (version-message to_addr/from_addr form).
func (a NetAddr) Encode(w io.Writer, withTimestamp bool, ts uint32) error {
	if withTimestamp {
		if err := binary.Write(w, binary.LittleEndian, ts); err != nil {
			return err
		}
	}
	if err := binary.Write(w, binary.LittleEndian, a.Services); err != nil {
		return err
	}
	if _, err := w.Write(a.IP[:]); err != nil {
		return err
	}
	return binary.Write(w, binary.BigEndian, a.Port)
}

// DecodeNetAddr reads a NetAddr from r. When withTimestamp is true, a 4-byte
// little-endian timestamp is read first and returned as ts.
func DecodeNetAddr(r io.Reader, withTimestamp bool) (addr NetAddr, ts uint32, err error) {
	if withTimestamp {
		if err = binary.Read(r, binary.LittleEndian, &ts); err != nil {
			return NetAddr{}, 0, newErr(KindReadError, fmt.Errorf("reading addr timestamp: %w", err))
		}
	}
	if err = binary.Read(r, binary.LittleEndian, &addr.Services); err != nil {
		return NetAddr{}, 0, newErr(KindReadError, fmt.Errorf("reading addr services: %w", err))
	}
	if _, err = io.ReadFull(r, addr.IP[:]); err != nil {
		return NetAddr{}, 0, newErr(KindReadError, fmt.Errorf("reading addr ip: %w", err))
	}
	if err = binary.Read(r, binary.BigEndian, &addr.Port); err != nil {
		return NetAddr{}, 0, newErr(KindReadError, fmt.Errorf("reading addr port: %w", err))
	}
	return addr, ts, nil
}
