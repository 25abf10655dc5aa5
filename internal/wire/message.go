package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// MagicMainnet identifies the Bitcoin mainnet P2P network.
const MagicMainnet uint32 = 0xd9b4bef9

// HeaderLen is the fixed size of a message header: 4-byte magic, 12-byte
// command, 4-byte length, 4-byte checksum.
const HeaderLen = 24

// MinProtocolVersion is the lowest version.version this codec accepts from a peer.
const MinProtocolVersion = 70001

// Header is the fixed 24-byte preamble of every message.
type Header struct {
	Magic    uint32
	Command  string // trimmed of trailing zero padding
	Length   uint32
	Checksum [4]byte
}

// Message is a fully decoded frame: the header plus whichever typed payload
// its command carries. At most one of the typed fields is populated,
// matching Header.Command; commands without a typed payload here (verack,
// getaddr, getdata, and unrecognized ones) carry only RawPayload.
type Message struct {
	Header     Header
	RawPayload []byte // always populated with the raw payload bytes

	Version *VersionPayload
	Ping    *PingPayload
	Pong    *PingPayload
	Addr    *AddrPayload
	Inv     *InvPayload
	Tx      *Tx
	Block   *Block
}

// Command returns msg.Header.Command for convenience.
func (msg *Message) Command() string { return msg.Header.Command }

// EncodeMessage renders a complete frame for command: magic, 12-byte padded
// command, little-endian length, checksum, then payload. command must be one
// of "version", "ping", "pong", "addr", "inv", "getdata", or any other
// command name, in which case payload is carried as-is (e.g. empty for
// "verack"/"getaddr").
func EncodeMessage(command string, payload []byte) ([]byte, error) {
	if len(command) > 12 {
		return nil, fmt.Errorf("command %q longer than 12 bytes", command)
	}

	buf := new(bytes.Buffer)
	buf.Grow(HeaderLen + len(payload))

	if err := binary.Write(buf, binary.LittleEndian, MagicMainnet); err != nil {
		return nil, err
	}

	var cmd [12]byte
	copy(cmd[:], command)
	buf.Write(cmd[:])

	if err := binary.Write(buf, binary.LittleEndian, uint32(len(payload))); err != nil {
		return nil, err
	}

	sum := checksum4(payload)
	buf.Write(sum[:])
	buf.Write(payload)

	return buf.Bytes(), nil
}

// decodeHeader parses the fixed 24-byte header at the front of data.
func decodeHeader(data []byte) (Header, error) {
	var h Header
	r := bytes.NewReader(data[:HeaderLen])

	if err := binary.Read(r, binary.LittleEndian, &h.Magic); err != nil {
		return Header{}, newErr(KindReadError, err)
	}
	if h.Magic != MagicMainnet {
		return Header{}, newErr(KindInvalidMagicNumber,
			fmt.Errorf("got 0x%08x, want 0x%08x", h.Magic, MagicMainnet))
	}

	var cmd [12]byte
	if _, err := r.Read(cmd[:]); err != nil {
		return Header{}, newErr(KindReadError, err)
	}
	h.Command = string(bytes.TrimRight(cmd[:], "\x00"))

	if err := binary.Read(r, binary.LittleEndian, &h.Length); err != nil {
		return Header{}, newErr(KindReadError, err)
	}
	if _, err := r.Read(h.Checksum[:]); err != nil {
		return Header{}, newErr(KindReadError, err)
	}

	return h, nil
}

// TryDecode attempts to decode one message from the front of buf. On success
// it returns the message and the unconsumed remainder of buf. If buf doesn't
// yet hold a complete message, need is the total number of bytes buf must
// reach before retrying (need > 0, msg == nil, err == nil). Any other error
// is fatal for this message.
func TryDecode(buf []byte) (msg *Message, rest []byte, need int, err error) {
	if len(buf) < HeaderLen {
		return nil, nil, HeaderLen, nil
	}

	header, err := decodeHeader(buf)
	if err != nil {
		return nil, nil, 0, err
	}

	total := HeaderLen + int(header.Length)
	if len(buf) < total {
		return nil, nil, total, nil
	}

	payload := buf[HeaderLen:total]
	sum := checksum4(payload)
	if sum != header.Checksum {
		return nil, nil, 0, newErr(KindInvalidPayloadChecksum,
			fmt.Errorf("got %x, want %x", sum, header.Checksum))
	}

	m := &Message{Header: header, RawPayload: payload}
	if err := decodePayload(m, payload); err != nil {
		return nil, nil, 0, err
	}

	return m, buf[total:], 0, nil
}

// DecodeMessage is the simpler, WireError-based counterpart to TryDecode: it
// returns a *WireError of KindPayloadTooShort (with RequiredLen set) instead
// of the explicit need return, for callers outside the connection driver
// that prefer to pull RequiredLen-len(buf) more bytes and retry.
func DecodeMessage(buf []byte) (msg *Message, rest []byte, err error) {
	if len(buf) < HeaderLen {
		return nil, nil, newErr(KindHeaderTooShort,
			fmt.Errorf("got %d of %d bytes", len(buf), HeaderLen))
	}

	header, err := decodeHeader(buf)
	if err != nil {
		return nil, nil, err
	}

	total := HeaderLen + int(header.Length)
	if len(buf) < total {
		return nil, nil, newPayloadTooShort(total,
			fmt.Errorf("got %d of %d bytes", len(buf), total))
	}

	m, r, _, err := TryDecode(buf)
	return m, r, err
}

func decodePayload(m *Message, payload []byte) error {
	switch m.Header.Command {
	case "version":
		v, err := decodeVersionPayload(payload)
		if err != nil {
			return err
		}
		m.Version = v
	case "ping":
		p, err := decodePingPayload(payload)
		if err != nil {
			return err
		}
		m.Ping = p
	case "pong":
		p, err := decodePingPayload(payload)
		if err != nil {
			return err
		}
		m.Pong = p
	case "addr":
		a, err := decodeAddrPayload(payload)
		if err != nil {
			return err
		}
		m.Addr = a
	case "inv":
		i, err := decodeInvPayload(payload)
		if err != nil {
			return err
		}
		m.Inv = i
	case "tx":
		tx, err := DecodeTx(payload)
		if err != nil {
			return err
		}
		m.Tx = tx
	case "block":
		b, err := DecodeBlock(payload)
		if err != nil {
			return err
		}
		m.Block = b
	}
	// verack, getaddr, getdata-as-received, and unrecognized commands carry
	// only Header + RawPayload.
	return nil
}
