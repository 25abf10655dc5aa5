package wire

import (
	"bytes"
	"fmt"
)

// MaxAddrEntries is the maximum number of entries an outbound addr message
// may carry. The decoder tolerates whatever count a peer actually sent.
const MaxAddrEntries = 1000

// AddrEntry is one timestamped network address from an addr message.
type AddrEntry struct {
	Timestamp uint32
	Addr      NetAddr
}

// AddrPayload is the payload of an addr message.
type AddrPayload struct {
	Entries []AddrEntry
}

// EncodeAddrPayload serializes entries as an addr-message payload. It is an
// error to pass more than MaxAddrEntries entries.
func EncodeAddrPayload(entries []AddrEntry) ([]byte, error) {
	if len(entries) > MaxAddrEntries {
		return nil, fmt.Errorf("addr list has %d entries, max %d", len(entries), MaxAddrEntries)
	}

	buf := new(bytes.Buffer)
	if err := PutVarInt(buf, uint64(len(entries))); err != nil {
		return nil, err
	}
	for _, e := range entries {
		if err := e.Addr.Encode(buf, true, e.Timestamp); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func decodeAddrPayload(payload []byte) (*AddrPayload, error) {
	r := bytes.NewReader(payload)

	count, err := ReadVarInt(r)
	if err != nil {
		return nil, fmt.Errorf("reading addr count: %w", err)
	}

	entries := make([]AddrEntry, 0, count)
	for i := uint64(0); i < count; i++ {
		addr, ts, err := DecodeNetAddr(r, true)
		if err != nil {
			return nil, fmt.Errorf("reading addr entry %d: %w", i, err)
		}
		entries = append(entries, AddrEntry{Timestamp: ts, Addr: addr})
	}

	return &AddrPayload{Entries: entries}, nil
}
