package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// PingPayload is the single-nonce payload shared by ping and pong messages.
type PingPayload struct {
	Nonce uint64
}

// Encode serializes p to its 8-byte wire form.
func (p PingPayload) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, p.Nonce); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodePingPayload(payload []byte) (*PingPayload, error) {
	r := bytes.NewReader(payload)
	var p PingPayload
	if err := binary.Read(r, binary.LittleEndian, &p.Nonce); err != nil {
		return nil, newErr(KindReadError, fmt.Errorf("reading nonce: %w", err))
	}
	return &p, nil
}
