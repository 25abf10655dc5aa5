package wire

import (
	"bytes"
	"fmt"
	"time"
)

// MaxInvEntries is the maximum number of entries an outbound inv or getdata
// message may carry. The decoder tolerates whatever count a peer actually sent.
const MaxInvEntries = 50000

// InvPayload is the payload of an inv message. Timestamp is stamped at
// decode time with the wall-clock millisecond the message was parsed, so
// callers can correlate gossip timing; it has no meaning for an encoded
// (outbound) payload.
type InvPayload struct {
	Vectors   []InvVector
	Timestamp int64 // decode-side only, milliseconds since epoch
}

// EncodeInvPayload serializes vectors as an inv or getdata message payload.
// It is an error to pass more than MaxInvEntries vectors.
func EncodeInvPayload(vectors []InvVector) ([]byte, error) {
	if len(vectors) > MaxInvEntries {
		return nil, fmt.Errorf("inventory has %d entries, max %d", len(vectors), MaxInvEntries)
	}

	buf := new(bytes.Buffer)
	if err := PutVarInt(buf, uint64(len(vectors))); err != nil {
		return nil, err
	}
	for _, v := range vectors {
		if err := v.encode(buf); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func decodeInvPayload(payload []byte) (*InvPayload, error) {
	r := bytes.NewReader(payload)

	count, err := ReadVarInt(r)
	if err != nil {
		return nil, fmt.Errorf("reading inv count: %w", err)
	}

	vectors := make([]InvVector, 0, count)
	for i := uint64(0); i < count; i++ {
		v, err := decodeInvVector(r)
		if err != nil {
			return nil, fmt.Errorf("reading inv entry %d: %w", i, err)
		}
		vectors = append(vectors, v)
	}

	return &InvPayload{Vectors: vectors, Timestamp: time.Now().UnixMilli()}, nil
}
