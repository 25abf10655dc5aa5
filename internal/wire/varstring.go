package wire

import (
	"fmt"
	"io"
)

// PutVarString writes a VarInt length prefix followed by the raw bytes of b.
func PutVarString(w io.Writer, b []byte) error {
	if err := PutVarInt(w, uint64(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// ReadVarString reads a VarInt length prefix followed by that many raw bytes.
// No UTF-8 validation is performed; the bytes are returned as-is.
func ReadVarString(r io.Reader) ([]byte, error) {
	n, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, newErr(KindReadError, fmt.Errorf("reading varstring body: %w", err))
	}
	return b, nil
}
