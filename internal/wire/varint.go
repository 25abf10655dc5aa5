package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// VarInt encoding tags, per the Bitcoin protocol.
const (
	varIntTag16 = 0xfd
	varIntTag32 = 0xfe
	varIntTag64 = 0xff
)

// PutVarInt appends the VarInt encoding of n to w.
func PutVarInt(w io.Writer, n uint64) error {
	switch {
	case n < varIntTag16:
		_, err := w.Write([]byte{byte(n)})
		return err
	case n <= 0xffff:
		if _, err := w.Write([]byte{varIntTag16}); err != nil {
			return err
		}
		return binary.Write(w, binary.LittleEndian, uint16(n))
	case n <= 0xffffffff:
		if _, err := w.Write([]byte{varIntTag32}); err != nil {
			return err
		}
		return binary.Write(w, binary.LittleEndian, uint32(n))
	default:
		if _, err := w.Write([]byte{varIntTag64}); err != nil {
			return err
		}
		return binary.Write(w, binary.LittleEndian, n)
	}
}

// ReadVarInt reads a VarInt from r.
func ReadVarInt(r io.Reader) (uint64, error) {
	var tag [1]byte
	if _, err := io.ReadFull(r, tag[:]); err != nil {
		return 0, newErr(KindReadError, fmt.Errorf("reading varint tag: %w", err))
	}

	switch tag[0] {
	case varIntTag64:
		var v uint64
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return 0, newErr(KindReadError, fmt.Errorf("reading varint u64: %w", err))
		}
		return v, nil
	case varIntTag32:
		var v uint32
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return 0, newErr(KindReadError, fmt.Errorf("reading varint u32: %w", err))
		}
		return uint64(v), nil
	case varIntTag16:
		var v uint16
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return 0, newErr(KindReadError, fmt.Errorf("reading varint u16: %w", err))
		}
		return uint64(v), nil
	default:
		return uint64(tag[0]), nil
	}
}

// VarIntLen returns the number of bytes PutVarInt would emit for n.
func VarIntLen(n uint64) int {
	switch {
	case n < varIntTag16:
		return 1
	case n <= 0xffff:
		return 3
	case n <= 0xffffffff:
		return 5
	default:
		return 9
	}
}
