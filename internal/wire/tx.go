package wire

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
)

// TxIn is a single transaction input. PrevOutHash is kept in wire order
// (big-endian); PrevOutHashHex exposes the byte-reversed display form.
type TxIn struct {
	PrevOutHash  [32]byte
	PrevOutIndex uint32
	Script       []byte
	Sequence     uint32
}

// PrevOutHashHex returns the byte-reversed hex form of in's previous output hash.
func (in TxIn) PrevOutHashHex() string {
	return hex.EncodeToString(reverse32(in.PrevOutHash))
}

// TxOut is a single transaction output.
type TxOut struct {
	Value  int64
	Script []byte
}

// Tx is a fully decoded Bitcoin transaction. TxHash is populated on decode
// only; it is the byte-reversed hex of sha256d of the re-serialized payload.
type Tx struct {
	Version  int32
	TxIn     []TxIn
	TxOut    []TxOut
	LockTime uint32
	TxHash   string // decode-side only
}

// Encode serializes tx to its wire payload form.
func (tx Tx) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := tx.encodeTo(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (tx Tx) encodeTo(buf *bytes.Buffer) error {
	if err := binary.Write(buf, binary.LittleEndian, uint32(tx.Version)); err != nil {
		return err
	}

	if err := PutVarInt(buf, uint64(len(tx.TxIn))); err != nil {
		return err
	}
	for _, in := range tx.TxIn {
		buf.Write(in.PrevOutHash[:])
		if err := binary.Write(buf, binary.LittleEndian, in.PrevOutIndex); err != nil {
			return err
		}
		if err := PutVarString(buf, in.Script); err != nil {
			return err
		}
		if err := binary.Write(buf, binary.LittleEndian, in.Sequence); err != nil {
			return err
		}
	}

	if err := PutVarInt(buf, uint64(len(tx.TxOut))); err != nil {
		return err
	}
	for _, out := range tx.TxOut {
		if err := binary.Write(buf, binary.LittleEndian, out.Value); err != nil {
			return err
		}
		if err := PutVarString(buf, out.Script); err != nil {
			return err
		}
	}

	return binary.Write(buf, binary.LittleEndian, tx.LockTime)
}

// DecodeTx parses a single transaction from a tx-message payload.
func DecodeTx(payload []byte) (*Tx, error) {
	r := bytes.NewReader(payload)
	tx, err := decodeTxFrom(r)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// decodeTxFrom parses one transaction from r, leaving r positioned just past
// it. Used both for standalone tx messages and for each transaction inside a
// block payload.
func decodeTxFrom(r *bytes.Reader) (*Tx, error) {
	tx := &Tx{}

	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, newErr(KindReadError, fmt.Errorf("reading tx version: %w", err))
	}
	tx.Version = int32(version)

	inCount, err := ReadVarInt(r)
	if err != nil {
		return nil, fmt.Errorf("reading tx_in count: %w", err)
	}
	tx.TxIn = make([]TxIn, inCount)
	for i := uint64(0); i < inCount; i++ {
		in := &tx.TxIn[i]
		if _, err := io.ReadFull(r, in.PrevOutHash[:]); err != nil {
			return nil, newErr(KindReadError, fmt.Errorf("reading tx_in[%d] prev_out_hash: %w", i, err))
		}
		if err := binary.Read(r, binary.LittleEndian, &in.PrevOutIndex); err != nil {
			return nil, newErr(KindReadError, fmt.Errorf("reading tx_in[%d] prev_out_index: %w", i, err))
		}
		script, err := ReadVarString(r)
		if err != nil {
			return nil, fmt.Errorf("reading tx_in[%d] script: %w", i, err)
		}
		in.Script = script
		if err := binary.Read(r, binary.LittleEndian, &in.Sequence); err != nil {
			return nil, newErr(KindReadError, fmt.Errorf("reading tx_in[%d] sequence: %w", i, err))
		}
	}

	outCount, err := ReadVarInt(r)
	if err != nil {
		return nil, fmt.Errorf("reading tx_out count: %w", err)
	}
	tx.TxOut = make([]TxOut, outCount)
	for i := uint64(0); i < outCount; i++ {
		out := &tx.TxOut[i]
		if err := binary.Read(r, binary.LittleEndian, &out.Value); err != nil {
			return nil, newErr(KindReadError, fmt.Errorf("reading tx_out[%d] value: %w", i, err))
		}
		script, err := ReadVarString(r)
		if err != nil {
			return nil, fmt.Errorf("reading tx_out[%d] script: %w", i, err)
		}
		out.Script = script
	}

	if err := binary.Read(r, binary.LittleEndian, &tx.LockTime); err != nil {
		return nil, newErr(KindReadError, fmt.Errorf("reading tx lock_time: %w", err))
	}

	reenc, err := tx.Encode()
	if err != nil {
		return nil, fmt.Errorf("re-serializing tx for hash: %w", err)
	}
	tx.TxHash = displayHash(sha256d(reenc))

	return tx, nil
}
