package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// BlockHeaderLen is the fixed size of the portion of a block payload that the
// block hash is computed over.
const BlockHeaderLen = 80

// BlockHeader is the 80-byte fixed portion of a block payload.
type BlockHeader struct {
	Version       int32
	PrevBlockHash [32]byte
	MerkleRoot    [32]byte
	Timestamp     uint32
	Bits          uint32
	Nonce         uint32
}

// PrevBlockHashHex returns the byte-reversed hex form of the previous block hash.
func (h BlockHeader) PrevBlockHashHex() string { return hex32(h.PrevBlockHash) }

// MerkleRootHex returns the byte-reversed hex form of the merkle root.
func (h BlockHeader) MerkleRootHex() string { return hex32(h.MerkleRoot) }

// Block is a fully decoded block payload. BlockHash is populated on decode
// only, computed over exactly the first 80 bytes of the payload before any
// transaction is read.
type Block struct {
	Header    BlockHeader
	Tx        []*Tx
	BlockHash string // decode-side only
}

// Difficulty converts the header's compact "bits" field to the standard
// difficulty-1 ratio.
func (h BlockHeader) Difficulty() float64 {
	exponent := h.Bits >> 24
	coefficient := float64(h.Bits & 0x007fffff)
	if coefficient == 0 {
		return 0
	}
	shift := 8 * (int(0x1d) - int(exponent))
	return (0xffff / coefficient) * math.Pow(2, float64(shift))
}

// Encode serializes b to its wire payload form.
func (b Block) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := encodeBlockHeader(buf, b.Header); err != nil {
		return nil, err
	}
	if err := PutVarInt(buf, uint64(len(b.Tx))); err != nil {
		return nil, err
	}
	for _, tx := range b.Tx {
		if err := tx.encodeTo(buf); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func encodeBlockHeader(buf *bytes.Buffer, h BlockHeader) error {
	if err := binary.Write(buf, binary.LittleEndian, h.Version); err != nil {
		return err
	}
	buf.Write(h.PrevBlockHash[:])
	buf.Write(h.MerkleRoot[:])
	if err := binary.Write(buf, binary.LittleEndian, h.Timestamp); err != nil {
		return err
	}
	if err := binary.Write(buf, binary.LittleEndian, h.Bits); err != nil {
		return err
	}
	return binary.Write(buf, binary.LittleEndian, h.Nonce)
}

// DecodeBlock parses a block-message payload, computing BlockHash over
// exactly the first 80 bytes before reading any transaction.
func DecodeBlock(payload []byte) (*Block, error) {
	if len(payload) < BlockHeaderLen {
		return nil, newErr(KindReadError,
			fmt.Errorf("block payload is %d bytes, want at least %d", len(payload), BlockHeaderLen))
	}

	blockHash := displayHash(sha256d(payload[:BlockHeaderLen]))

	r := bytes.NewReader(payload)
	var h BlockHeader

	if err := binary.Read(r, binary.LittleEndian, &h.Version); err != nil {
		return nil, newErr(KindReadError, fmt.Errorf("reading block version: %w", err))
	}
	if _, err := io.ReadFull(r, h.PrevBlockHash[:]); err != nil {
		return nil, newErr(KindReadError, fmt.Errorf("reading prev_block_hash: %w", err))
	}
	if _, err := io.ReadFull(r, h.MerkleRoot[:]); err != nil {
		return nil, newErr(KindReadError, fmt.Errorf("reading merkle_root: %w", err))
	}
	if err := binary.Read(r, binary.LittleEndian, &h.Timestamp); err != nil {
		return nil, newErr(KindReadError, fmt.Errorf("reading block timestamp: %w", err))
	}
	if err := binary.Read(r, binary.LittleEndian, &h.Bits); err != nil {
		return nil, newErr(KindReadError, fmt.Errorf("reading bits: %w", err))
	}
	if err := binary.Read(r, binary.LittleEndian, &h.Nonce); err != nil {
		return nil, newErr(KindReadError, fmt.Errorf("reading block nonce: %w", err))
	}

	txCount, err := ReadVarInt(r)
	if err != nil {
		return nil, fmt.Errorf("reading tx count: %w", err)
	}

	txs := make([]*Tx, txCount)
	for i := uint64(0); i < txCount; i++ {
		tx, err := decodeTxFrom(r)
		if err != nil {
			return nil, fmt.Errorf("reading tx[%d]: %w", i, err)
		}
		txs[i] = tx
	}

	return &Block{Header: h, Tx: txs, BlockHash: blockHash}, nil
}

func hex32(h [32]byte) string {
	return displayHash(h)
}
