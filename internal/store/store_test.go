package store

import (
	"testing"

	"github.com/keato/p2pcodec/internal/wire"
)

func coinbaseWithHeightScript(script []byte) *wire.Block {
	return &wire.Block{
		Tx: []*wire.Tx{
			{TxIn: []wire.TxIn{{Script: script}}},
		},
	}
}

func TestBlockHeightFromCoinbaseBIP34(t *testing.T) {
	// BIP34 height 42 is pushed as a 1-byte minimal push: 0x01 0x2a.
	block := coinbaseWithHeightScript([]byte{0x01, 0x2a})
	if got := blockHeightFromCoinbase(block); got != 42 {
		t.Errorf("height = %d, want 42", got)
	}
}

func TestBlockHeightFromCoinbaseMultiByte(t *testing.T) {
	// Height 500000 = 0x07A120, little-endian 3-byte push.
	block := coinbaseWithHeightScript([]byte{0x03, 0x20, 0xa1, 0x07})
	if got := blockHeightFromCoinbase(block); got != 500000 {
		t.Errorf("height = %d, want 500000", got)
	}
}

func TestBlockHeightFromCoinbasePreBIP34(t *testing.T) {
	block := coinbaseWithHeightScript([]byte{})
	if got := blockHeightFromCoinbase(block); got != 0 {
		t.Errorf("height = %d, want 0 for empty scriptSig", got)
	}
}

func TestBlockHeightFromCoinbaseNoTransactions(t *testing.T) {
	block := &wire.Block{}
	if got := blockHeightFromCoinbase(block); got != 0 {
		t.Errorf("height = %d, want 0 for block with no coinbase", got)
	}
}
