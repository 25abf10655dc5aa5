package wire

import "testing"

func TestBlockHashComputedOverFirst80Bytes(t *testing.T) {
	header := BlockHeader{
		Version:   1,
		Timestamp: 1231006505,
		Bits:      0x1d00ffff,
		Nonce:     2083236893,
	}
	block := Block{Header: header, Tx: []*Tx{{Version: 1, LockTime: 0}}}

	payload, err := block.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := DecodeBlock(payload)
	if err != nil {
		t.Fatalf("DecodeBlock: %v", err)
	}

	want := displayHash(sha256d(payload[:BlockHeaderLen]))
	if got.BlockHash != want {
		t.Errorf("block_hash = %q, want %q", got.BlockHash, want)
	}
	if len(got.Tx) != 1 {
		t.Fatalf("tx count = %d, want 1", len(got.Tx))
	}
	if got.Header.Version != 1 || got.Header.Bits != 0x1d00ffff || got.Header.Nonce != 2083236893 {
		t.Errorf("header mismatch: %+v", got.Header)
	}
}

func TestBlockPayloadTooShort(t *testing.T) {
	_, err := DecodeBlock(make([]byte, 40))
	if err == nil {
		t.Fatal("expected error for undersized block payload")
	}
}

func TestDifficultyFromBits(t *testing.T) {
	h := BlockHeader{Bits: 0x1d00ffff}
	if d := h.Difficulty(); d < 0.99 || d > 1.01 {
		t.Errorf("difficulty for minimum bits = %f, want ~1.0", d)
	}
}
