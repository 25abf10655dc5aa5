package wire

import "testing"

func TestInvVectorHexRoundTrip(t *testing.T) {
	hexHash := "000000000019d6689c085ae165831e934ff763ae46a2a6c172b3f1b60a8ce26f"
	v, err := InvVectorFromHex(InvBlock, hexHash)
	if err != nil {
		t.Fatalf("InvVectorFromHex: %v", err)
	}
	if got := v.Hex(); got != hexHash {
		t.Errorf("Hex() = %q, want %q", got, hexHash)
	}
}

func TestInvPayloadRoundTrip(t *testing.T) {
	v1, err := InvVectorFromHex(InvTx, "0000000000000000000000000000000000000000000000000000000000000001"[:64])
	if err != nil {
		t.Fatalf("InvVectorFromHex: %v", err)
	}
	v2, err := InvVectorFromHex(InvBlock, "1111111111111111111111111111111111111111111111111111111111111111"[:64])
	if err != nil {
		t.Fatalf("InvVectorFromHex: %v", err)
	}

	payload, err := EncodeInvPayload([]InvVector{v1, v2})
	if err != nil {
		t.Fatalf("EncodeInvPayload: %v", err)
	}

	got, err := decodeInvPayload(payload)
	if err != nil {
		t.Fatalf("decodeInvPayload: %v", err)
	}

	if len(got.Vectors) != 2 {
		t.Fatalf("got %d vectors, want 2", len(got.Vectors))
	}
	if got.Vectors[0].Type != InvTx || got.Vectors[1].Type != InvBlock {
		t.Errorf("types mismatch: %+v", got.Vectors)
	}
	if got.Vectors[0].Hash != v1.Hash || got.Vectors[1].Hash != v2.Hash {
		t.Errorf("hashes mismatch")
	}
	if got.Timestamp == 0 {
		t.Error("decode-side timestamp not stamped")
	}
}

func TestEncodeInvPayloadRejectsOverflow(t *testing.T) {
	if _, err := EncodeInvPayload(make([]InvVector, MaxInvEntries+1)); err == nil {
		t.Fatal("expected error for inventory over MaxInvEntries")
	}
}
