package wire

import (
	"bytes"
	"testing"
)

func TestVarIntRoundTrip(t *testing.T) {
	cases := []struct {
		n       uint64
		wantLen int
	}{
		{0, 1},
		{0xfc, 1},
		{0xfd, 3},
		{0xffff, 3},
		{0x10000, 5},
		{0xffffffff, 5},
		{0x100000000, 9},
	}

	for _, c := range cases {
		buf := new(bytes.Buffer)
		if err := PutVarInt(buf, c.n); err != nil {
			t.Fatalf("PutVarInt(%d): %v", c.n, err)
		}
		if buf.Len() != c.wantLen {
			t.Errorf("PutVarInt(%d) wrote %d bytes, want %d", c.n, buf.Len(), c.wantLen)
		}
		if got := VarIntLen(c.n); got != c.wantLen {
			t.Errorf("VarIntLen(%d) = %d, want %d", c.n, got, c.wantLen)
		}

		got, err := ReadVarInt(bytes.NewReader(buf.Bytes()))
		if err != nil {
			t.Fatalf("ReadVarInt(%d): %v", c.n, err)
		}
		if got != c.n {
			t.Errorf("round trip %d => %d", c.n, got)
		}
	}
}

func TestReadVarIntShortBuffer(t *testing.T) {
	if _, err := ReadVarInt(bytes.NewReader([]byte{0xfd, 0x01})); err == nil {
		t.Fatal("expected error on truncated u16 varint")
	}
}
