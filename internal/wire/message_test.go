package wire

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"
)

func TestEncodeMessageEmptyPayloadChecksum(t *testing.T) {
	frame, err := EncodeMessage("verack", nil)
	if err != nil {
		t.Fatalf("EncodeMessage: %v", err)
	}
	if len(frame) != HeaderLen {
		t.Fatalf("frame length = %d, want %d", len(frame), HeaderLen)
	}

	wantChecksum, _ := hex.DecodeString("5df6e0e2")
	if !bytes.Equal(frame[20:24], wantChecksum) {
		t.Errorf("checksum = %x, want %x", frame[20:24], wantChecksum)
	}

	length := frame[16:20]
	if !bytes.Equal(length, []byte{0, 0, 0, 0}) {
		t.Errorf("length = %x, want zero", length)
	}
}

func TestEncodeMessagePingScenario(t *testing.T) {
	ping := PingPayload{Nonce: 0x0102030405060708}
	payload, err := ping.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	frame, err := EncodeMessage("ping", payload)
	if err != nil {
		t.Fatalf("EncodeMessage: %v", err)
	}

	wantMagic, _ := hex.DecodeString("f9beb4d9")
	if !bytes.Equal(frame[:4], wantMagic) {
		t.Errorf("magic = %x, want %x", frame[:4], wantMagic)
	}

	wantCommand := append([]byte("ping"), make([]byte, 8)...)
	if !bytes.Equal(frame[4:16], wantCommand) {
		t.Errorf("command = %x, want %x", frame[4:16], wantCommand)
	}

	wantPayload, _ := hex.DecodeString("0807060504030201")
	if !bytes.Equal(frame[24:], wantPayload) {
		t.Errorf("payload = %x, want %x", frame[24:], wantPayload)
	}

	wantChecksum := checksum4(wantPayload)
	if !bytes.Equal(frame[20:24], wantChecksum[:]) {
		t.Errorf("checksum = %x, want %x", frame[20:24], wantChecksum)
	}
}

func TestDecodeMessageHeaderTooShort(t *testing.T) {
	_, _, err := DecodeMessage([]byte{1, 2, 3})
	var wireErr *WireError
	if !errors.As(err, &wireErr) || wireErr.Kind != KindHeaderTooShort {
		t.Fatalf("err = %v, want KindHeaderTooShort", err)
	}
}

func TestDecodeMessageInvalidMagic(t *testing.T) {
	buf := make([]byte, HeaderLen)
	_, _, err := DecodeMessage(buf)
	var wireErr *WireError
	if !errors.As(err, &wireErr) || wireErr.Kind != KindInvalidMagicNumber {
		t.Fatalf("err = %v, want KindInvalidMagicNumber", err)
	}
}

func TestDecodeMessagePayloadTooShort(t *testing.T) {
	frame, err := EncodeMessage("ping", []byte{1, 2, 3, 4, 5, 6, 7, 8})
	if err != nil {
		t.Fatalf("EncodeMessage: %v", err)
	}

	truncated := frame[:HeaderLen+2]
	_, _, derr := DecodeMessage(truncated)
	var wireErr *WireError
	if !errors.As(derr, &wireErr) || wireErr.Kind != KindPayloadTooShort {
		t.Fatalf("err = %v, want KindPayloadTooShort", derr)
	}
	if wireErr.RequiredLen != len(frame) {
		t.Errorf("RequiredLen = %d, want %d", wireErr.RequiredLen, len(frame))
	}

	msg, rest, err := DecodeMessage(frame)
	if err != nil {
		t.Fatalf("DecodeMessage(full frame): %v", err)
	}
	if len(rest) != 0 {
		t.Errorf("rest = %d bytes, want 0", len(rest))
	}
	if msg.Ping == nil || msg.Ping.Nonce != 0x0807060504030201 {
		t.Errorf("ping nonce decoded incorrectly: %+v", msg.Ping)
	}
}

func TestDecodeMessageBadChecksum(t *testing.T) {
	frame, err := EncodeMessage("ping", []byte{1, 2, 3, 4, 5, 6, 7, 8})
	if err != nil {
		t.Fatalf("EncodeMessage: %v", err)
	}
	frame[len(frame)-1] ^= 0xff // corrupt payload without touching declared length

	_, _, derr := DecodeMessage(frame)
	var wireErr *WireError
	if !errors.As(derr, &wireErr) || wireErr.Kind != KindInvalidPayloadChecksum {
		t.Fatalf("err = %v, want KindInvalidPayloadChecksum", derr)
	}
}

func TestStreamingReassembly(t *testing.T) {
	ping, _ := EncodeMessage("ping", mustPingPayload(1))
	pong, _ := EncodeMessage("pong", mustPingPayload(2))
	stream := append(append([]byte{}, ping...), pong...)

	splits := []int{1, len(ping), len(ping) + 10, len(stream)}
	var collected []*Message
	var buf []byte
	consumed := 0
	for _, split := range splits {
		for consumed < split {
			buf = append(buf, stream[consumed])
			consumed++
		}
		for {
			msg, rest, need, err := TryDecode(buf)
			if err != nil {
				t.Fatalf("TryDecode: %v", err)
			}
			if need > 0 {
				break
			}
			collected = append(collected, msg)
			buf = rest
		}
	}

	if len(collected) != 2 {
		t.Fatalf("collected %d messages, want 2", len(collected))
	}
	if collected[0].Ping.Nonce != 1 || collected[1].Pong.Nonce != 2 {
		t.Errorf("messages out of order or wrong nonce: %+v", collected)
	}
	if len(buf) != 0 {
		t.Errorf("%d bytes left unconsumed", len(buf))
	}
}

func mustPingPayload(nonce uint64) []byte {
	p := PingPayload{Nonce: nonce}
	b, err := p.Encode()
	if err != nil {
		panic(err)
	}
	return b
}
