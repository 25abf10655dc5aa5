package wire

import (
	"errors"
	"testing"
)

func TestVersionPayloadRoundTrip(t *testing.T) {
	cfg := NewConfig()
	v, err := NewVersionPayload(cfg, "1.2.3.4", 8333, "0.0.0.0", 0)
	if err != nil {
		t.Fatalf("NewVersionPayload: %v", err)
	}

	payload, err := v.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := decodeVersionPayload(payload)
	if err != nil {
		t.Fatalf("decodeVersionPayload: %v", err)
	}

	if got.Version != v.Version || got.Services != v.Services || got.Nonce != v.Nonce ||
		got.UserAgent != v.UserAgent || got.Height != v.Height || got.Relay != v.Relay {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, v)
	}
	if got.ToAddr != v.ToAddr || got.FromAddr != v.FromAddr {
		t.Errorf("addr round trip mismatch: got %+v/%+v, want %+v/%+v",
			got.ToAddr, got.FromAddr, v.ToAddr, v.FromAddr)
	}
}

func TestVersionPayloadRelayTrue(t *testing.T) {
	cfg := NewConfig()
	toAddr, _ := EncodeHost("0.0.0.0", 0, cfg.ToServices)
	fromAddr, _ := EncodeHost("0.0.0.0", 0, cfg.FromServices)
	v := VersionPayload{
		Version:   70002,
		Services:  1,
		ToAddr:    toAddr,
		FromAddr:  fromAddr,
		UserAgent: "",
		Relay:     true,
	}

	payload, err := v.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := decodeVersionPayload(payload)
	if err != nil {
		t.Fatalf("decodeVersionPayload: %v", err)
	}
	if !got.Relay {
		t.Error("relay = false, want true")
	}
	if got.UserAgent != "" {
		t.Errorf("user_agent = %q, want empty", got.UserAgent)
	}
}

func TestVersionPayloadRelayAbsentDefaultsFalse(t *testing.T) {
	cfg := NewConfig()
	toAddr, _ := EncodeHost("0.0.0.0", 0, cfg.ToServices)
	fromAddr, _ := EncodeHost("0.0.0.0", 0, cfg.FromServices)
	v := VersionPayload{
		Version:  70001,
		ToAddr:   toAddr,
		FromAddr: fromAddr,
		Relay:    true, // ignored: we truncate the encoded payload before this byte
	}

	full, err := v.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	truncated := full[:len(full)-1] // drop the relay byte

	got, err := decodeVersionPayload(truncated)
	if err != nil {
		t.Fatalf("decodeVersionPayload: %v", err)
	}
	if got.Relay {
		t.Error("relay = true, want false when byte is absent")
	}
}

func TestVersionPayloadIncompatibleClient(t *testing.T) {
	toAddr, _ := EncodeHost("0.0.0.0", 0, 0)
	fromAddr, _ := EncodeHost("0.0.0.0", 0, 0)
	v := VersionPayload{Version: 70000, ToAddr: toAddr, FromAddr: fromAddr}

	payload, err := v.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	_, derr := decodeVersionPayload(payload)
	var wireErr *WireError
	if !errors.As(derr, &wireErr) || wireErr.Kind != KindIncompatibleClient {
		t.Fatalf("err = %v, want KindIncompatibleClient", derr)
	}
}
