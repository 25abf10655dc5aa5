package wire

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"time"
)

// VersionPayload is the payload of the first message sent during the
// handshake.
type VersionPayload struct {
	Version   int32
	Services  uint64
	Timestamp int64 // wall-clock seconds
	ToAddr    NetAddr
	FromAddr  NetAddr
	Nonce     uint64
	UserAgent string
	Height    int32
	Relay     bool // absent on the wire for peers speaking exactly 70001; defaults false
}

// NewVersionPayload builds a version payload addressed to toHost:toPort from
// fromHost:fromPort, using cfg's protocol options. Timestamp is stamped with
// the current wall clock and Nonce with a fresh random value, matching the
// wire contract for an outbound version message.
func NewVersionPayload(cfg Config, toHost string, toPort uint16, fromHost string, fromPort uint16) (VersionPayload, error) {
	if cfg.ProtocolVersion < MinProtocolVersion {
		return VersionPayload{}, fmt.Errorf("configured protocol version %d below minimum %d", cfg.ProtocolVersion, MinProtocolVersion)
	}

	toAddr, err := EncodeHost(toHost, toPort, cfg.ToServices)
	if err != nil {
		return VersionPayload{}, fmt.Errorf("encoding to_addr: %w", err)
	}
	fromAddr, err := EncodeHost(fromHost, fromPort, cfg.FromServices)
	if err != nil {
		return VersionPayload{}, fmt.Errorf("encoding from_addr: %w", err)
	}

	var nonceBytes [8]byte
	if _, err := rand.Read(nonceBytes[:]); err != nil {
		return VersionPayload{}, fmt.Errorf("generating nonce: %w", err)
	}

	return VersionPayload{
		Version:   cfg.ProtocolVersion,
		Services:  cfg.FromServices,
		Timestamp: time.Now().Unix(),
		ToAddr:    toAddr,
		FromAddr:  fromAddr,
		Nonce:     binary.LittleEndian.Uint64(nonceBytes[:]),
		UserAgent: cfg.UserAgent,
		Height:    cfg.Height,
		Relay:     cfg.Relay,
	}, nil
}

// Encode serializes v to its wire payload form.
func (v VersionPayload) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)

	if err := binary.Write(buf, binary.LittleEndian, v.Version); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, v.Services); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, v.Timestamp); err != nil {
		return nil, err
	}
	if err := v.ToAddr.Encode(buf, false, 0); err != nil {
		return nil, err
	}
	if err := v.FromAddr.Encode(buf, false, 0); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, v.Nonce); err != nil {
		return nil, err
	}
	if err := PutVarString(buf, []byte(v.UserAgent)); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, v.Height); err != nil {
		return nil, err
	}
	var relay byte
	if v.Relay {
		relay = 1
	}
	buf.WriteByte(relay)

	return buf.Bytes(), nil
}

func decodeVersionPayload(payload []byte) (*VersionPayload, error) {
	r := bytes.NewReader(payload)
	v := &VersionPayload{}

	if err := binary.Read(r, binary.LittleEndian, &v.Version); err != nil {
		return nil, newErr(KindReadError, fmt.Errorf("reading version: %w", err))
	}
	if v.Version < MinProtocolVersion {
		return nil, newErr(KindIncompatibleClient,
			fmt.Errorf("%d < %d", v.Version, MinProtocolVersion))
	}
	if err := binary.Read(r, binary.LittleEndian, &v.Services); err != nil {
		return nil, newErr(KindReadError, fmt.Errorf("reading services: %w", err))
	}
	if err := binary.Read(r, binary.LittleEndian, &v.Timestamp); err != nil {
		return nil, newErr(KindReadError, fmt.Errorf("reading timestamp: %w", err))
	}

	toAddr, _, err := DecodeNetAddr(r, false)
	if err != nil {
		return nil, err
	}
	v.ToAddr = toAddr

	fromAddr, _, err := DecodeNetAddr(r, false)
	if err != nil {
		return nil, err
	}
	v.FromAddr = fromAddr

	if err := binary.Read(r, binary.LittleEndian, &v.Nonce); err != nil {
		return nil, newErr(KindReadError, fmt.Errorf("reading nonce: %w", err))
	}

	ua, err := ReadVarString(r)
	if err != nil {
		return nil, fmt.Errorf("reading user agent: %w", err)
	}
	v.UserAgent = string(ua)

	if err := binary.Read(r, binary.LittleEndian, &v.Height); err != nil {
		return nil, newErr(KindReadError, fmt.Errorf("reading height: %w", err))
	}

	// Relay is optional: peers speaking exactly 70001 may omit it.
	if r.Len() > 0 {
		relay, err := r.ReadByte()
		if err != nil {
			return nil, newErr(KindReadError, fmt.Errorf("reading relay: %w", err))
		}
		v.Relay = relay != 0
	}

	return v, nil
}
