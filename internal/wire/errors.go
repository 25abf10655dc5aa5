// Package wire implements the Bitcoin peer-to-peer wire codec: variable-length
// integers, network addresses, inventory vectors, and the message framing and
// payload encodings for version, verack, ping, pong, addr, inv, getdata, tx,
// and block.
package wire

import "fmt"

// Kind discriminates the wire-level error taxonomy.
type Kind int

const (
	// KindProxyRequired signals a caller tried to reach an onion host without
	// a SOCKS5 proxy. Listed here so the whole taxonomy lives in one place;
	// no WireError carries it; internal/p2p reports the condition as a
	// *p2p.ConnError with p2p.KindProxyRequired.
	KindProxyRequired Kind = iota
	// KindConnectionError covers any transport-level failure. Like
	// KindProxyRequired it is not raised by this package; internal/p2p
	// reports transport failures as a *p2p.ConnError.
	KindConnectionError
	// KindHeaderTooShort means the buffer has fewer than HeaderLen bytes.
	KindHeaderTooShort
	// KindInvalidMagicNumber means the header's magic doesn't match MagicMainnet.
	KindInvalidMagicNumber
	// KindPayloadTooShort means the header parsed but the payload is incomplete.
	// RequiredLen on the error names the total buffer length needed to retry.
	KindPayloadTooShort
	// KindInvalidPayloadChecksum means the payload's checksum didn't match the header.
	KindInvalidPayloadChecksum
	// KindIncompatibleClient means a peer's version.version is below MinProtocolVersion.
	KindIncompatibleClient
	// KindReadError means a short read occurred inside a typed payload.
	KindReadError
)

func (k Kind) String() string {
	switch k {
	case KindProxyRequired:
		return "ProxyRequired"
	case KindConnectionError:
		return "ConnectionError"
	case KindHeaderTooShort:
		return "HeaderTooShort"
	case KindInvalidMagicNumber:
		return "InvalidMagicNumber"
	case KindPayloadTooShort:
		return "PayloadTooShort"
	case KindInvalidPayloadChecksum:
		return "InvalidPayloadChecksum"
	case KindIncompatibleClient:
		return "IncompatibleClient"
	case KindReadError:
		return "ReadError"
	default:
		return "Unknown"
	}
}

// WireError is the typed error returned by every decode path in this package.
// Callers use errors.As to recover Kind and, for KindPayloadTooShort,
// RequiredLen.
type WireError struct {
	Kind        Kind
	RequiredLen int // total buffer length the caller must reach; only set for KindPayloadTooShort
	Err         error
}

func (e *WireError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("wire: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("wire: %s", e.Kind)
}

func (e *WireError) Unwrap() error { return e.Err }

func newErr(kind Kind, err error) *WireError {
	return &WireError{Kind: kind, Err: err}
}

func newPayloadTooShort(requiredLen int, err error) *WireError {
	return &WireError{Kind: KindPayloadTooShort, RequiredLen: requiredLen, Err: err}
}
