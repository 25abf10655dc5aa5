package wire

import (
	"crypto/sha256"
	"encoding/hex"
)

// sha256d computes sha256(sha256(data)), the double-SHA256 used throughout
// the Bitcoin protocol for checksums and hash identities.
func sha256d(data []byte) [32]byte {
	h1 := sha256.Sum256(data)
	return sha256.Sum256(h1[:])
}

// checksum4 returns the first 4 bytes of sha256d(data), used as the message
// header checksum.
func checksum4(data []byte) [4]byte {
	h := sha256d(data)
	var c [4]byte
	copy(c[:], h[:4])
	return c
}

// displayHash returns the byte-reversed hex form of a sha256d digest, the
// form exposed to callers for tx/block hashes.
func displayHash(h [32]byte) string {
	return hex.EncodeToString(reverse32(h))
}
