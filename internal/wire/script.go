package wire

import (
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// ExtractAddress classifies scriptPubKey into a mainnet Bitcoin address
// string, returning "" for non-standard or unparseable scripts. Script
// interpretation itself stays out of scope for this module; this only
// extracts a display address from the already-opaque script bytes, the way
// a block explorer would label an output.
func ExtractAddress(scriptPubKey []byte) string {
	_, addrs, _, err := txscript.ExtractPkScriptAddrs(scriptPubKey, &chaincfg.MainNetParams)
	if err != nil || len(addrs) == 0 {
		return ""
	}
	return addrs[0].EncodeAddress()
}
