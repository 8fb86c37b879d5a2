package address

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/chaincfg"
)

// decodeLegacy decodes base58check P2PKH/P2SH addresses for chains without
// segwit. btcutil.DecodeAddress alone would also accept hex public keys and
// bech32 strings.
func decodeLegacy(addrStr string, params *chaincfg.Params) (btcutil.Address, error) {
	payload, version, err := base58.CheckDecode(addrStr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base58 address: %w", err)
	}
	if len(payload) != 20 {
		return nil, fmt.Errorf("invalid address payload length: %d", len(payload))
	}

	switch version {
	case params.PubKeyHashAddrID:
		return btcutil.NewAddressPubKeyHash(payload, params)
	case params.ScriptHashAddrID:
		return btcutil.NewAddressScriptHashFromHash(payload, params)
	default:
		return nil, fmt.Errorf("address version 0x%02x is not for %s", version, params.Name)
	}
}
