package address

import (
	"github.com/vultisig/txengine/internal/chainerr"
)

// NewFromString creates a UTXOAddress from an address string based on chain.
// Undecodable input is invalid_input; an unknown chain is unsupported_chain.
func NewFromString(chain string, addrStr string) (UTXOAddress, error) {
	var (
		addr UTXOAddress
		err  error
	)
	switch chain {
	case Bitcoin:
		addr, err = NewBTCAddress(addrStr)
	case Litecoin:
		addr, err = NewLTCAddress(addrStr)
	case Dogecoin:
		addr, err = NewDOGEAddress(addrStr)
	case Dash:
		addr, err = NewDASHAddress(addrStr)
	default:
		return nil, chainerr.New(chainerr.KindUnsupportedChain, chain, "unsupported UTXO chain")
	}
	if err != nil {
		return nil, chainerr.Wrap(chainerr.KindInvalidInput, chain, err, "failed to decode address %q", addrStr)
	}
	return addr, nil
}

// ScriptPubKey returns the locking script paying to addrStr on chain.
func ScriptPubKey(chain string, addrStr string) ([]byte, error) {
	addr, err := NewFromString(chain, addrStr)
	if err != nil {
		return nil, err
	}
	script, err := addr.PayToAddrScript()
	if err != nil {
		return nil, chainerr.Wrap(chainerr.KindUnsupportedAddressType, chain, err, "no script for address %q", addrStr)
	}
	_, err = ClassifyScript(script)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.KindUnsupportedAddressType, chain, err, "address %q", addrStr)
	}
	return script, nil
}

// TypeOf returns the script type of addrStr on chain.
func TypeOf(chain string, addrStr string) (ScriptType, error) {
	script, err := ScriptPubKey(chain, addrStr)
	if err != nil {
		return "", err
	}
	return ClassifyScript(script)
}

const (
	Bitcoin  = "bitcoin"
	Litecoin = "litecoin"
	Dogecoin = "dogecoin"
	Dash     = "dash"
)
