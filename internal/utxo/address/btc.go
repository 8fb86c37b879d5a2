package address

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// BTCAddress wraps a btcutil.Address to implement UTXOAddress.
type BTCAddress struct {
	addr btcutil.Address
}

// NewBTCAddress creates a BTCAddress from an address string.
func NewBTCAddress(addrStr string) (*BTCAddress, error) {
	addr, err := btcutil.DecodeAddress(addrStr, &chaincfg.MainNetParams)
	if err != nil {
		return nil, err
	}
	return &BTCAddress{addr: addr}, nil
}

func (a *BTCAddress) String() string        { return a.addr.String() }
func (a *BTCAddress) ScriptAddress() []byte { return a.addr.ScriptAddress() }
func (a *BTCAddress) PayToAddrScript() ([]byte, error) {
	return txscript.PayToAddrScript(a.addr)
}
