package address

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// DashMainNetParams defines the network parameters for Dash mainnet
// These are similar to Bitcoin but with different address prefixes
var DashMainNetParams = chaincfg.Params{
	Name: "mainnet",
	Net:  0xbf0c6bbd, // Dash mainnet magic bytes

	PubKeyHashAddrID: 0x4C, // P2PKH addresses start with 'X'
	ScriptHashAddrID: 0x10, // P2SH addresses start with '7'
	PrivateKeyID:     0xCC,

	// Dash doesn't use Bech32, but this field is required
	Bech32HRPSegwit: "dash",
}

// DASHAddress wraps a btcutil.Address to implement UTXOAddress for Dash.
type DASHAddress struct {
	addr btcutil.Address
}

func NewDASHAddress(addrStr string) (*DASHAddress, error) {
	addr, err := decodeLegacy(addrStr, &DashMainNetParams)
	if err != nil {
		return nil, err
	}
	return &DASHAddress{addr: addr}, nil
}

func (a *DASHAddress) String() string        { return a.addr.String() }
func (a *DASHAddress) ScriptAddress() []byte { return a.addr.ScriptAddress() }
func (a *DASHAddress) PayToAddrScript() ([]byte, error) {
	return txscript.PayToAddrScript(a.addr)
}
