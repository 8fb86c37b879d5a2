package utxo

import (
	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txsizes"

	"github.com/vultisig/txengine/internal/chainerr"
	"github.com/vultisig/txengine/internal/utxo/address"
)

const (
	// version + locktime
	txOverheadSize = 4 + 4

	// segwit marker and flag bytes, witness discounted
	segwitMarkerWeight = 2

	// outpoint + empty script varint + sequence
	p2trInputSize = 32 + 4 + 1 + 4

	// item count + sig length + 64 byte schnorr sig with SIGHASH_DEFAULT
	p2trKeySpendWitnessWeight = 1 + 1 + 64
)

// inputWeight is the worst case weight of one signed input spending the
// given script type.
func inputWeight(st address.ScriptType) (int, error) {
	switch st {
	case address.P2PKH:
		return txsizes.RedeemP2PKHInputSize * blockchain.WitnessScaleFactor, nil
	case address.P2SHP2WPKH:
		return txsizes.RedeemNestedP2WPKHInputSize*blockchain.WitnessScaleFactor +
			txsizes.RedeemP2WPKHInputWitnessWeight, nil
	case address.P2WPKH:
		return txsizes.RedeemP2WPKHInputSize*blockchain.WitnessScaleFactor +
			txsizes.RedeemP2WPKHInputWitnessWeight, nil
	case address.P2TR:
		return p2trInputSize*blockchain.WitnessScaleFactor + p2trKeySpendWitnessWeight, nil
	default:
		return 0, chainerr.New(chainerr.KindUnsupportedAddressType, "", "can't spend script type %s", st)
	}
}

func outputSize(scriptLen int) int {
	return 8 + wire.VarIntSerializeSize(uint64(scriptLen)) + scriptLen
}

// EstimateVSize returns the virtual size of a fully signed transaction
// spending inputs of the given types into outputs with the given script
// lengths. Weight is summed in weight units and rounded up once.
func EstimateVSize(inputs []address.ScriptType, outputScriptLens []int) (int, error) {
	weight := (txOverheadSize +
		wire.VarIntSerializeSize(uint64(len(inputs))) +
		wire.VarIntSerializeSize(uint64(len(outputScriptLens)))) * blockchain.WitnessScaleFactor

	segwit := false
	for _, st := range inputs {
		if st != address.P2PKH {
			segwit = true
			break
		}
	}
	if segwit {
		weight += segwitMarkerWeight
	}

	for _, st := range inputs {
		w, err := inputWeight(st)
		if err != nil {
			return 0, err
		}
		weight += w
		if segwit && st == address.P2PKH {
			// empty witness stack for the legacy input
			weight++
		}
	}

	for _, l := range outputScriptLens {
		weight += outputSize(l) * blockchain.WitnessScaleFactor
	}

	return (weight + blockchain.WitnessScaleFactor - 1) / blockchain.WitnessScaleFactor, nil
}
