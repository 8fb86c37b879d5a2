package utxo

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"

	"github.com/vultisig/txengine/internal/utxo/address"
)

// InputSummary describes one PSBT input. Value and Digest are empty when the
// packet carries no previous output for it.
type InputSummary struct {
	Index      int                `json:"index"`
	Outpoint   string             `json:"outpoint"`
	Value      int64              `json:"value"`
	ScriptType address.ScriptType `json:"script_type,omitempty"`
	Digest     string             `json:"digest,omitempty"`
	Signed     bool               `json:"signed"`
}

type OutputSummary struct {
	Index      int                `json:"index"`
	Value      int64              `json:"value"`
	ScriptType address.ScriptType `json:"script_type,omitempty"`
	Script     string             `json:"script"`
}

// PSBTSummary is a read-only view of a PSBT for operators.
type PSBTSummary struct {
	Chain    string          `json:"chain"`
	TxID     string          `json:"txid"`
	Inputs   []InputSummary  `json:"inputs"`
	Outputs  []OutputSummary `json:"outputs"`
	TotalOut int64           `json:"total_out"`
	Fee      *int64          `json:"fee,omitempty"`
	Complete bool            `json:"complete"`
}

// InspectPSBT decodes s (hex or base64) and reports inputs, outputs and fee.
// Unknown previous outputs do not fail the inspection.
func InspectPSBT(chain, s string) (*PSBTSummary, error) {
	p, err := DecodePSBT(s)
	if err != nil {
		return nil, err
	}

	sum := &PSBTSummary{
		Chain:    chain,
		TxID:     p.UnsignedTx.TxHash().String(),
		Complete: true,
	}

	var totalIn int64
	known := true
	fetcher, fetchErr := prevOutFetcher(chain, p)
	var sigHashes *txscript.TxSigHashes
	if fetchErr == nil {
		sigHashes = txscript.NewTxSigHashes(p.UnsignedTx, fetcher)
	}
	for i, txIn := range p.UnsignedTx.TxIn {
		in := InputSummary{
			Index:    i,
			Outpoint: txIn.PreviousOutPoint.String(),
			Signed:   inputSigned(p.Inputs[i]),
		}
		if !in.Signed {
			sum.Complete = false
		}

		out, err := prevOutput(chain, p, i)
		if err != nil {
			known = false
			sum.Inputs = append(sum.Inputs, in)
			continue
		}
		in.Value = out.Value
		totalIn += out.Value
		if st, err := address.ClassifyScript(out.PkScript); err == nil {
			in.ScriptType = st
		}
		if fetchErr == nil && in.ScriptType != "" {
			sh, err := inputSighash(chain, p, i, fetcher, sigHashes)
			if err == nil {
				in.Digest = hex.EncodeToString(sh.Digest)
			}
		}
		sum.Inputs = append(sum.Inputs, in)
	}

	for i, out := range p.UnsignedTx.TxOut {
		o := OutputSummary{
			Index:  i,
			Value:  out.Value,
			Script: hex.EncodeToString(out.PkScript),
		}
		if st, err := address.ClassifyScript(out.PkScript); err == nil {
			o.ScriptType = st
		}
		sum.TotalOut += out.Value
		sum.Outputs = append(sum.Outputs, o)
	}

	if known {
		fee := totalIn - sum.TotalOut
		sum.Fee = &fee
	}
	return sum, nil
}

func inputSigned(in psbt.PInput) bool {
	return len(in.PartialSigs) > 0 ||
		len(in.TaprootKeySpendSig) > 0 ||
		len(in.FinalScriptSig) > 0 ||
		len(in.FinalScriptWitness) > 0
}
