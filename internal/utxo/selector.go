package utxo

import (
	"sort"

	"github.com/btcsuite/btcd/wire"

	"github.com/vultisig/txengine/internal/chainerr"
	"github.com/vultisig/txengine/internal/utxo/address"
)

// SelectionPolicy picks the order in which candidates are consumed.
type SelectionPolicy string

const (
	// LargestFirst adds the biggest UTXOs until the spend is covered.
	LargestFirst SelectionPolicy = "largest_first"
	// FewestInputs takes the smallest single UTXO that covers the spend and
	// falls back to LargestFirst when none does.
	FewestInputs SelectionPolicy = "fewest_inputs"
)

type SelectionRequest struct {
	Chain   string
	Outputs []*wire.TxOut
	// ChangeScriptLen is the script size of a potential change output.
	ChangeScriptLen  int
	FeeRate          uint64
	DustThreshold    uint64
	Candidates       []UTXO
	MinConfirmations uint64
	Policy           SelectionPolicy
}

// SelectionResult always satisfies TotalInput == Amount + Fee + Change.
// Change is zero when no change output is emitted.
type SelectionResult struct {
	Inputs     []UTXO
	TotalInput uint64
	Amount     uint64
	Change     uint64
	Fee        uint64
	VSize      int
}

// SelectUTXOs chooses inputs for the request deterministically. Change below
// the dust threshold is folded into the fee.
func SelectUTXOs(req SelectionRequest) (*SelectionResult, error) {
	if req.FeeRate == 0 {
		return nil, chainerr.New(chainerr.KindInvalidInput, req.Chain, "fee rate must be positive")
	}
	if len(req.Outputs) == 0 {
		return nil, chainerr.New(chainerr.KindInvalidInput, req.Chain, "no outputs")
	}

	var amount uint64
	scriptLens := make([]int, 0, len(req.Outputs)+1)
	for _, out := range req.Outputs {
		if out.Value <= 0 {
			return nil, chainerr.New(chainerr.KindInvalidInput, req.Chain, "output value must be positive")
		}
		amount += uint64(out.Value)
		scriptLens = append(scriptLens, len(out.PkScript))
	}

	candidates := sortCandidates(req.Candidates, req.MinConfirmations)

	if req.Policy == FewestInputs {
		res, err := selectSingle(req, candidates, amount, scriptLens)
		if err != nil {
			return nil, err
		}
		if res != nil {
			return res, nil
		}
	}
	return selectLargestFirst(req, candidates, amount, scriptLens)
}

// sortCandidates orders by value desc, then txid asc, then vout asc.
func sortCandidates(in []UTXO, minConf uint64) []UTXO {
	out := make([]UTXO, 0, len(in))
	for _, u := range in {
		if u.Confirmations < minConf || u.Value == 0 {
			continue
		}
		out = append(out, u)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		if out[i].TxID != out[j].TxID {
			return out[i].TxID < out[j].TxID
		}
		return out[i].Vout < out[j].Vout
	})
	return out
}

func selectLargestFirst(req SelectionRequest, candidates []UTXO, amount uint64, scriptLens []int) (*SelectionResult, error) {
	var (
		selected []UTXO
		types    []address.ScriptType
		total    uint64
		needed   uint64
	)
	for _, u := range candidates {
		selected = append(selected, u)
		types = append(types, u.ScriptType)
		total += u.Value

		res, need, err := settle(req, selected, types, total, amount, scriptLens)
		if err != nil {
			return nil, err
		}
		if res != nil {
			return res, nil
		}
		needed = need
	}

	if needed == 0 {
		needed = amount
	}
	return nil, chainerr.New(chainerr.KindInsufficientFunds, req.Chain,
		"need at least %d sats, have %d across %d utxos", needed, total, len(candidates))
}

// selectSingle returns the smallest single candidate covering the spend, or
// nil when there is none.
func selectSingle(req SelectionRequest, candidates []UTXO, amount uint64, scriptLens []int) (*SelectionResult, error) {
	for i := len(candidates) - 1; i >= 0; i-- {
		u := candidates[i]
		res, _, err := settle(req, []UTXO{u}, []address.ScriptType{u.ScriptType}, u.Value, amount, scriptLens)
		if err != nil {
			return nil, err
		}
		if res != nil {
			return res, nil
		}
	}
	return nil, nil
}

// settle checks whether the inputs cover amount plus fee. It returns the
// result when they do, otherwise the total needed without change.
func settle(
	req SelectionRequest,
	inputs []UTXO,
	types []address.ScriptType,
	total, amount uint64,
	scriptLens []int,
) (*SelectionResult, uint64, error) {
	vsizeNoChange, err := EstimateVSize(types, scriptLens)
	if err != nil {
		return nil, 0, chainerr.Wrap(chainerr.KindUnsupportedAddressType, req.Chain, err, "failed to estimate size")
	}
	feeNoChange := uint64(vsizeNoChange) * req.FeeRate
	if total < amount+feeNoChange {
		return nil, amount + feeNoChange, nil
	}

	vsizeChange, err := EstimateVSize(types, append(append([]int{}, scriptLens...), req.ChangeScriptLen))
	if err != nil {
		return nil, 0, chainerr.Wrap(chainerr.KindUnsupportedAddressType, req.Chain, err, "failed to estimate size")
	}
	feeChange := uint64(vsizeChange) * req.FeeRate

	res := &SelectionResult{
		Inputs:     append([]UTXO{}, inputs...),
		TotalInput: total,
		Amount:     amount,
	}
	if total >= amount+feeChange && total-amount-feeChange >= req.DustThreshold && total-amount-feeChange > 0 {
		res.Change = total - amount - feeChange
		res.Fee = feeChange
		res.VSize = vsizeChange
	} else {
		res.Fee = total - amount
		res.VSize = vsizeNoChange
	}
	return res, 0, nil
}
