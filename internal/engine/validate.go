package engine

import (
	"github.com/vultisig/txengine/internal/chainerr"
)

// ValidateIntent runs the checks shared by every builder before any network
// call: positive amount and syntactically valid addresses.
func ValidateIntent(p Provider, intent TransferIntent) error {
	chain := p.Config().Alias
	if intent.Amount == nil || intent.Amount.Sign() <= 0 {
		return chainerr.New(chainerr.KindInvalidInput, chain, "amount must be positive")
	}
	if intent.From == "" {
		return chainerr.New(chainerr.KindInvalidInput, chain, "missing sender address")
	}
	err := p.ValidateAddress(intent.From)
	if err != nil {
		return err
	}
	if intent.To == "" {
		return chainerr.New(chainerr.KindInvalidInput, chain, "missing recipient address")
	}
	return p.ValidateAddress(intent.To)
}

// ExpectSignatures checks the signature count against the payloads.
func ExpectSignatures(chain string, payloads []SigningPayload, sigs []Signature) error {
	if len(sigs) != len(payloads) {
		return chainerr.New(chainerr.KindInvalidInput, chain, "expected %d signatures, got %d", len(payloads), len(sigs))
	}
	seen := make(map[int]bool, len(sigs))
	for _, s := range sigs {
		if s.Index < 0 || s.Index >= len(payloads) {
			return chainerr.New(chainerr.KindInvalidInput, chain, "signature index %d out of range", s.Index)
		}
		if seen[s.Index] {
			return chainerr.New(chainerr.KindInvalidInput, chain, "duplicate signature for index %d", s.Index)
		}
		seen[s.Index] = true
	}
	return nil
}
