package tron

import (
	"encoding/hex"
	"strings"

	"github.com/vultisig/txengine/internal/chainerr"
)

// refusal maps a node's refusal to build a transaction.
func refusal(chain, msg string) *chainerr.Error {
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "balance is not sufficient") || strings.Contains(lower, "insufficient") {
		return chainerr.New(chainerr.KindInsufficientFunds, chain, "%s", msg)
	}
	return chainerr.New(chainerr.KindInvalidInput, chain, "%s", msg)
}

// nodeText decodes the hex encoded messages the node returns, falling back
// to the raw value.
func nodeText(msg string) string {
	b, err := hex.DecodeString(msg)
	if err != nil || len(b) == 0 {
		return msg
	}
	return string(b)
}
