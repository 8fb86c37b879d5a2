package token

import (
	"strings"
)

// Address identifies the asset a transfer moves. The zero value is the
// chain's native currency.
type Address struct {
	value string
}

func Native() Address {
	return Address{}
}

// Create normalises a raw token identifier. Blank input and "native" map to
// the native currency. Hex contract addresses are lowercased; other
// encodings (base58 mints, TRC20 contracts) are case-sensitive and kept.
func Create(raw string) Address {
	v := strings.TrimSpace(raw)
	if v == "" || strings.EqualFold(v, "native") {
		return Native()
	}
	if len(v) > 2 && (v[:2] == "0x" || v[:2] == "0X") {
		v = strings.ToLower(v)
	}
	return Address{value: v}
}

func (a Address) IsNative() bool {
	return a.value == ""
}

// Value is the contract/mint identifier, empty for the native currency.
func (a Address) Value() string {
	return a.value
}

func (a Address) String() string {
	if a.IsNative() {
		return "native"
	}
	return a.value
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}
