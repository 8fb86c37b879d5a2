package signature

import (
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/vultisig/txengine/internal/chainerr"
)

const (
	derSequenceTag = 0x30
	derIntegerTag  = 0x02

	// 0x30 len 0x02 len r 0x02 len s, with r and s of at most 33 bytes
	minDERLength = 8
	maxDERLength = 72
	maxDERInt    = 33
)

func malformed(format string, args ...any) error {
	return chainerr.New(chainerr.KindMalformedSignature, "", format, args...)
}

// FromDER strictly parses a DER encoded ECDSA signature. Anything a lenient
// parser would truncate or reinterpret is rejected.
func FromDER(der []byte) (*big.Int, *big.Int, error) {
	if len(der) < minDERLength || len(der) > maxDERLength {
		return nil, nil, malformed("invalid der length %d", len(der))
	}
	if der[0] != derSequenceTag {
		return nil, nil, malformed("wrong sequence tag 0x%02x", der[0])
	}
	if int(der[1]) != len(der)-2 {
		return nil, nil, malformed("sequence length %d does not match payload %d", der[1], len(der)-2)
	}

	r, rest, err := parseInt(der[2:], "r")
	if err != nil {
		return nil, nil, err
	}
	s, rest, err := parseInt(rest, "s")
	if err != nil {
		return nil, nil, err
	}
	if len(rest) != 0 {
		return nil, nil, malformed("%d trailing bytes after s", len(rest))
	}

	err = checkRange(r, s)
	if err != nil {
		return nil, nil, err
	}
	return r, s, nil
}

func parseInt(b []byte, name string) (*big.Int, []byte, error) {
	if len(b) < 2 {
		return nil, nil, malformed("truncated %s", name)
	}
	if b[0] != derIntegerTag {
		return nil, nil, malformed("wrong integer tag 0x%02x for %s", b[0], name)
	}

	l := int(b[1])
	switch {
	case l == 0:
		return nil, nil, malformed("zero length %s", name)
	case l > maxDERInt:
		return nil, nil, malformed("oversized %s: %d bytes", name, l)
	case len(b)-2 < l:
		return nil, nil, malformed("truncated %s", name)
	}

	v := b[2 : 2+l]
	if v[0]&0x80 != 0 {
		return nil, nil, malformed("negative %s", name)
	}
	if l > 1 && v[0] == 0x00 && v[1]&0x80 == 0 {
		return nil, nil, malformed("non-minimal leading zero in %s", name)
	}
	return new(big.Int).SetBytes(v), b[2+l:], nil
}

func checkRange(r, s *big.Int) error {
	n := btcec.S256().N
	if r.Sign() <= 0 || r.Cmp(n) >= 0 {
		return malformed("r out of range")
	}
	if s.Sign() <= 0 || s.Cmp(n) >= 0 {
		return malformed("s out of range")
	}
	return nil
}

// ToDER encodes (r, s) as a minimal DER signature.
func ToDER(r, s *big.Int) []byte {
	rb := derInt(r)
	sb := derInt(s)

	out := make([]byte, 0, 6+len(rb)+len(sb))
	out = append(out, derSequenceTag, byte(4+len(rb)+len(sb)))
	out = append(out, derIntegerTag, byte(len(rb)))
	out = append(out, rb...)
	out = append(out, derIntegerTag, byte(len(sb)))
	out = append(out, sb...)
	return out
}

func derInt(v *big.Int) []byte {
	b := v.Bytes()
	if len(b) == 0 {
		return []byte{0x00}
	}
	if b[0]&0x80 != 0 {
		return append([]byte{0x00}, b...)
	}
	return b
}

// FromCompact parses a 64 byte r||s signature. A 65th recovery byte is
// accepted and ignored.
func FromCompact(b []byte) (*big.Int, *big.Int, error) {
	if len(b) != 64 && len(b) != 65 {
		return nil, nil, malformed("invalid compact signature length %d", len(b))
	}
	r := new(big.Int).SetBytes(b[:32])
	s := new(big.Int).SetBytes(b[32:64])
	err := checkRange(r, s)
	if err != nil {
		return nil, nil, err
	}
	return r, s, nil
}

// Parse accepts either encoding. Bytes that look like DER are parsed as DER;
// a 64 or 65 byte value that fails DER parsing is read as compact, since
// about one compact signature in 65536 starts with a DER-like header.
func Parse(b []byte) (*big.Int, *big.Int, error) {
	if len(b) >= minDERLength && b[0] == derSequenceTag && int(b[1]) == len(b)-2 {
		r, s, err := FromDER(b)
		if err == nil || (len(b) != 64 && len(b) != 65) {
			return r, s, err
		}
	}
	return FromCompact(b)
}

// NormalizeS returns the low-S form of s, which relay policy requires.
func NormalizeS(s *big.Int) *big.Int {
	n := btcec.S256().N
	half := new(big.Int).Rsh(n, 1)
	if s.Cmp(half) > 0 {
		return new(big.Int).Sub(n, s)
	}
	return new(big.Int).Set(s)
}
