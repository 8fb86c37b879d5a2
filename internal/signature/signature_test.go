package signature

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vultisig/txengine/internal/chainerr"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func TestDERRoundTrip(t *testing.T) {
	n := btcec.S256().N
	tests := []struct {
		name string
		r, s *big.Int
	}{
		{"small", big.NewInt(1), big.NewInt(2)},
		{"high bit needs padding", new(big.Int).SetBytes(mustHex(t, "80"+"00112233445566778899aabbccddeeff00112233445566778899aabbccddee")), big.NewInt(0x7f)},
		{"max", new(big.Int).Sub(n, big.NewInt(1)), new(big.Int).Sub(n, big.NewInt(2))},
		{"short r", big.NewInt(0x80), new(big.Int).Rsh(n, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			der := ToDER(tt.r, tt.s)
			r, s, err := FromDER(der)
			require.NoError(t, err)
			require.Equal(t, 0, tt.r.Cmp(r))
			require.Equal(t, 0, tt.s.Cmp(s))
		})
	}
}

func TestFromDER_Malformed(t *testing.T) {
	valid := "3006020101020102"
	_, _, err := FromDER(mustHex(t, valid))
	require.NoError(t, err)

	tests := []struct {
		name string
		der  string
	}{
		{"too short", "30050201010201"},
		{"wrong sequence tag", "3106020101020102"},
		{"sequence length too long", "3007020101020102"},
		{"sequence length too short", "3005020101020102"},
		{"trailing bytes", "300702010102010200"},
		{"wrong r tag", "3006030101020102"},
		{"wrong s tag", "3006020101030102"},
		{"zero length r", "30050200020102"},
		{"negative r", "3006020181020102"},
		{"negative s", "3006020101020181"},
		{"leading zero r", "300702020001020102"},
		{"leading zero s", "300702010102020002"},
		{"r length past end", "3006020501020102"},
		{"zero r", "3006020100020102"},
		{"r above order", "3026022100" + "fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141" + "020102"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := FromDER(mustHex(t, tt.der))
			require.Error(t, err)
			require.True(t, chainerr.Is(err, chainerr.KindMalformedSignature), err.Error())
		})
	}

	oversized := append([]byte{0x30, 0x27, 0x02, 0x22, 0x00, 0xff}, make([]byte, 32)...)
	oversized = append(oversized, 0x02, 0x01, 0x02)
	_, _, err = FromDER(oversized)
	require.ErrorContains(t, err, "oversized r")
}

func TestValidateSignature(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	other, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	hash := sha256.Sum256([]byte("spend"))
	otherHash := sha256.Sum256([]byte("other spend"))

	der := ecdsa.Sign(priv, hash[:]).Serialize()
	r, s, err := FromDER(der)
	require.NoError(t, err)

	pub := priv.PubKey().SerializeCompressed()
	assert.True(t, ValidateSignature(hash[:], r, s, pub))
	assert.True(t, ValidateSignature(hash[:], r, s, priv.PubKey().SerializeUncompressed()))
	assert.False(t, ValidateSignature(otherHash[:], r, s, pub), "different message")
	assert.False(t, ValidateSignature(hash[:], r, s, other.PubKey().SerializeCompressed()), "different key")
	assert.False(t, ValidateSignature(hash[:], s, r, pub), "swapped scalars")
	assert.False(t, ValidateSignature(hash[:], r, s, []byte{0x02, 0x01}), "bad key")
	assert.False(t, ValidateSignature(hash[:16], r, s, pub), "short hash")

	compact := append(padTo32(r), padTo32(s)...)
	cr, cs, err := Parse(compact)
	require.NoError(t, err)
	assert.True(t, ValidateSignature(hash[:], cr, cs, pub))

	dr, ds, err := Parse(der)
	require.NoError(t, err)
	assert.True(t, ValidateSignature(hash[:], dr, ds, pub))

	// both S forms verify; the normalised one is low
	n := btcec.S256().N
	high := new(big.Int).Sub(n, NormalizeS(s))
	assert.True(t, ValidateSignature(hash[:], r, high, pub))
	assert.True(t, NormalizeS(high).Cmp(new(big.Int).Rsh(n, 1)) <= 0)
}

func TestValidateSchnorr(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	hash := sha256.Sum256([]byte("taproot"))
	otherHash := sha256.Sum256([]byte("not taproot"))

	sig, err := schnorr.Sign(priv, hash[:])
	require.NoError(t, err)

	xOnly := schnorr.SerializePubKey(priv.PubKey())
	assert.True(t, ValidateSchnorr(hash[:], sig.Serialize(), xOnly))
	assert.True(t, ValidateSchnorr(hash[:], sig.Serialize(), priv.PubKey().SerializeCompressed()))
	assert.False(t, ValidateSchnorr(otherHash[:], sig.Serialize(), xOnly))
	assert.False(t, ValidateSchnorr(hash[:], sig.Serialize()[:63], xOnly))
}

// compactWithHeader returns a valid 64 byte r||s over hash whose r starts
// with header, plus the compressed key that verifies it. The key is recovered
// from the chosen (r, s), so no search over signing nonces is needed.
func compactWithHeader(t *testing.T, header []byte, hash []byte) ([]byte, []byte) {
	t.Helper()
	s := bytes32(0x3f)
	for i := uint32(0); i < 1000; i++ {
		r := bytes32(0x5a)
		copy(r, header)
		binary.BigEndian.PutUint32(r[28:], i)

		recoverable := append([]byte{27 + 4}, r...)
		recoverable = append(recoverable, s...)
		pub, _, err := ecdsa.RecoverCompact(recoverable, hash)
		if err != nil {
			continue
		}
		return append(r, s...), pub.SerializeCompressed()
	}
	t.Fatalf("no curve point with header %x", header)
	return nil, nil
}

func bytes32(fill byte) []byte {
	b := make([]byte, 32)
	for i := range b {
		b[i] = fill
	}
	return b
}

func TestParse_CompactWithDERHeader(t *testing.T) {
	hash := sha256.Sum256([]byte("der lookalike"))

	tests := []struct {
		name     string
		header   []byte
		recovery bool
	}{
		{"64 bytes", []byte{0x30, 0x3e}, false},
		{"65 bytes with recovery id", []byte{0x30, 0x3f}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compact, pub := compactWithHeader(t, tt.header, hash[:])
			if tt.recovery {
				compact = append(compact, 0x01)
			}
			require.Equal(t, len(compact)-2, int(compact[1]))

			_, _, err := FromDER(compact)
			require.Error(t, err)

			r, s, err := Parse(compact)
			require.NoError(t, err)
			assert.Equal(t, new(big.Int).SetBytes(compact[:32]), r)
			assert.Equal(t, new(big.Int).SetBytes(compact[32:64]), s)
			assert.True(t, ValidateSignature(hash[:], r, s, pub))
		})
	}

	_, _, err := Parse(mustHex(t, "3006020101030102"))
	require.True(t, chainerr.Is(err, chainerr.KindMalformedSignature), err)
}

func padTo32(v *big.Int) []byte {
	out := make([]byte, 32)
	return v.FillBytes(out)
}
