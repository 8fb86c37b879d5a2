package xrp

import (
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vultisig/txengine/internal/chainerr"
)

// Payment of 10 drops from a keysign test run.
const (
	vectorUnsignedHex = "1200002405e7f5da201b05ebd21c61400000000000000a6840000000000000147321038f9cb9c40dc1022079a986583cc8ac5b6afbfee1a733e5f0e5eb697fb56378768114fac6c2bb1eb09b66cabfde78b33927d2dc7f365d83143db4b4dbd138d1ba4df703927f0bd1dc19340998"
	vectorDigest      = "wqUF5GvhG3eyeE+WzqpSvRwJLDBVYVoaKA01NJ6tA+I="
	vectorPubKey      = "038f9cb9c40dc1022079a986583cc8ac5b6afbfee1a733e5f0e5eb697fb5637876"
	vectorAccount     = "rPizsaGotY3WV3vPMCY6PUH7FhzFi8QeJN"
	vectorDestination = "radG6QCKZdwerun5RWDDj6Chv2Z6s12Hqp"

	vectorSignedHex = "1200002405E7F5DB201B05ED69BF6140000000000F424068400000000000000F7321038F9CB9C40DC1022079A986583CC8AC5B6AFBFEE1A733E5F0E5EB697FB563787674463044022046E9C4222DEE74B61B811D170A461D426955AA41F51877402054D60E73CC3FDF02202634043BA6B0B987F017EC1F6D0C68DC3F91F5A96466A6CCE62B89B153A01C278114FAC6C2BB1EB09B66CABFDE78B33927D2DC7F365D8314A0B385F9260C1D1C90636DD71D6A2D7BE251361DF9EA7C0E74686F72636861696E2D6D656D6F7D3A3D3A4554482E4554483A3078643237466361636643376641366133423736373442663344333866383633433839436336463645613A303A743A30E1F1"
	vectorSignedID  = "DB2F941E6AFEC9B047AD38DC5F1A234105E1CCB85FE29769DD2FA575A492CEFA"
)

func TestSigningDigest(t *testing.T) {
	blob, err := hex.DecodeString(vectorUnsignedHex)
	require.NoError(t, err)

	expected, err := base64.StdEncoding.DecodeString(vectorDigest)
	require.NoError(t, err)
	assert.Equal(t, expected, signingDigest(blob))
	assert.Equal(t, signingDigest(blob), signingDigest(blob))

	fields, err := decode(blob)
	require.NoError(t, err)
	canonical, err := encode(fields)
	require.NoError(t, err)
	assert.Equal(t, blob, canonical)
}

func TestTransactionID(t *testing.T) {
	blob, err := hex.DecodeString(vectorSignedHex)
	require.NoError(t, err)
	id := transactionID(blob)
	assert.Len(t, id, 64)
	assert.Equal(t, vectorSignedID, id)
}

func TestDecodeFields(t *testing.T) {
	blob, err := hex.DecodeString(vectorUnsignedHex)
	require.NoError(t, err)
	fields, err := decode(blob)
	require.NoError(t, err)

	assert.Equal(t, "Payment", fields["TransactionType"])
	assert.Equal(t, vectorAccount, fields["Account"])
	assert.Equal(t, vectorDestination, fields["Destination"])
	assert.Equal(t, "10", fields["Amount"])
	assert.Equal(t, "20", fields["Fee"])
	assert.Equal(t, "038F9CB9C40DC1022079A986583CC8AC5B6AFBFEE1A733E5F0E5EB697FB5637876", fields["SigningPubKey"])

	_, hasSig := stringField(fields, txnSignatureField)
	assert.False(t, hasSig)
}

func TestAddress(t *testing.T) {
	id, err := ParseAddress("xrp", vectorAccount)
	require.NoError(t, err)
	assert.Equal(t, "FAC6C2BB1EB09B66CABFDE78B33927D2DC7F365D", id.Hex())
	assert.Equal(t, vectorAccount, id.String())

	pub, err := hex.DecodeString(vectorPubKey)
	require.NoError(t, err)
	derived, err := AccountFromPubKey("xrp", pub)
	require.NoError(t, err)
	assert.Equal(t, id, derived)

	_, err = AccountFromPubKey("xrp", pub[1:])
	assert.True(t, chainerr.Is(err, chainerr.KindInvalidInput))

	for _, bad := range []string{
		"rPizsaGotY3WV3vPMCY6PUH7FhzFi8QeJM",
		"XVLhHMPHU98es4dbozjVtdWzVrDjtV5fdx1mHp98tDMoQXb",
		"1BoatSLRHtKNngkdXEeobR76b53LETtpyT",
		"",
	} {
		_, err = ParseAddress("xrp", bad)
		assert.True(t, chainerr.Is(err, chainerr.KindInvalidInput), bad)
	}
}
