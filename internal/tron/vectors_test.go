package tron

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TransferContract of 1.5 TRX from TR7NHq.. to TEpYZA.. with ref block a1b2.
const (
	transferRawData = "0a02a1b22208010203040506070840e0a499ffbc315a67080112630a2d747970652e676f6f676c65617069732e636f6d2f70726f746f636f6c2e5472616e73666572436f6e747261637412320a1541a614f803b6fd780986a42c78ec9c7f77e6ded13c121541353535353535353535353535353535353535353518e0c65b7080d095ffbc31"
	transferTxID    = "2ff6c10cd2d9f65793337a2967c12ed3fa737836154bb1aa0dd4459272e4d2d4"
	transferSigned  = "0a85010a02a1b22208010203040506070840e0a499ffbc315a67080112630a2d747970652e676f6f676c65617069732e636f6d2f70726f746f636f6c2e5472616e73666572436f6e747261637412320a1541a614f803b6fd780986a42c78ec9c7f77e6ded13c121541353535353535353535353535353535353535353518e0c65b7080d095ffbc311241"
)

func TestTransferRawDataVector(t *testing.T) {
	raw, err := hex.DecodeString(transferRawData)
	require.NoError(t, err)

	info, err := parseRawData(raw)
	require.NoError(t, err)
	assert.Equal(t, uint64(TransferContract), info.contractType)
	assert.Equal(t, "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t", info.owner.String())
	assert.Equal(t, int64(1700000060000), info.expiration)
	assert.Zero(t, info.feeLimit)

	id := sha256.Sum256(raw)
	assert.Equal(t, transferTxID, hex.EncodeToString(id[:]))

	sig := append(bytes.Repeat([]byte{0xaa}, 64), 0x1b)
	signed := encodeSigned(raw, sig)
	assert.Equal(t, transferSigned+hex.EncodeToString(sig), hex.EncodeToString(signed))

	rawBack, sigs, err := decodeSigned(signed)
	require.NoError(t, err)
	assert.Equal(t, raw, rawBack)
	require.Len(t, sigs, 1)
	assert.Equal(t, sig, sigs[0])
}
