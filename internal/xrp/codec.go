package xrp

import (
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"strings"

	binarycodec "github.com/xyield/xrpl-go/binary-codec"
)

// Hash prefixes of the XRPL signing and transaction id preimages.
var (
	signingPrefix = []byte{0x53, 0x54, 0x58, 0x00} // STX\0
	txIDPrefix    = []byte{0x54, 0x58, 0x4E, 0x00} // TXN\0
)

const txnSignatureField = "TxnSignature"

func sha512Half(prefix, blob []byte) []byte {
	h := sha512.New()
	h.Write(prefix)
	h.Write(blob)
	return h.Sum(nil)[:32]
}

// signingDigest is what the account key signs for a single-signed
// transaction.
func signingDigest(unsigned []byte) []byte {
	return sha512Half(signingPrefix, unsigned)
}

func transactionID(signed []byte) string {
	return strings.ToUpper(hex.EncodeToString(sha512Half(txIDPrefix, signed)))
}

// encode serializes a transaction JSON object canonically.
func encode(fields map[string]any) ([]byte, error) {
	h, err := binarycodec.Encode(fields)
	if err != nil {
		return nil, fmt.Errorf("encode failed: %w", err)
	}
	b, err := hex.DecodeString(h)
	if err != nil {
		return nil, fmt.Errorf("hex to bytes failed: %w", err)
	}
	return b, nil
}

func decode(b []byte) (map[string]any, error) {
	fields, err := binarycodec.Decode(strings.ToUpper(hex.EncodeToString(b)))
	if err != nil {
		return nil, fmt.Errorf("decode failed: %w", err)
	}
	return fields, nil
}

func stringField(fields map[string]any, name string) (string, bool) {
	v, ok := fields[name].(string)
	return v, ok && v != ""
}

func withoutSignature(fields map[string]any) map[string]any {
	res := make(map[string]any, len(fields))
	for k, v := range fields {
		if k != txnSignatureField {
			res[k] = v
		}
	}
	return res
}
