package tron

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"

	"github.com/vultisig/txengine/internal/chainerr"
	"github.com/vultisig/txengine/internal/engine"
)

type signerService struct {
	node   *node
	logger logrus.FieldLogger
}

func newSignerService(n *node, logger logrus.FieldLogger) *signerService {
	return &signerService{
		node:   n,
		logger: logger,
	}
}

// Sign attaches a 65 byte r||s||v signature over the txID. v may be 0/1 or
// 27/28 and is serialized as 27/28.
func (s *signerService) Sign(tx engine.UnsignedTx, sigs []engine.Signature) (engine.SignedTx, error) {
	chain := s.node.chain
	unsigned, ok := tx.(*UnsignedTx)
	if !ok || unsigned.chain != chain {
		return nil, chainerr.New(chainerr.KindPrecondition, chain, "not a %s transaction", chain)
	}
	err := engine.ExpectSignatures(chain, unsigned.SigningPayloads(), sigs)
	if err != nil {
		return nil, err
	}

	sig, err := s.recoverable(sigs[0].Bytes)
	if err != nil {
		return nil, err
	}
	err = s.verify(unsigned.txID[:], sig, unsigned.owner)
	if err != nil {
		return nil, err
	}

	return &SignedTx{
		chain: chain,
		raw:   encodeSigned(unsigned.rawData, wireSignature(sig)),
		hash:  unsigned.TxID(),
	}, nil
}

// Decode parses a serialized protocol.Transaction carrying exactly one
// signature by the contract owner.
func (s *signerService) Decode(raw []byte) (engine.SignedTx, error) {
	chain := s.node.chain
	rawData, sigs, err := decodeSigned(raw)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.KindInvalidInput, chain, err, "failed to decode transaction")
	}
	if len(sigs) != 1 {
		return nil, chainerr.New(chainerr.KindPrecondition, chain, "expected one signature, got %d", len(sigs))
	}
	info, err := parseRawData(rawData)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.KindInvalidInput, chain, err, "failed to parse raw_data")
	}

	sig, err := s.recoverable(sigs[0])
	if err != nil {
		return nil, err
	}
	txID := sha256.Sum256(rawData)
	err = s.verify(txID[:], sig, info.owner)
	if err != nil {
		return nil, err
	}

	return &SignedTx{
		chain: chain,
		raw:   encodeSigned(rawData, wireSignature(sig)),
		hash:  hex.EncodeToString(txID[:]),
	}, nil
}

// Broadcast submits the transaction with one broadcasthex call.
func (s *signerService) Broadcast(ctx context.Context, tx engine.SignedTx) engine.BroadcastResult {
	chain := s.node.chain
	if tx.Chain() != chain {
		return engine.Failed(tx.Hash(), chainerr.New(chainerr.KindPrecondition, chain, "transaction is for chain %s", tx.Chain()))
	}

	start := time.Now()
	res, err := s.node.client.BroadcastHex(ctx, hex.EncodeToString(tx.Serialized()))
	s.node.observe("broadcasthex", start, err)

	var classified *chainerr.Error
	switch {
	case err != nil:
		classified = chainerr.Classify(chain, err, "failed to broadcast")
	case !res.Result:
		reason := res.Code
		if msg := nodeText(res.Message); msg != "" {
			reason += ": " + msg
		}
		classified = chainerr.New(chainerr.KindOnChainRejection, chain, "%s", reason)
	}
	s.node.metrics.RecordBroadcast(chain, classified)
	if classified != nil {
		s.logger.WithFields(logrus.Fields{
			"hash": tx.Hash(),
			"kind": classified.Kind,
		}).WithError(classified).Warn("broadcast failed")
		return engine.Failed(tx.Hash(), classified)
	}

	hash := tx.Hash()
	if res.TxID != "" && !strings.EqualFold(res.TxID, hash) {
		s.logger.WithFields(logrus.Fields{
			"local": hash,
			"node":  res.TxID,
		}).Warn("node returned a different tx id")
		hash = res.TxID
	}
	return engine.BroadcastResult{Hash: hash, Success: true}
}

// recoverable checks the length and normalizes v to 0/1.
func (s *signerService) recoverable(b []byte) ([]byte, error) {
	chain := s.node.chain
	if len(b) != crypto.SignatureLength {
		return nil, chainerr.New(chainerr.KindMalformedSignature, chain, "signature must be %d bytes, got %d", crypto.SignatureLength, len(b))
	}
	sig := append([]byte{}, b...)
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	if sig[64] > 1 {
		return nil, chainerr.New(chainerr.KindMalformedSignature, chain, "invalid recovery id %d", b[64])
	}
	return sig, nil
}

func (s *signerService) verify(digest, sig []byte, owner Address) error {
	chain := s.node.chain
	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return chainerr.Wrap(chainerr.KindMalformedSignature, chain, err, "failed to recover signer")
	}
	signer := AddressFromPubKey(pub)
	if !bytes.Equal(signer[:], owner[:]) {
		return chainerr.New(chainerr.KindSignatureVerificationFailed, chain, "signature recovers %s, expected %s", signer, owner)
	}
	return nil
}

func wireSignature(sig []byte) []byte {
	out := append([]byte{}, sig...)
	out[64] += 27
	return out
}
