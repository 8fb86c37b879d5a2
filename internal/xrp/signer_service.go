package xrp

import (
	"bytes"
	"context"
	"encoding/hex"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vultisig/txengine/internal/chainerr"
	"github.com/vultisig/txengine/internal/engine"
	"github.com/vultisig/txengine/internal/signature"
)

// Engine results that mean the transaction was accepted for relay.
const (
	resultSuccess = "tesSUCCESS"
	resultQueued  = "terQUEUED"
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

// Sign attaches a secp256k1 signature, DER or 64 byte r||s. The signature is
// verified against SigningPubKey and stored as low-S DER.
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

	r, sv, err := signature.Parse(sigs[0].Bytes)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.KindMalformedSignature, chain, err, "failed to parse signature")
	}
	sv = signature.NormalizeS(sv)
	if !signature.ValidateSignature(signingDigest(unsigned.blob), r, sv, unsigned.pubKey) {
		return nil, chainerr.New(chainerr.KindSignatureVerificationFailed, chain, "signature does not verify against SigningPubKey")
	}

	fields := withoutSignature(unsigned.fields)
	fields[txnSignatureField] = strings.ToUpper(hex.EncodeToString(signature.ToDER(r, sv)))
	blob, err := encode(fields)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.KindInvalidInput, chain, err, "failed to encode signed transaction")
	}
	return newSignedTx(chain, blob), nil
}

// Decode parses a single-signed transaction blob and checks its signature.
func (s *signerService) Decode(raw []byte) (engine.SignedTx, error) {
	chain := s.node.chain
	fields, err := decode(raw)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.KindInvalidInput, chain, err, "failed to decode transaction")
	}
	sigHex, ok := stringField(fields, txnSignatureField)
	if !ok {
		return nil, chainerr.New(chainerr.KindPrecondition, chain, "transaction is not signed")
	}
	pubHex, ok := stringField(fields, "SigningPubKey")
	if !ok {
		return nil, chainerr.New(chainerr.KindPrecondition, chain, "multi-signed transactions are not supported")
	}

	canonical, err := encode(fields)
	if err != nil || !bytes.Equal(canonical, raw) {
		return nil, chainerr.New(chainerr.KindInvalidInput, chain, "transaction is not canonically encoded")
	}

	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.KindMalformedSignature, chain, err, "invalid TxnSignature")
	}
	r, sv, err := signature.FromDER(sig)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.KindMalformedSignature, chain, err, "invalid TxnSignature")
	}
	pubKey, err := hex.DecodeString(pubHex)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.KindInvalidInput, chain, err, "invalid SigningPubKey")
	}
	unsigned, err := encode(withoutSignature(fields))
	if err != nil {
		return nil, chainerr.Wrap(chainerr.KindInvalidInput, chain, err, "failed to encode signing payload")
	}
	if !signature.ValidateSignature(signingDigest(unsigned), r, sv, pubKey) {
		return nil, chainerr.New(chainerr.KindSignatureVerificationFailed, chain, "signature does not verify against SigningPubKey")
	}

	return newSignedTx(chain, append([]byte{}, raw...)), nil
}

// Broadcast submits the blob once. tesSUCCESS and terQUEUED are accepted,
// any other engine result is a rejection carrying the node's message.
func (s *signerService) Broadcast(ctx context.Context, tx engine.SignedTx) engine.BroadcastResult {
	chain := s.node.chain
	if tx.Chain() != chain {
		return engine.Failed(tx.Hash(), chainerr.New(chainerr.KindPrecondition, chain, "transaction is for chain %s", tx.Chain()))
	}

	start := time.Now()
	res, err := s.node.client.Submit(ctx, strings.ToUpper(hex.EncodeToString(tx.Serialized())))
	s.node.observe("submit", start, err)

	var classified *chainerr.Error
	switch {
	case err != nil:
		classified = nodeError(chain, err, "failed to submit")
	case res.EngineResult != resultSuccess && res.EngineResult != resultQueued:
		classified = chainerr.New(chainerr.KindOnChainRejection, chain, "%s: %s", res.EngineResult, res.EngineResultMessage)
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
	if res.TxJSON.Hash != "" && !strings.EqualFold(res.TxJSON.Hash, hash) {
		s.logger.WithFields(logrus.Fields{
			"local": hash,
			"node":  res.TxJSON.Hash,
		}).Warn("node returned a different tx hash")
		hash = res.TxJSON.Hash
	}
	return engine.BroadcastResult{Hash: hash, Success: true}
}
