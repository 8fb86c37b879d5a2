package evm

import (
	"context"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	etypes "github.com/ethereum/go-ethereum/core/types"
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

// Sign attaches a 65 byte r||s||v signature. v may be 0/1 or 27/28. The
// recovered sender must be the intent's sender.
func (s *signerService) Sign(tx engine.UnsignedTx, sigs []engine.Signature) (engine.SignedTx, error) {
	chain := s.node.chain
	unsigned, ok := tx.(*UnsignedTx)
	if !ok || unsigned.chain != chain {
		return nil, chainerr.New(chainerr.KindPrecondition, chain, "not a %s evm transaction", chain)
	}
	err := engine.ExpectSignatures(chain, unsigned.SigningPayloads(), sigs)
	if err != nil {
		return nil, err
	}

	sig := append([]byte{}, sigs[0].Bytes...)
	if len(sig) != crypto.SignatureLength {
		return nil, chainerr.New(chainerr.KindMalformedSignature, chain, "signature must be %d bytes, got %d", crypto.SignatureLength, len(sig))
	}
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	if sig[64] > 1 {
		return nil, chainerr.New(chainerr.KindMalformedSignature, chain, "invalid recovery id %d", sigs[0].Bytes[64])
	}

	signer := etypes.LatestSignerForChainID(unsigned.chainID)
	signed, err := unsigned.tx.WithSignature(signer, sig)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.KindMalformedSignature, chain, err, "failed to attach signature")
	}
	sender, err := etypes.Sender(signer, signed)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.KindMalformedSignature, chain, err, "failed to recover sender")
	}
	if sender != unsigned.from {
		return nil, chainerr.New(chainerr.KindSignatureVerificationFailed, chain,
			"signature recovers %s, expected %s", sender.Hex(), unsigned.from.Hex())
	}

	res, err := newSignedTx(chain, signed)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.KindInvalidInput, chain, err, "failed to encode transaction")
	}
	return res, nil
}

// Decode parses a signed transaction in its canonical binary encoding.
func (s *signerService) Decode(raw []byte) (engine.SignedTx, error) {
	chain := s.node.chain
	tx := new(etypes.Transaction)
	err := tx.UnmarshalBinary(raw)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.KindInvalidInput, chain, err, "failed to decode transaction")
	}
	_, r, _ := tx.RawSignatureValues()
	if r == nil || r.Sign() == 0 {
		return nil, chainerr.New(chainerr.KindPrecondition, chain, "transaction is not signed")
	}
	if tx.Protected() && tx.ChainId().Cmp(s.node.chainID) != 0 {
		return nil, chainerr.New(chainerr.KindInvalidInput, chain, "transaction is for chain id %s", tx.ChainId())
	}
	_, err = etypes.Sender(etypes.LatestSignerForChainID(s.node.chainID), tx)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.KindMalformedSignature, chain, err, "failed to recover sender")
	}

	res, err := newSignedTx(chain, tx)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.KindInvalidInput, chain, err, "failed to encode transaction")
	}
	return res, nil
}

// Broadcast sends the transaction with exactly one eth_sendRawTransaction.
// The node's hash is returned; a mismatch with the local hash is logged.
func (s *signerService) Broadcast(ctx context.Context, tx engine.SignedTx) engine.BroadcastResult {
	chain := s.node.chain
	if tx.Chain() != chain {
		return engine.Failed(tx.Hash(), chainerr.New(chainerr.KindPrecondition, chain, "transaction is for chain %s", tx.Chain()))
	}

	var hash string
	start := time.Now()
	err := s.node.rpc.CallContext(ctx, &hash, "eth_sendRawTransaction", hexutil.Encode(tx.Serialized()))
	s.node.observe("eth_sendRawTransaction", start, err)
	if err != nil {
		classified := nodeError(chain, err, "failed to send transaction")
		s.node.metrics.RecordBroadcast(chain, classified)
		s.logger.WithFields(logrus.Fields{
			"hash": tx.Hash(),
			"kind": classified.Kind,
		}).WithError(err).Warn("broadcast failed")
		return engine.Failed(tx.Hash(), classified)
	}
	s.node.metrics.RecordBroadcast(chain, nil)

	if hash == "" {
		hash = tx.Hash()
	} else if !strings.EqualFold(hash, tx.Hash()) {
		s.logger.WithFields(logrus.Fields{
			"local": tx.Hash(),
			"node":  hash,
		}).Warn("node returned a different tx hash")
	}
	return engine.BroadcastResult{Hash: hash, Success: true}
}
