package solana

import (
	"bytes"
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
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

// Sign places one ed25519 signature per required signer. Each signature is
// verified against the message and the signer at its index.
func (s *signerService) Sign(tx engine.UnsignedTx, sigs []engine.Signature) (*SignedTx, error) {
	chain := s.node.chain
	unsigned, ok := tx.(*UnsignedTx)
	if !ok || unsigned.chain != chain {
		return nil, chainerr.New(chainerr.KindPrecondition, chain, "not a %s transaction", chain)
	}
	err := engine.ExpectSignatures(chain, unsigned.SigningPayloads(), sigs)
	if err != nil {
		return nil, err
	}

	signatures := make([]solana.Signature, len(unsigned.signers))
	for _, sig := range sigs {
		signer := unsigned.signers[sig.Index]
		if len(sig.Bytes) != len(solana.Signature{}) {
			return nil, chainerr.New(chainerr.KindMalformedSignature, chain,
				"signature %d must be %d bytes, got %d", sig.Index, len(solana.Signature{}), len(sig.Bytes))
		}
		if len(sig.PubKey) > 0 && !bytes.Equal(sig.PubKey, signer[:]) {
			return nil, chainerr.New(chainerr.KindSignatureVerificationFailed, chain,
				"signature %d is for a different key than signer %s", sig.Index, signer)
		}
		var sv solana.Signature
		copy(sv[:], sig.Bytes)
		if !sv.Verify(signer, unsigned.message) {
			return nil, chainerr.New(chainerr.KindSignatureVerificationFailed, chain,
				"signature %d does not verify for signer %s", sig.Index, signer)
		}
		signatures[sig.Index] = sv
	}

	signed := &solana.Transaction{
		Signatures: signatures,
		Message:    unsigned.tx.Message,
	}
	res, err := newSignedTx(chain, signed)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.KindInvalidInput, chain, err, "failed to encode transaction")
	}
	return res, nil
}

// Decode parses a wire transaction and verifies every signature slot.
func (s *signerService) Decode(raw []byte) (*SignedTx, error) {
	chain := s.node.chain
	tx, err := solana.TransactionFromBytes(raw)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.KindInvalidInput, chain, err, "failed to decode transaction")
	}
	required := int(tx.Message.Header.NumRequiredSignatures)
	if required == 0 || len(tx.Signatures) != required || required > len(tx.Message.AccountKeys) {
		return nil, chainerr.New(chainerr.KindPrecondition, chain,
			"transaction carries %d of %d signatures", len(tx.Signatures), required)
	}

	msg, err := tx.Message.MarshalBinary()
	if err != nil {
		return nil, chainerr.Wrap(chainerr.KindInvalidInput, chain, err, "failed to encode message")
	}
	for i, sig := range tx.Signatures {
		if !sig.Verify(tx.Message.AccountKeys[i], msg) {
			return nil, chainerr.New(chainerr.KindSignatureVerificationFailed, chain,
				"signature %d does not verify for signer %s", i, tx.Message.AccountKeys[i])
		}
	}

	res, err := newSignedTx(chain, tx)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.KindInvalidInput, chain, err, "failed to encode transaction")
	}
	if !bytes.Equal(res.raw, raw) {
		return nil, chainerr.New(chainerr.KindInvalidInput, chain, "transaction has trailing or non-canonical bytes")
	}
	return res, nil
}

// Broadcast submits the transaction with one sendTransaction call. Preflight
// failures come back as node errors and are reported verbatim.
func (s *signerService) Broadcast(ctx context.Context, tx engine.SignedTx) engine.BroadcastResult {
	chain := s.node.chain
	if tx.Chain() != chain {
		return engine.Failed(tx.Hash(), chainerr.New(chainerr.KindPrecondition, chain, "transaction is for chain %s", tx.Chain()))
	}

	start := time.Now()
	sig, err := s.node.client.SendRawTransactionWithOpts(ctx, tx.Serialized(), rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	s.node.observe("sendTransaction", start, err)
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

	hash := sig.String()
	if sig == (solana.Signature{}) {
		hash = tx.Hash()
	} else if hash != tx.Hash() {
		s.logger.WithFields(logrus.Fields{
			"local": tx.Hash(),
			"node":  hash,
		}).Warn("node returned a different signature")
	}
	return engine.BroadcastResult{Hash: hash, Success: true}
}
