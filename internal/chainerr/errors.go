package chainerr

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind is the machine-checkable class of an engine failure.
type Kind string

const (
	KindInvalidInput                Kind = "invalid_input"
	KindInsufficientFunds           Kind = "insufficient_funds"
	KindUnsupportedAddressType      Kind = "unsupported_address_type"
	KindUnsupportedChain            Kind = "unsupported_chain"
	KindMalformedSignature          Kind = "malformed_signature"
	KindSignatureVerificationFailed Kind = "signature_verification_failed"
	KindRPCTimeout                  Kind = "rpc_timeout"
	KindRPCTransport                Kind = "rpc_transport_failure"
	KindOnChainRejection            Kind = "on_chain_rejection"
	KindNotFound                    Kind = "not_found"
	KindPrecondition                Kind = "precondition_failed"
)

// Sentinels for errors.Is checks against a kind.
var (
	ErrInvalidInput                = &Error{Kind: KindInvalidInput}
	ErrInsufficientFunds           = &Error{Kind: KindInsufficientFunds}
	ErrUnsupportedAddressType      = &Error{Kind: KindUnsupportedAddressType}
	ErrUnsupportedChain            = &Error{Kind: KindUnsupportedChain}
	ErrMalformedSignature          = &Error{Kind: KindMalformedSignature}
	ErrSignatureVerificationFailed = &Error{Kind: KindSignatureVerificationFailed}
	ErrRPCTimeout                  = &Error{Kind: KindRPCTimeout}
	ErrRPCTransport                = &Error{Kind: KindRPCTransport}
	ErrOnChainRejection            = &Error{Kind: KindOnChainRejection}
	ErrNotFound                    = &Error{Kind: KindNotFound}
	ErrPrecondition                = &Error{Kind: KindPrecondition}
)

// Error is a classified failure. Reason is human readable; for on-chain
// rejections it carries the node message verbatim.
type Error struct {
	Kind   Kind
	Chain  string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Chain != "" {
		msg = e.Chain + ": " + msg
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound)
// works regardless of chain or reason.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

func New(kind Kind, chain string, format string, args ...any) *Error {
	return &Error{
		Kind:   kind,
		Chain:  chain,
		Reason: fmt.Sprintf(format, args...),
	}
}

func Wrap(kind Kind, chain string, err error, format string, args ...any) *Error {
	return &Error{
		Kind:   kind,
		Chain:  chain,
		Reason: fmt.Sprintf(format, args...),
		Err:    err,
	}
}

// KindOf returns the kind of the first classified error in the chain, or an
// empty kind.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Definite reports whether the outcome of the failed call is known. Timeouts
// and transport failures may hide a request the node already accepted.
func Definite(err error) bool {
	switch KindOf(err) {
	case KindRPCTimeout, KindRPCTransport:
		return false
	}
	return true
}

// Classify turns a raw network error into a classified one. Already
// classified errors pass through untouched.
func Classify(chain string, err error, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if IsTimeout(err) {
		return Wrap(KindRPCTimeout, chain, err, format, args...)
	}
	return Wrap(KindRPCTransport, chain, err, format, args...)
}

func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
