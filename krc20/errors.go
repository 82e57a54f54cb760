package krc20

import (
	"errors"
	"fmt"

	"github.com/bitfsorg/libkaspa-go/tx"
)

var (
	// ErrInvalidEnvelope indicates a transfer envelope with missing or invalid fields.
	ErrInvalidEnvelope = errors.New("krc20: invalid envelope")

	// ErrInvalidRedeemScript indicates bytes that are not a token redeem script.
	ErrInvalidRedeemScript = errors.New("krc20: invalid redeem script")

	// ErrIncompleteTransactionNotFound indicates there is no pending commit to resume.
	ErrIncompleteTransactionNotFound = errors.New("krc20: incomplete transaction not found")

	// ErrInvalidIncompleteTransaction indicates the pending commit does not match the request.
	ErrInvalidIncompleteTransaction = errors.New("krc20: invalid incomplete transaction")

	// ErrInvalidTransition indicates an out-of-order state machine step.
	ErrInvalidTransition = errors.New("krc20: invalid phase transition")

	// ErrInvalidRequest indicates a transfer request or fee that cannot be sent.
	ErrInvalidRequest = errors.New("krc20: invalid request")
)

// PhaseError reports the last phase a token transfer reached before it
// failed. Once the commit is broadcast CommitTxID is set and the pending
// record stays in place so the transfer can be resumed.
type PhaseError struct {
	Phase      Phase
	CommitTxID tx.Hash
	Err        error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("krc20: %s: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }

// CommitBroadcast reports whether the commit reached the network before the failure.
func (e *PhaseError) CommitBroadcast() bool {
	return !e.CommitTxID.IsZero()
}
