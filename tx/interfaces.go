package tx

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// UTXOSource lists the unspent outputs of an address.
type UTXOSource interface {
	FetchUnspentOutputs(ctx context.Context, address string) ([]UnspentOutput, error)
}

// Broadcaster submits a signed transaction and returns the id the network
// assigned to it.
type Broadcaster interface {
	Broadcast(ctx context.Context, raw []byte) (Hash, error)
}

// MassEstimator reports the fee mass of a serialized transaction.
type MassEstimator interface {
	EstimateMass(ctx context.Context, raw []byte) (uint64, error)
}

// FeeRateSource reports the current fee rate in sompi per gram.
type FeeRateSource interface {
	CurrentFeeRate(ctx context.Context) (decimal.Decimal, error)
}

// Signer produces one 64-byte signature per hash, in order. Implementations
// return an error wrapping ErrSigningCancelled when the user declines or ctx
// is done.
type Signer interface {
	Sign(ctx context.Context, hashes [][]byte) ([][]byte, error)
}

// SignerFunc adapts a function to Signer.
type SignerFunc func(ctx context.Context, hashes [][]byte) ([][]byte, error)

// Sign calls f.
func (f SignerFunc) Sign(ctx context.Context, hashes [][]byte) ([][]byte, error) {
	return f(ctx, hashes)
}

// BroadcastError reports a failed broadcast along with the transaction that
// was submitted, so it can be inspected or resubmitted.
type BroadcastError struct {
	Phase string // which transaction failed, e.g. "commit" or "reveal"
	RawTx string // hex
	Err   error
}

func (e *BroadcastError) Error() string {
	if e.Phase != "" {
		return fmt.Sprintf("%v: %s transaction: %v", ErrBroadcastFailure, e.Phase, e.Err)
	}
	return fmt.Sprintf("%v: %v", ErrBroadcastFailure, e.Err)
}

// Unwrap exposes both ErrBroadcastFailure and the underlying cause.
func (e *BroadcastError) Unwrap() []error {
	return []error{ErrBroadcastFailure, e.Err}
}
