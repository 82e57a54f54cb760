package tx

import "errors"

var (
	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("tx: required parameter is nil")

	// ErrInsufficientFunds indicates the selected inputs cannot cover spend + fee.
	ErrInsufficientFunds = errors.New("tx: insufficient funds")

	// ErrNoInputs indicates a transaction was built without inputs.
	ErrNoInputs = errors.New("tx: no inputs")

	// ErrNoOutputs indicates a transaction was built without outputs.
	ErrNoOutputs = errors.New("tx: no outputs")

	// ErrTooManyInputs indicates more than MaxInputs inputs were supplied.
	ErrTooManyInputs = errors.New("tx: too many inputs")

	// ErrInvalidAmount indicates a zero or overflowing amount.
	ErrInvalidAmount = errors.New("tx: invalid amount")

	// ErrInvalidSignature indicates a signature has the wrong length or the
	// signature count does not match the input count.
	ErrInvalidSignature = errors.New("tx: invalid signature")

	// ErrInputIndex indicates an input index is out of range.
	ErrInputIndex = errors.New("tx: input index out of range")

	// ErrMalformedTx indicates raw transaction bytes could not be parsed.
	ErrMalformedTx = errors.New("tx: malformed transaction")

	// ErrInvalidHash indicates a transaction hash string or slice is malformed.
	ErrInvalidHash = errors.New("tx: invalid hash")

	// ErrSigningCancelled indicates the signer was cancelled by the user or context.
	ErrSigningCancelled = errors.New("tx: signing cancelled")

	// ErrBroadcastFailure indicates the network rejected or never received a transaction.
	ErrBroadcastFailure = errors.New("tx: broadcast failed")
)
