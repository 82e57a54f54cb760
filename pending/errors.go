package pending

import "errors"

var (
	// ErrNotFound indicates no pending record exists for the key.
	ErrNotFound = errors.New("pending: record not found")

	// ErrInvalidKey indicates a key with an empty wallet id or contract address.
	ErrInvalidKey = errors.New("pending: invalid key")

	// ErrInvalidParams indicates a record that cannot be resumed from.
	ErrInvalidParams = errors.New("pending: invalid params")

	// ErrClosed indicates the store has been closed.
	ErrClosed = errors.New("pending: store closed")

	// ErrCorruptRecord indicates a stored record could not be decoded.
	ErrCorruptRecord = errors.New("pending: corrupt record")
)
