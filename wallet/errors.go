package wallet

import "errors"

var (
	// ErrUnsupportedAmount indicates an amount kind this wallet cannot send.
	ErrUnsupportedAmount = errors.New("wallet: unsupported amount")

	// ErrInvalidTransfer indicates a transfer with a missing destination or non-positive value.
	ErrInvalidTransfer = errors.New("wallet: invalid transfer")

	// ErrNotRefreshed indicates no UTXO snapshot has been loaded yet.
	ErrNotRefreshed = errors.New("wallet: balance not refreshed")

	// ErrInvalidNetwork indicates unknown network name with no custom config.
	ErrInvalidNetwork = errors.New("wallet: invalid network name")

	// ErrInvalidKey indicates a private key that is empty or out of range.
	ErrInvalidKey = errors.New("wallet: invalid private key")

	// ErrDecryptionFailed indicates wrong password or corrupted key file data.
	ErrDecryptionFailed = errors.New("wallet: key decryption failed (wrong password or corrupted data)")

	// ErrChecksumMismatch indicates key checksum verification failed after decryption.
	ErrChecksumMismatch = errors.New("wallet: key checksum mismatch")
)
