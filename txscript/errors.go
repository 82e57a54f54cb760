package txscript

import "errors"

var (
	// ErrUnsupportedAddress indicates the address kind or prefix is not supported.
	ErrUnsupportedAddress = errors.New("txscript: unsupported address")

	// ErrInvalidAddress indicates the address string is malformed (bad charset,
	// bad checksum, wrong payload length).
	ErrInvalidAddress = errors.New("txscript: invalid address")

	// ErrScriptBuild indicates script construction failed.
	ErrScriptBuild = errors.New("txscript: script build failed")

	// ErrNonStandardScript indicates a script public key does not match any
	// supported template.
	ErrNonStandardScript = errors.New("txscript: non-standard script")
)
