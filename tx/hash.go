package tx

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// HashSize is the length of transaction ids and signature hashes.
const HashSize = 32

// Hash is a 32-byte transaction id. Its string form is plain hex in byte
// order, as used by Kaspa explorers and REST APIs.
type Hash [HashSize]byte

// HashFromBytes copies b into a Hash.
func HashFromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != HashSize {
		return h, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidHash, HashSize, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// HashFromString parses a 64-character hex string.
func HashFromString(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("%w: %w", ErrInvalidHash, err)
	}
	return HashFromBytes(b)
}

// String returns the hex encoding of h.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether h is all zeros.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// MarshalJSON encodes h as a hex string.
func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// UnmarshalJSON decodes a hex string into h.
func (h *Hash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidHash, err)
	}
	parsed, err := HashFromString(s)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// Outpoint references an output of a previous transaction.
type Outpoint struct {
	TransactionID Hash   `json:"transactionId"`
	Index         uint32 `json:"index"`
}

// String returns "txid:index".
func (o Outpoint) String() string {
	return fmt.Sprintf("%s:%d", o.TransactionID, o.Index)
}

// less orders outpoints by transaction id, then index.
func (o Outpoint) less(other Outpoint) bool {
	for i := range o.TransactionID {
		if o.TransactionID[i] != other.TransactionID[i] {
			return o.TransactionID[i] < other.TransactionID[i]
		}
	}
	return o.Index < other.Index
}
