package pending

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bitfsorg/libkaspa-go/tx"
)

// Key identifies the pending transfer of one token from one wallet.
type Key struct {
	WalletID        string `json:"walletId"`
	ContractAddress string `json:"contractAddress"`
}

// Validate checks both parts of the key are present.
func (k Key) Validate() error {
	if k.WalletID == "" || k.ContractAddress == "" {
		return fmt.Errorf("%w: wallet %q contract %q", ErrInvalidKey, k.WalletID, k.ContractAddress)
	}
	return nil
}

// String returns a readable form of the key for logs.
func (k Key) String() string {
	return k.WalletID + "/" + k.ContractAddress
}

// bytes encodes the key with a 2-byte big-endian length before each part,
// so no choice of strings can collide.
func (k Key) bytes() []byte {
	b := make([]byte, 0, 4+len(k.WalletID)+len(k.ContractAddress))
	b = binary.BigEndian.AppendUint16(b, uint16(len(k.WalletID)))
	b = append(b, k.WalletID...)
	b = binary.BigEndian.AppendUint16(b, uint16(len(k.ContractAddress)))
	return append(b, k.ContractAddress...)
}

func keyFromBytes(b []byte) (Key, error) {
	var parts [2]string
	for i := range parts {
		if len(b) < 2 {
			return Key{}, fmt.Errorf("%w: short key", ErrCorruptRecord)
		}
		n := int(binary.BigEndian.Uint16(b))
		b = b[2:]
		if len(b) < n {
			return Key{}, fmt.Errorf("%w: short key part", ErrCorruptRecord)
		}
		parts[i] = string(b[:n])
		b = b[n:]
	}
	if len(b) != 0 {
		return Key{}, fmt.Errorf("%w: trailing key bytes", ErrCorruptRecord)
	}
	return Key{WalletID: parts[0], ContractAddress: parts[1]}, nil
}

// Envelope is the stored copy of a token-transfer envelope.
type Envelope struct {
	Protocol  string          `json:"p"`
	Operation string          `json:"op"`
	Ticker    string          `json:"tick"`
	Amount    decimal.Decimal `json:"amt"`
	Recipient string          `json:"to"`
}

// Params is what survives between a broadcast commit and its reveal.
type Params struct {
	CommitTransactionID tx.Hash   `json:"commitTransactionId"`
	TargetOutputAmount  uint64    `json:"targetOutputAmount"`
	Envelope            Envelope  `json:"envelope"`
	CreatedAt           time.Time `json:"createdAt"`
}

// Validate checks the record is complete enough to build a reveal from.
func (p Params) Validate() error {
	switch {
	case p.CommitTransactionID.IsZero():
		return fmt.Errorf("%w: missing commit transaction id", ErrInvalidParams)
	case p.TargetOutputAmount == 0:
		return fmt.Errorf("%w: zero target output amount", ErrInvalidParams)
	case p.Envelope.Ticker == "" || p.Envelope.Recipient == "":
		return fmt.Errorf("%w: incomplete envelope", ErrInvalidParams)
	}
	return nil
}
