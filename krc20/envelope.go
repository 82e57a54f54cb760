// Package krc20 builds KRC-20 token transfers: a commit transaction that
// locks funds to the hash of a redeem script carrying the transfer envelope,
// and a reveal transaction that spends it by publishing that script.
package krc20

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bitfsorg/libkaspa-go/pending"
)

// Envelope constants.
const (
	ProtocolKRC20     = "krc-20"
	OperationTransfer = "transfer"
	// ProtocolTag is pushed before the envelope in the redeem script.
	ProtocolTag = "kasplex"
)

// Envelope is a token operation embedded in a redeem script. Amount is in
// the token's smallest units.
type Envelope struct {
	Protocol  string
	Operation string
	Ticker    string
	Amount    decimal.Decimal
	Recipient string
}

// NewTransferEnvelope builds a transfer of amount whole tokens of ticker to
// recipient. decimals scales amount to the token's smallest units; the
// scaled amount must be a positive integer.
func NewTransferEnvelope(ticker, recipient string, amount decimal.Decimal, decimals int32) (Envelope, error) {
	if ticker == "" || recipient == "" {
		return Envelope{}, fmt.Errorf("%w: ticker and recipient are required", ErrInvalidEnvelope)
	}
	if decimals < 0 {
		return Envelope{}, fmt.Errorf("%w: negative decimals %d", ErrInvalidEnvelope, decimals)
	}
	units := amount.Shift(decimals)
	if !units.IsPositive() || !units.IsInteger() {
		return Envelope{}, fmt.Errorf("%w: amount %s with %d decimals", ErrInvalidEnvelope, amount, decimals)
	}
	return Envelope{
		Protocol:  ProtocolKRC20,
		Operation: OperationTransfer,
		Ticker:    strings.ToLower(ticker),
		Amount:    units,
		Recipient: recipient,
	}, nil
}

// envelopeJSON fixes the field order of the embedded JSON.
type envelopeJSON struct {
	P    string `json:"p"`
	Op   string `json:"op"`
	Tick string `json:"tick"`
	Amt  string `json:"amt"`
	To   string `json:"to"`
}

// JSON returns the envelope as embedded on chain, for example
// {"p":"krc-20","op":"transfer","tick":"kasp","amt":"100000000","to":"kaspa:..."}.
func (e Envelope) JSON() ([]byte, error) {
	if !e.Amount.IsInteger() || !e.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount %s is not a positive integer", ErrInvalidEnvelope, e.Amount)
	}
	return json.Marshal(envelopeJSON{
		P:    e.Protocol,
		Op:   e.Operation,
		Tick: e.Ticker,
		Amt:  e.Amount.BigInt().String(),
		To:   e.Recipient,
	})
}

// ParseEnvelope decodes envelope JSON.
func ParseEnvelope(data []byte) (Envelope, error) {
	var raw envelopeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return Envelope{}, fmt.Errorf("%w: %w", ErrInvalidEnvelope, err)
	}
	amt, err := decimal.NewFromString(raw.Amt)
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: amount: %w", ErrInvalidEnvelope, err)
	}
	return Envelope{
		Protocol:  raw.P,
		Operation: raw.Op,
		Ticker:    raw.Tick,
		Amount:    amt,
		Recipient: raw.To,
	}, nil
}

// Equal reports whether e and o describe the same transfer: same ticker,
// amount and recipient.
func (e Envelope) Equal(o Envelope) bool {
	return strings.EqualFold(e.Ticker, o.Ticker) &&
		e.Amount.Equal(o.Amount) &&
		e.Recipient == o.Recipient
}

func (e Envelope) toPending() pending.Envelope {
	return pending.Envelope{
		Protocol:  e.Protocol,
		Operation: e.Operation,
		Ticker:    e.Ticker,
		Amount:    e.Amount,
		Recipient: e.Recipient,
	}
}

func envelopeFromPending(p pending.Envelope) Envelope {
	return Envelope{
		Protocol:  p.Protocol,
		Operation: p.Operation,
		Ticker:    p.Ticker,
		Amount:    p.Amount,
		Recipient: p.Recipient,
	}
}
