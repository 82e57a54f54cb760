package wallet

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is the value a Transfer moves. It is one of CoinAmount,
// TokenAmount or ReserveAmount.
type Amount interface {
	amount()
	// Decimal returns the value in display units.
	Decimal() decimal.Decimal
}

// CoinAmount is a native KAS amount.
type CoinAmount struct {
	Value decimal.Decimal
}

// TokenAmount is an amount of a KRC20 token. Value is in display units and
// Decimals gives the token's scale.
type TokenAmount struct {
	ContractAddress string
	Ticker          string
	Decimals        int32
	Value           decimal.Decimal
}

// ReserveAmount is the part of a balance the chain keeps locked. It is
// reported but never spendable.
type ReserveAmount struct {
	Value decimal.Decimal
}

func (CoinAmount) amount()    {}
func (TokenAmount) amount()   {}
func (ReserveAmount) amount() {}

func (a CoinAmount) Decimal() decimal.Decimal    { return a.Value }
func (a TokenAmount) Decimal() decimal.Decimal   { return a.Value }
func (a ReserveAmount) Decimal() decimal.Decimal { return a.Value }

// Transfer sends Amount to Destination, a bech32 Kaspa address.
type Transfer struct {
	Destination string
	Amount      Amount
}

// Validate checks fields common to every amount kind.
func (t Transfer) Validate() error {
	if strings.TrimSpace(t.Destination) == "" {
		return fmt.Errorf("%w: missing destination", ErrInvalidTransfer)
	}
	if t.Amount == nil {
		return fmt.Errorf("%w: missing amount", ErrInvalidTransfer)
	}
	if !t.Amount.Decimal().IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidTransfer)
	}
	if tok, ok := t.Amount.(TokenAmount); ok && tok.ContractAddress == "" {
		return fmt.Errorf("%w: token amount without contract address", ErrInvalidTransfer)
	}
	return nil
}
