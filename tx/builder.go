package tx

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/bitfsorg/libkaspa-go/internal/log"
)

// maxFeeIterations bounds the fee/selection fixed-point loop in EstimateFee.
const maxFeeIterations = 8

// Builder assembles plain coin transfers: one destination output and an
// optional change output back to the wallet.
type Builder struct {
	changeScript []byte
	log          zerolog.Logger
}

// NewBuilder returns a builder sending change to changeScript.
func NewBuilder(changeScript []byte) *Builder {
	return &Builder{changeScript: changeScript, log: log.TxBuilder}
}

// WithLogger replaces the builder's logger.
func (b *Builder) WithLogger(l zerolog.Logger) *Builder {
	b.log = l
	return b
}

// BuildForSign selects inputs covering amount + fee and returns the unsigned
// transaction together with the hashes to sign, in input order.
func (b *Builder) BuildForSign(available []UnspentOutput, destination []byte, amount, fee uint64) (*UnsignedTransaction, [][]byte, error) {
	if amount == 0 {
		return nil, nil, fmt.Errorf("%w: zero amount", ErrInvalidAmount)
	}
	target, ok := checkedAdd(amount, fee)
	if !ok {
		return nil, nil, fmt.Errorf("%w: amount %d + fee %d overflows", ErrInvalidAmount, amount, fee)
	}
	u, err := b.assemble(SelectInputsFor(available, target), destination, amount, fee)
	if err != nil {
		return nil, nil, err
	}
	hashes, err := u.SignatureHashes()
	if err != nil {
		return nil, nil, err
	}
	b.log.Debug().
		Int("inputs", len(u.Inputs)).
		Int("outputs", len(u.Outputs)).
		Uint64("amount", amount).
		Uint64("fee", fee).
		Msg("built transaction for signing")
	return u, hashes, nil
}

// BuildForSend applies sigs to u and returns the serialized transaction.
func (b *Builder) BuildForSend(u *UnsignedTransaction, sigs [][]byte) ([]byte, error) {
	if u == nil {
		return nil, fmt.Errorf("%w: unsigned transaction", ErrNilParam)
	}
	t, err := u.Finalize(sigs)
	if err != nil {
		return nil, err
	}
	return t.Serialize(), nil
}

// BuildForMassCalculation builds a transaction of realistic shape for fee
// estimation. amount is clamped to what the selectable inputs hold and the
// fee is left out, so it never fails for lack of funds.
func (b *Builder) BuildForMassCalculation(available []UnspentOutput, destination []byte, amount uint64) (*UnsignedTransaction, error) {
	return b.buildForMass(available, destination, amount, 0)
}

func (b *Builder) buildForMass(available []UnspentOutput, destination []byte, amount, fee uint64) (*UnsignedTransaction, error) {
	selectable := SelectInputs(available)
	if len(selectable) == 0 {
		return nil, ErrNoInputs
	}
	amount = ClampToAvailable(selectable, amount)
	target := ClampToAvailable(selectable, saturatingAdd(amount, fee))
	inputs := SelectInputsFor(selectable, target)
	return b.assemble(inputs, destination, amount, 0)
}

func (b *Builder) assemble(inputs []UnspentOutput, destination []byte, amount, fee uint64) (*UnsignedTransaction, error) {
	if len(destination) == 0 {
		return nil, fmt.Errorf("%w: destination script", ErrNilParam)
	}
	change, hasChange, err := ComputeChange(inputs, amount, fee)
	if err != nil {
		return nil, err
	}
	outputs := []Output{{Amount: amount, ScriptPublicKey: destination}}
	if hasChange {
		if len(b.changeScript) == 0 {
			return nil, fmt.Errorf("%w: change script", ErrNilParam)
		}
		outputs = append(outputs, Output{Amount: change, ScriptPublicKey: b.changeScript})
	}
	return BuildUnsigned(inputs, outputs)
}

// EstimateFee prices a transfer of amount to destination. Selection depends
// on the fee and the fee on the selection's mass, so the two are iterated
// until the fee stops changing.
func (b *Builder) EstimateFee(ctx context.Context, available []UnspentOutput, destination []byte, amount uint64, masses MassEstimator, rates FeeRateSource) (Fee, error) {
	if masses == nil || rates == nil {
		return Fee{}, fmt.Errorf("%w: mass estimator or fee rate source", ErrNilParam)
	}
	rate, err := rates.CurrentFeeRate(ctx)
	if err != nil {
		return Fee{}, fmt.Errorf("fee rate: %w", err)
	}

	var fee, mass uint64
	for i := 0; i < maxFeeIterations; i++ {
		u, err := b.buildForMass(available, destination, amount, fee)
		if err != nil {
			return Fee{}, err
		}
		dummy, err := u.FinalizeDummy()
		if err != nil {
			return Fee{}, err
		}
		mass, err = masses.EstimateMass(ctx, dummy.Serialize())
		if err != nil {
			return Fee{}, fmt.Errorf("estimate mass: %w", err)
		}
		next := FeeForMass(mass, rate)
		if next == fee {
			break
		}
		fee = next
	}
	b.log.Debug().Uint64("mass", mass).Uint64("fee", fee).Str("rate", rate.String()).Msg("estimated fee")
	return NewFee(fee, mass, nil), nil
}
