package krc20

import (
	"bytes"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/bitfsorg/libkaspa-go/tx"
	"github.com/bitfsorg/libkaspa-go/txscript"
)

// DefaultRevealOutputAmount is what the reveal returns to the sender, in
// sompi. The commit output carries this plus the reveal fee.
const DefaultRevealOutputAmount uint64 = 20_000_000

// commitOutputIndex is the commit output holding the token redeem script.
const commitOutputIndex = 0

// RevealTransactionFeeParameter is the fee of the reveal transaction,
// estimated before the commit exists and attached to the commit's fee.
type RevealTransactionFeeParameter struct {
	Amount decimal.Decimal // KAS
	Sompi  uint64
	Mass   uint64
	// RevealOnly is set when the estimate priced only the reveal of a
	// pending commit. Such a fee cannot pay for a fresh commit.
	RevealOnly bool
}

// CommitOutputAmount is the value locked by the commit: revealOutput plus
// the reveal fee, so the reveal can pay its own fee.
func CommitOutputAmount(revealOutput, revealFee uint64) (uint64, error) {
	if revealOutput > math.MaxUint64-revealFee {
		return 0, fmt.Errorf("%w: reveal output %d + fee %d overflows", tx.ErrInvalidAmount, revealOutput, revealFee)
	}
	return revealOutput + revealFee, nil
}

// BuildCommit selects inputs and builds the commit transaction: output 0
// locks target sompi to the redeem script's hash, output 1 returns change
// to changeScript when there is any. The signing hashes are returned in
// input order.
func BuildCommit(available []tx.UnspentOutput, redeem RedeemScript, target, fee uint64, changeScript []byte) (*tx.UnsignedTransaction, [][]byte, error) {
	need, err := CommitOutputAmount(target, fee)
	if err != nil {
		return nil, nil, err
	}
	u, err := assembleCommit(tx.SelectInputsFor(available, need), redeem, target, fee, changeScript)
	if err != nil {
		return nil, nil, err
	}
	hashes, err := u.SignatureHashes()
	if err != nil {
		return nil, nil, err
	}
	return u, hashes, nil
}

func assembleCommit(inputs []tx.UnspentOutput, redeem RedeemScript, target, fee uint64, changeScript []byte) (*tx.UnsignedTransaction, error) {
	if len(redeem.Bytes) == 0 {
		return nil, fmt.Errorf("%w: empty redeem script", txscript.ErrScriptBuild)
	}
	if target == 0 {
		return nil, fmt.Errorf("%w: zero commit amount", tx.ErrInvalidAmount)
	}
	change, hasChange, err := tx.ComputeChange(inputs, target, fee)
	if err != nil {
		return nil, err
	}
	outputs := []tx.Output{{Amount: target, ScriptPublicKey: redeem.ScriptPublicKey()}}
	if hasChange {
		if len(changeScript) == 0 {
			return nil, fmt.Errorf("%w: change script", tx.ErrNilParam)
		}
		outputs = append(outputs, tx.Output{Amount: change, ScriptPublicKey: changeScript})
	}
	return tx.BuildUnsigned(inputs, outputs)
}

// commitForMass builds a commit of realistic shape for fee estimation. It
// never fails for lack of funds: selection is clamped to what is available
// and a change output is always included.
func commitForMass(available []tx.UnspentOutput, redeem RedeemScript, target, fee uint64, changeScript []byte) (*tx.UnsignedTransaction, error) {
	selectable := tx.SelectInputs(available)
	if len(selectable) == 0 {
		return nil, tx.ErrNoInputs
	}
	need, err := CommitOutputAmount(target, fee)
	if err != nil {
		return nil, err
	}
	inputs := tx.SelectInputsFor(selectable, need)
	return tx.BuildUnsigned(inputs, []tx.Output{
		{Amount: target, ScriptPublicKey: redeem.ScriptPublicKey()},
		{Amount: 1, ScriptPublicKey: changeScript},
	})
}

// BuildReveal builds the reveal: its single input spends commit output 0
// worth target sompi, and its single output returns target - revealFee to
// destination. The finalized first input carries the redeem script.
func BuildReveal(commitID tx.Hash, redeem RedeemScript, target, revealFee uint64, destination []byte) (*tx.UnsignedTransaction, [][]byte, error) {
	u, err := assembleReveal(commitID, redeem, target, revealFee, destination)
	if err != nil {
		return nil, nil, err
	}
	hashes, err := u.SignatureHashes()
	if err != nil {
		return nil, nil, err
	}
	return u, hashes, nil
}

func assembleReveal(commitID tx.Hash, redeem RedeemScript, target, revealFee uint64, destination []byte) (*tx.UnsignedTransaction, error) {
	if len(redeem.Bytes) == 0 {
		return nil, fmt.Errorf("%w: empty redeem script", txscript.ErrScriptBuild)
	}
	if len(destination) == 0 {
		return nil, fmt.Errorf("%w: destination script", tx.ErrNilParam)
	}
	if target <= revealFee {
		return nil, fmt.Errorf("%w: commit output %d cannot pay reveal fee %d",
			tx.ErrInsufficientFunds, target, revealFee)
	}
	input := tx.UnspentOutput{
		Outpoint: tx.Outpoint{TransactionID: commitID, Index: commitOutputIndex},
		Amount:   target,
		Script:   redeem.ScriptPublicKey(),
	}
	u, err := tx.BuildUnsigned(
		[]tx.UnspentOutput{input},
		[]tx.Output{{Amount: target - revealFee, ScriptPublicKey: destination}},
	)
	if err != nil {
		return nil, err
	}
	u.RedeemScript = redeem.Bytes
	return u, nil
}

// EstimateRevealMass returns the mass of the reveal spending redeem to
// destination. It depends only on script sizes, so it is known before the
// commit is built.
func EstimateRevealMass(redeem RedeemScript, destination []byte) (uint64, error) {
	sigScript, err := txscript.SignatureScript(
		bytes.Repeat([]byte{tx.DummySignatureByte}, tx.SignatureSize), txscript.SighashAll, redeem.Bytes)
	if err != nil {
		return 0, err
	}
	return tx.Mass(tx.Shape{
		InputSignatureScriptLens: []int{len(sigScript)},
		SigOpCounts:              []uint8{tx.DefaultSigOpCount},
		OutputScriptLens:         []int{len(destination)},
	}), nil
}

// RevealFeeParameter prices the reveal at rate sompi per gram.
func RevealFeeParameter(redeem RedeemScript, destination []byte, rate decimal.Decimal) (RevealTransactionFeeParameter, error) {
	mass, err := EstimateRevealMass(redeem, destination)
	if err != nil {
		return RevealTransactionFeeParameter{}, err
	}
	sompi := tx.FeeForMass(mass, rate)
	return RevealTransactionFeeParameter{Amount: tx.SompiToKAS(sompi), Sompi: sompi, Mass: mass}, nil
}
