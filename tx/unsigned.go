package tx

import (
	"bytes"
	"fmt"

	"github.com/bitfsorg/libkaspa-go/txscript"
)

// UnsignedTransaction is an ordered set of inputs and outputs awaiting
// signatures. A non-empty RedeemScript marks a reveal: its first input spends
// a pay-to-script-hash output and the finalized signature script carries the
// redeem script after the signature.
type UnsignedTransaction struct {
	Inputs       []UnspentOutput
	Outputs      []Output
	RedeemScript []byte
}

// BuildUnsigned assembles an unsigned transaction. Order is preserved.
func BuildUnsigned(inputs []UnspentOutput, outputs []Output) (*UnsignedTransaction, error) {
	if len(inputs) == 0 {
		return nil, ErrNoInputs
	}
	if len(outputs) == 0 {
		return nil, ErrNoOutputs
	}
	if len(inputs) > MaxInputs {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyInputs, len(inputs), MaxInputs)
	}
	u := &UnsignedTransaction{
		Inputs:  make([]UnspentOutput, len(inputs)),
		Outputs: make([]Output, len(outputs)),
	}
	copy(u.Inputs, inputs)
	copy(u.Outputs, outputs)
	return u, nil
}

// Transaction returns the transaction with empty signature scripts.
func (u *UnsignedTransaction) Transaction() *Transaction {
	t := &Transaction{
		Version:      TxVersion,
		Inputs:       make([]*Input, len(u.Inputs)),
		Outputs:      make([]*Output, len(u.Outputs)),
		LockTime:     DefaultLockTime,
		SubnetworkID: NativeSubnetworkID,
	}
	for i, in := range u.Inputs {
		t.Inputs[i] = &Input{
			PreviousOutpoint: in.Outpoint,
			Sequence:         DefaultSequence,
			SigOpCount:       DefaultSigOpCount,
		}
	}
	for i := range u.Outputs {
		out := u.Outputs[i]
		t.Outputs[i] = &out
	}
	return t
}

// InputAmount is the total value of the inputs.
func (u *UnsignedTransaction) InputAmount() uint64 {
	return TotalAmount(u.Inputs)
}

// OutputAmount is the total value of the outputs.
func (u *UnsignedTransaction) OutputAmount() uint64 {
	var sum uint64
	for _, o := range u.Outputs {
		sum = saturatingAdd(sum, o.Amount)
	}
	return sum
}

// keyScript is the script holding the key that signs input i: the redeem
// script for the redeeming input of a reveal, otherwise the spent output's
// own script.
func (u *UnsignedTransaction) keyScript(i int) []byte {
	if i == 0 && len(u.RedeemScript) > 0 {
		return u.RedeemScript
	}
	return u.Inputs[i].Script
}

// SignatureHashes computes one signing hash per input, in input order. Each
// hash commits to the spent output's script public key. The key script only
// picks Schnorr or ECDSA.
func (u *UnsignedTransaction) SignatureHashes() ([][]byte, error) {
	ctx := newSighashContext(u.Transaction())
	hashes := make([][]byte, len(u.Inputs))
	for i, in := range u.Inputs {
		ecdsa := txscript.IsECDSAScript(u.keyScript(i))
		h, err := ctx.hash(i, in.Script, in.Amount, txscript.SighashAll, ecdsa)
		if err != nil {
			return nil, err
		}
		hashes[i] = h
	}
	return hashes, nil
}

// Finalize applies sigs, one 64-byte signature per input in input order, and
// returns the signed transaction.
func (u *UnsignedTransaction) Finalize(sigs [][]byte) (*Transaction, error) {
	if len(sigs) != len(u.Inputs) {
		return nil, fmt.Errorf("%w: have %d signatures for %d inputs",
			ErrInvalidSignature, len(sigs), len(u.Inputs))
	}
	t := u.Transaction()
	for i, sig := range sigs {
		if len(sig) != SignatureSize {
			return nil, fmt.Errorf("%w: signature %d is %d bytes, want %d",
				ErrInvalidSignature, i, len(sig), SignatureSize)
		}
		var redeem []byte
		if i == 0 {
			redeem = u.RedeemScript
		}
		sigScript, err := txscript.SignatureScript(sig, txscript.SighashAll, redeem)
		if err != nil {
			return nil, err
		}
		t.Inputs[i].SignatureScript = sigScript
	}
	return t, nil
}

// FinalizeDummy signs every input with a placeholder signature of the real
// length, so the result has exactly the size and mass of the signed
// transaction.
func (u *UnsignedTransaction) FinalizeDummy() (*Transaction, error) {
	dummy := bytes.Repeat([]byte{DummySignatureByte}, SignatureSize)
	sigs := make([][]byte, len(u.Inputs))
	for i := range sigs {
		sigs[i] = dummy
	}
	return u.Finalize(sigs)
}
