package txscript

import (
	"fmt"

	"github.com/bsv-blockchain/go-sdk/script"
	"golang.org/x/crypto/blake2b"
)

// Kaspa shares Bitcoin's opcode numbering for everything used here, but
// reassigns two slots: 0xaa hashes with BLAKE2b and 0xab checks an ECDSA
// signature.
const (
	OpCheckSig      = script.OpCHECKSIG
	OpCheckSigECDSA = script.OpCODESEPARATOR
	OpBlake2b       = script.OpHASH256
	OpEqual         = script.OpEQUAL
	OpFalse         = script.OpFALSE
	OpIf            = script.OpIF
	OpEndIf         = script.OpENDIF
	OpPushData1     = script.OpPUSHDATA1
	OpPushData2     = script.OpPUSHDATA2
	OpPushData4     = script.OpPUSHDATA4
)

// SighashAll is the only hash type produced by this library.
const SighashAll byte = 0x01

// PushData encodes data as a single push operation: a direct push up to 75
// bytes, then OP_PUSHDATA1, OP_PUSHDATA2 or OP_PUSHDATA4.
func PushData(data []byte) ([]byte, error) {
	prefix, err := script.PushDataPrefix(data)
	if err != nil {
		return nil, fmt.Errorf("%w: push %d bytes: %w", ErrScriptBuild, len(data), err)
	}
	return append(prefix, data...), nil
}

// Builder accumulates a script from opcodes and data pushes. The first
// failure sticks and is reported by Script.
type Builder struct {
	s   script.Script
	err error
}

// NewBuilder returns an empty script builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// AddOp appends non-push opcodes.
func (b *Builder) AddOp(ops ...byte) *Builder {
	if b.err != nil {
		return b
	}
	if err := b.s.AppendOpcodes(ops...); err != nil {
		b.err = fmt.Errorf("%w: %w", ErrScriptBuild, err)
	}
	return b
}

// AddData appends a minimal-width push of data.
func (b *Builder) AddData(data []byte) *Builder {
	if b.err != nil {
		return b
	}
	if err := b.s.AppendPushData(data); err != nil {
		b.err = fmt.Errorf("%w: push %d bytes: %w", ErrScriptBuild, len(data), err)
	}
	return b
}

// Script returns a copy of the assembled script bytes.
func (b *Builder) Script() ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	out := make([]byte, len(b.s))
	copy(out, b.s)
	return out, nil
}

// PayToAddrScript builds the script public key locking funds to addr.
func PayToAddrScript(addr Address) ([]byte, error) {
	if len(addr.Payload) != addr.Kind.payloadLen() || addr.Kind.payloadLen() == 0 {
		return nil, fmt.Errorf("%w: kind %s with %d byte payload",
			ErrUnsupportedAddress, addr.Kind, len(addr.Payload))
	}
	switch addr.Kind {
	case KindPubKey:
		return NewBuilder().AddData(addr.Payload).AddOp(OpCheckSig).Script()
	case KindPubKeyECDSA:
		return NewBuilder().AddData(addr.Payload).AddOp(OpCheckSigECDSA).Script()
	case KindScriptHash:
		return NewBuilder().AddOp(OpBlake2b).AddData(addr.Payload).AddOp(OpEqual).Script()
	default:
		return nil, fmt.Errorf("%w: kind %s", ErrUnsupportedAddress, addr.Kind)
	}
}

// ScriptPublicKey decodes address and returns its locking script.
func ScriptPublicKey(address string) ([]byte, error) {
	addr, err := DecodeAddress(address)
	if err != nil {
		return nil, err
	}
	return PayToAddrScript(addr)
}

// ScriptHash returns the BLAKE2b-256 hash committed to by a pay-to-script-hash output.
func ScriptHash(redeemScript []byte) [32]byte {
	return blake2b.Sum256(redeemScript)
}

// PayToScriptHashScript returns the locking script that is satisfied by
// revealing redeemScript.
func PayToScriptHashScript(redeemScript []byte) ([]byte, error) {
	if len(redeemScript) == 0 {
		return nil, fmt.Errorf("%w: empty redeem script", ErrScriptBuild)
	}
	h := ScriptHash(redeemScript)
	return NewBuilder().AddOp(OpBlake2b).AddData(h[:]).AddOp(OpEqual).Script()
}

// PubKeyScript locks funds to a raw public key, choosing Schnorr or ECDSA by
// key length.
func PubKeyScript(pubKey []byte) ([]byte, error) {
	switch len(pubKey) {
	case SchnorrPubKeyLen:
		return NewBuilder().AddData(pubKey).AddOp(OpCheckSig).Script()
	case ECDSAPubKeyLen:
		return NewBuilder().AddData(pubKey).AddOp(OpCheckSigECDSA).Script()
	default:
		return nil, fmt.Errorf("%w: public key must be %d or %d bytes, got %d",
			ErrScriptBuild, SchnorrPubKeyLen, ECDSAPubKeyLen, len(pubKey))
	}
}

// ExtractAddress recognizes a standard script public key and returns the
// address it pays to.
func ExtractAddress(scriptPubKey []byte, prefix string) (Address, error) {
	chunks, err := script.NewFromBytes(scriptPubKey).Chunks()
	if err != nil {
		return Address{}, fmt.Errorf("%w: %w", ErrNonStandardScript, err)
	}

	switch len(chunks) {
	case 2:
		switch {
		case len(chunks[0].Data) == SchnorrPubKeyLen && chunks[1].Op == OpCheckSig:
			return NewAddress(prefix, KindPubKey, chunks[0].Data)
		case len(chunks[0].Data) == ECDSAPubKeyLen && chunks[1].Op == OpCheckSigECDSA:
			return NewAddress(prefix, KindPubKeyECDSA, chunks[0].Data)
		}
	case 3:
		if chunks[0].Op == OpBlake2b && len(chunks[1].Data) == ScriptHashLen && chunks[2].Op == OpEqual {
			return NewAddress(prefix, KindScriptHash, chunks[1].Data)
		}
	}
	return Address{}, ErrNonStandardScript
}

// IsECDSAScript reports whether script opens with a 33-byte key push
// followed by OP_CHECKSIGECDSA. That covers ECDSA script public keys and
// token redeem scripts owned by an ECDSA key.
func IsECDSAScript(script []byte) bool {
	return len(script) >= 1+ECDSAPubKeyLen+1 &&
		script[0] == ECDSAPubKeyLen &&
		script[1+ECDSAPubKeyLen] == OpCheckSigECDSA
}

// SignatureScript builds an unlocking script: push(sig || hashType), followed
// by push(redeemScript) when redeemScript is non-empty.
func SignatureScript(sig []byte, hashType byte, redeemScript []byte) ([]byte, error) {
	sigWithType := make([]byte, 0, len(sig)+1)
	sigWithType = append(sigWithType, sig...)
	sigWithType = append(sigWithType, hashType)

	b := NewBuilder().AddData(sigWithType)
	if len(redeemScript) > 0 {
		b.AddData(redeemScript)
	}
	return b.Script()
}
