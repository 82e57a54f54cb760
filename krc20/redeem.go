package krc20

import (
	"fmt"

	"github.com/bsv-blockchain/go-sdk/script"

	"github.com/bitfsorg/libkaspa-go/txscript"
)

// RedeemScript is the script a commit output is locked to by hash.
type RedeemScript struct {
	Bytes []byte
	Hash  [32]byte
}

// NewRedeemScript builds the redeem script for env owned by ownerPublicKey:
//
//	<pubkey> OP_CHECKSIG|OP_CHECKSIGECDSA
//	OP_FALSE OP_IF
//	  "kasplex" OP_0 <envelope json>
//	OP_ENDIF
//
// A 32-byte key is checked with Schnorr, a 33-byte key with ECDSA. The
// result depends only on the arguments.
func NewRedeemScript(ownerPublicKey []byte, env Envelope) (RedeemScript, error) {
	var checkSig byte
	switch len(ownerPublicKey) {
	case txscript.SchnorrPubKeyLen:
		checkSig = txscript.OpCheckSig
	case txscript.ECDSAPubKeyLen:
		checkSig = txscript.OpCheckSigECDSA
	default:
		return RedeemScript{}, fmt.Errorf("%w: owner key must be %d or %d bytes, got %d",
			txscript.ErrScriptBuild, txscript.SchnorrPubKeyLen, txscript.ECDSAPubKeyLen, len(ownerPublicKey))
	}
	body, err := env.JSON()
	if err != nil {
		return RedeemScript{}, err
	}

	b := txscript.NewBuilder().
		AddData(ownerPublicKey).
		AddOp(checkSig, txscript.OpFalse, txscript.OpIf).
		AddData([]byte(ProtocolTag)).
		AddOp(script.Op0).
		AddData(body).
		AddOp(txscript.OpEndIf)

	raw, err := b.Script()
	if err != nil {
		return RedeemScript{}, err
	}
	return RedeemScript{Bytes: raw, Hash: txscript.ScriptHash(raw)}, nil
}

// ScriptPublicKey returns the pay-to-script-hash locking script of the commit output.
func (r RedeemScript) ScriptPublicKey() []byte {
	spk, _ := txscript.PayToScriptHashScript(r.Bytes)
	return spk
}

// ParseRedeemScript recovers the owner key and envelope from a redeem script
// built by NewRedeemScript.
func ParseRedeemScript(redeem []byte) ([]byte, Envelope, error) {
	chunks, err := script.NewFromBytes(redeem).Chunks()
	if err != nil {
		return nil, Envelope{}, fmt.Errorf("%w: %w", ErrInvalidRedeemScript, err)
	}
	if len(chunks) != 8 {
		return nil, Envelope{}, fmt.Errorf("%w: expected 8 chunks, got %d", ErrInvalidRedeemScript, len(chunks))
	}

	pubKey := chunks[0].Data
	switch {
	case len(pubKey) == txscript.SchnorrPubKeyLen && chunks[1].Op == txscript.OpCheckSig,
		len(pubKey) == txscript.ECDSAPubKeyLen && chunks[1].Op == txscript.OpCheckSigECDSA:
	default:
		return nil, Envelope{}, fmt.Errorf("%w: bad owner key commitment", ErrInvalidRedeemScript)
	}
	if chunks[2].Op != txscript.OpFalse || chunks[3].Op != txscript.OpIf ||
		string(chunks[4].Data) != ProtocolTag || chunks[5].Op != script.Op0 ||
		chunks[7].Op != txscript.OpEndIf {
		return nil, Envelope{}, fmt.Errorf("%w: bad envelope framing", ErrInvalidRedeemScript)
	}

	env, err := ParseEnvelope(chunks[6].Data)
	if err != nil {
		return nil, Envelope{}, err
	}
	return pubKey, env, nil
}

// ExtractRedeemScript returns the redeem script revealed by a reveal input's
// signature script: the last of its two data pushes.
func ExtractRedeemScript(signatureScript []byte) ([]byte, error) {
	chunks, err := script.NewFromBytes(signatureScript).Chunks()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRedeemScript, err)
	}
	if len(chunks) != 2 || len(chunks[1].Data) == 0 {
		return nil, fmt.Errorf("%w: signature script has %d pushes", ErrInvalidRedeemScript, len(chunks))
	}
	return chunks[1].Data, nil
}
