package wallet

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/bitfsorg/libkaspa-go/tx"
	"github.com/bitfsorg/libkaspa-go/txscript"
)

// KeyKind selects the signature scheme a KeySigner produces.
type KeyKind int

const (
	// SchnorrKey signs BIP-340 Schnorr and locks to a 32-byte x-only key.
	SchnorrKey KeyKind = iota
	// ECDSAKey signs compact ECDSA (r || s) and locks to a 33-byte compressed key.
	ECDSAKey
)

// PrivateKeyLen is the length of a raw secp256k1 private key.
const PrivateKeyLen = 32

// KeySigner signs with a private key held in memory. It is meant for
// development, tests and headless services; interactive wallets plug in
// their own tx.Signer.
type KeySigner struct {
	priv *btcec.PrivateKey
	kind KeyKind
}

var _ tx.Signer = (*KeySigner)(nil)

// NewKeySigner wraps a 32-byte private key.
func NewKeySigner(privKey []byte, kind KeyKind) (*KeySigner, error) {
	if len(privKey) != PrivateKeyLen {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKey, PrivateKeyLen, len(privKey))
	}
	var scalar secp256k1.ModNScalar
	if overflow := scalar.SetByteSlice(privKey); overflow || scalar.IsZero() {
		return nil, fmt.Errorf("%w: out of range", ErrInvalidKey)
	}
	if kind != SchnorrKey && kind != ECDSAKey {
		return nil, fmt.Errorf("%w: unknown key kind %d", ErrInvalidKey, kind)
	}
	priv, _ := btcec.PrivKeyFromBytes(privKey)
	return &KeySigner{priv: priv, kind: kind}, nil
}

// GenerateKeySigner creates a signer with a fresh random key.
func GenerateKeySigner(kind KeyKind) (*KeySigner, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("wallet: generate key: %w", err)
	}
	return NewKeySigner(priv.Serialize(), kind)
}

// PrivateKey returns the raw 32-byte private key, e.g. for SaveKeyFile.
func (s *KeySigner) PrivateKey() []byte {
	return s.priv.Serialize()
}

// PublicKey returns the key the wallet's outputs are locked to.
func (s *KeySigner) PublicKey() []byte {
	if s.kind == ECDSAKey {
		return s.priv.PubKey().SerializeCompressed()
	}
	return schnorr.SerializePubKey(s.priv.PubKey())
}

// Address returns the wallet address on the network with the given prefix.
func (s *KeySigner) Address(prefix string) (txscript.Address, error) {
	kind := txscript.KindPubKey
	if s.kind == ECDSAKey {
		kind = txscript.KindPubKeyECDSA
	}
	return txscript.NewAddress(prefix, kind, s.PublicKey())
}

// Owner returns the identity Open needs to run a wallet with this key.
func (s *KeySigner) Owner(walletID string) Owner {
	return Owner{WalletID: walletID, PublicKey: s.PublicKey(), Signer: s}
}

// Sign implements tx.Signer. Each hash must be 32 bytes; each signature is
// 64 bytes. Cancelling ctx stops signing with tx.ErrSigningCancelled.
func (s *KeySigner) Sign(ctx context.Context, hashes [][]byte) ([][]byte, error) {
	sigs := make([][]byte, len(hashes))
	for i, h := range hashes {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", tx.ErrSigningCancelled, err)
		}
		if len(h) != tx.HashSize {
			return nil, fmt.Errorf("%w: hash %d is %d bytes", tx.ErrInvalidSignature, i, len(h))
		}
		sig, err := s.sign(h)
		if err != nil {
			return nil, fmt.Errorf("wallet: sign input %d: %w", i, err)
		}
		sigs[i] = sig
	}
	return sigs, nil
}

func (s *KeySigner) sign(hash []byte) ([]byte, error) {
	if s.kind == ECDSAKey {
		sig := ecdsa.Sign(s.priv, hash)
		r, sv := sig.R(), sig.S()
		rb, sb := r.Bytes(), sv.Bytes()
		out := make([]byte, 0, tx.SignatureSize)
		out = append(out, rb[:]...)
		return append(out, sb[:]...), nil
	}
	sig, err := schnorr.Sign(s.priv, hash)
	if err != nil {
		return nil, err
	}
	return sig.Serialize(), nil
}
