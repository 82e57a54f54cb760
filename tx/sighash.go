package tx

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/bitfsorg/libkaspa-go/txscript"
)

// sighashContext caches the parts of the signing preimage shared by every
// input of one transaction.
type sighashContext struct {
	tx              *Transaction
	prevOutputsHash Hash
	sequencesHash   Hash
	sigOpCountsHash Hash
	outputsHash     Hash
	payloadHash     Hash
}

func newSighashContext(t *Transaction) *sighashContext {
	var prev, seqs, sigops, outs []byte
	for _, in := range t.Inputs {
		prev = append(prev, in.PreviousOutpoint.TransactionID[:]...)
		prev = binary.LittleEndian.AppendUint32(prev, in.PreviousOutpoint.Index)
		seqs = binary.LittleEndian.AppendUint64(seqs, in.Sequence)
		sigops = append(sigops, in.SigOpCount)
	}
	for _, out := range t.Outputs {
		outs = appendOutput(outs, out)
	}

	c := &sighashContext{
		tx:              t,
		prevOutputsHash: keyedHash(domainTransactionSigningHash, prev),
		sequencesHash:   keyedHash(domainTransactionSigningHash, seqs),
		sigOpCountsHash: keyedHash(domainTransactionSigningHash, sigops),
		outputsHash:     keyedHash(domainTransactionSigningHash, outs),
	}
	// Native-subnetwork transactions commit to a zero payload hash.
	if t.SubnetworkID != NativeSubnetworkID || len(t.Payload) > 0 {
		c.payloadHash = keyedHash(domainTransactionSigningHash, appendVarBytes(nil, t.Payload))
	}
	return c
}

// hash returns the signing hash of input idx, which spends an output of
// prevValue sompi locked by scriptPubKey. ecdsa selects the OP_CHECKSIGECDSA
// rebinding.
func (c *sighashContext) hash(idx int, scriptPubKey []byte, prevValue uint64, hashType byte, ecdsa bool) ([]byte, error) {
	if idx < 0 || idx >= len(c.tx.Inputs) {
		return nil, fmt.Errorf("%w: %d of %d", ErrInputIndex, idx, len(c.tx.Inputs))
	}
	if hashType != txscript.SighashAll {
		return nil, fmt.Errorf("%w: unsupported hash type 0x%02x", ErrInvalidSignature, hashType)
	}
	in := c.tx.Inputs[idx]

	buf := make([]byte, 0, 512)
	buf = binary.LittleEndian.AppendUint16(buf, c.tx.Version)
	buf = append(buf, c.prevOutputsHash[:]...)
	buf = append(buf, c.sequencesHash[:]...)
	buf = append(buf, c.sigOpCountsHash[:]...)
	buf = append(buf, in.PreviousOutpoint.TransactionID[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, in.PreviousOutpoint.Index)
	buf = binary.LittleEndian.AppendUint16(buf, ScriptVersion)
	buf = appendVarBytes(buf, scriptPubKey)
	buf = binary.LittleEndian.AppendUint64(buf, prevValue)
	buf = binary.LittleEndian.AppendUint64(buf, in.Sequence)
	buf = append(buf, in.SigOpCount)
	buf = append(buf, c.outputsHash[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, c.tx.LockTime)
	buf = append(buf, c.tx.SubnetworkID[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, c.tx.Gas)
	buf = append(buf, c.payloadHash[:]...)
	buf = append(buf, hashType)

	h := keyedHash(domainTransactionSigningHash, buf)
	if ecdsa {
		h = ecdsaSigningHash(h)
	}
	return h[:], nil
}

// ecdsaSigningHash rebinds a Schnorr signing hash for OP_CHECKSIGECDSA:
// SHA256(SHA256("TransactionSigningHashECDSA") || hash).
func ecdsaSigningHash(h Hash) Hash {
	domain := sha256.Sum256([]byte(domainSigningHashECDSA))
	s := sha256.New()
	s.Write(domain[:])
	s.Write(h[:])
	var out Hash
	copy(out[:], s.Sum(nil))
	return out
}

// SignaturePreimageHash returns the 32-byte hash a signer must sign to
// authorize input inputIndex of t, which spends an output of prevValue sompi
// locked by the pay-to-pubkey script scriptPubKey. An ECDSA key script gets
// the ECDSA hash. Only SighashAll is supported.
//
// Pay-to-script-hash inputs commit to the P2SH script but are signed by the
// key inside the redeem script; UnsignedTransaction.SignatureHashes handles
// them.
func SignaturePreimageHash(t *Transaction, inputIndex int, scriptPubKey []byte, prevValue uint64, hashType byte) ([]byte, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: transaction", ErrNilParam)
	}
	return newSighashContext(t).hash(inputIndex, scriptPubKey, prevValue, hashType, txscript.IsECDSAScript(scriptPubKey))
}
