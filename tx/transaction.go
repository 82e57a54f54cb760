package tx

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// Fixed transaction fields produced by this library.
const (
	TxVersion          uint16 = 0
	DefaultSequence    uint64 = 0
	DefaultSigOpCount  uint8  = 1
	DefaultLockTime    uint64 = 0
	ScriptVersion      uint16 = 0
	SubnetworkIDSize          = 20
	SignatureSize             = 64
	DummySignatureByte        = 0x01
)

// NativeSubnetworkID is the subnetwork of ordinary value transfers.
var NativeSubnetworkID [SubnetworkIDSize]byte

// Input spends a previous output.
type Input struct {
	PreviousOutpoint Outpoint
	SignatureScript  []byte
	Sequence         uint64
	SigOpCount       uint8
}

// Output locks Amount sompi with ScriptPublicKey.
type Output struct {
	Amount          uint64 `json:"amount"`
	ScriptPublicKey []byte `json:"scriptPublicKey"`
}

// Transaction is a Kaspa transaction.
type Transaction struct {
	Version      uint16
	Inputs       []*Input
	Outputs      []*Output
	LockTime     uint64
	SubnetworkID [SubnetworkIDSize]byte
	Gas          uint64
	Payload      []byte
}

// Serialize encodes the transaction in its little-endian wire form.
func (t *Transaction) Serialize() []byte {
	return t.encode(false)
}

// Hex returns the hex encoding of Serialize.
func (t *Transaction) Hex() string {
	return hex.EncodeToString(t.Serialize())
}

// ID returns the transaction id: keyed BLAKE2b-256 over the serialization
// with each signature script replaced by an empty one and sigop counts
// left out, so signing does not change it.
func (t *Transaction) ID() Hash {
	return keyedHash(domainTransactionID, t.encode(true))
}

func (t *Transaction) encode(forID bool) []byte {
	buf := make([]byte, 0, 256)
	buf = binary.LittleEndian.AppendUint16(buf, t.Version)

	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(t.Inputs)))
	for _, in := range t.Inputs {
		buf = append(buf, in.PreviousOutpoint.TransactionID[:]...)
		buf = binary.LittleEndian.AppendUint32(buf, in.PreviousOutpoint.Index)
		if forID {
			buf = appendVarBytes(buf, nil)
		} else {
			buf = appendVarBytes(buf, in.SignatureScript)
			buf = append(buf, in.SigOpCount)
		}
		buf = binary.LittleEndian.AppendUint64(buf, in.Sequence)
	}

	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(t.Outputs)))
	for _, out := range t.Outputs {
		buf = appendOutput(buf, out)
	}

	buf = binary.LittleEndian.AppendUint64(buf, t.LockTime)
	buf = append(buf, t.SubnetworkID[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, t.Gas)
	return appendVarBytes(buf, t.Payload)
}

func appendOutput(buf []byte, out *Output) []byte {
	buf = binary.LittleEndian.AppendUint64(buf, out.Amount)
	buf = binary.LittleEndian.AppendUint16(buf, ScriptVersion)
	return appendVarBytes(buf, out.ScriptPublicKey)
}

func appendVarBytes(buf, b []byte) []byte {
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(b)))
	return append(buf, b...)
}

// ParseTransaction decodes the wire form produced by Serialize.
func ParseTransaction(raw []byte) (*Transaction, error) {
	r := &reader{buf: raw}
	t := &Transaction{}

	t.Version = r.uint16()
	if t.Version != TxVersion && r.err == nil {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrMalformedTx, t.Version)
	}

	nIn := r.count(32 + 4 + 8 + 1 + 8)
	t.Inputs = make([]*Input, 0, nIn)
	for i := 0; i < nIn && r.err == nil; i++ {
		in := &Input{}
		copy(in.PreviousOutpoint.TransactionID[:], r.bytes(HashSize))
		in.PreviousOutpoint.Index = r.uint32()
		in.SignatureScript = r.varBytes()
		in.SigOpCount = r.byte()
		in.Sequence = r.uint64()
		t.Inputs = append(t.Inputs, in)
	}

	nOut := r.count(8 + 2 + 8)
	t.Outputs = make([]*Output, 0, nOut)
	for i := 0; i < nOut && r.err == nil; i++ {
		out := &Output{Amount: r.uint64()}
		if v := r.uint16(); v != ScriptVersion && r.err == nil {
			return nil, fmt.Errorf("%w: output %d script version %d", ErrMalformedTx, i, v)
		}
		out.ScriptPublicKey = r.varBytes()
		t.Outputs = append(t.Outputs, out)
	}

	t.LockTime = r.uint64()
	copy(t.SubnetworkID[:], r.bytes(SubnetworkIDSize))
	t.Gas = r.uint64()
	t.Payload = r.varBytes()

	if r.err != nil {
		return nil, r.err
	}
	if len(r.buf) != r.off {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedTx, len(r.buf)-r.off)
	}
	return t, nil
}

// reader is a bounds-checked little-endian cursor. The first failure sticks
// and every later read returns zero values.
type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) bytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.buf)-r.off < n {
		r.err = fmt.Errorf("%w: unexpected end of data at offset %d", ErrMalformedTx, r.off)
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) byte() byte {
	if b := r.bytes(1); b != nil {
		return b[0]
	}
	return 0
}

func (r *reader) uint16() uint16 {
	if b := r.bytes(2); b != nil {
		return binary.LittleEndian.Uint16(b)
	}
	return 0
}

func (r *reader) uint32() uint32 {
	if b := r.bytes(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (r *reader) uint64() uint64 {
	if b := r.bytes(8); b != nil {
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}

// count reads an element count and rejects counts that could not fit in the
// remaining bytes given each element's minimum encoded size.
func (r *reader) count(minElemSize int) int {
	n := r.uint64()
	if r.err != nil {
		return 0
	}
	if n > uint64((len(r.buf)-r.off)/minElemSize) {
		r.err = fmt.Errorf("%w: count %d exceeds remaining data", ErrMalformedTx, n)
		return 0
	}
	return int(n)
}

func (r *reader) varBytes() []byte {
	n := r.uint64()
	if r.err != nil {
		return nil
	}
	if n > uint64(len(r.buf)-r.off) {
		r.err = fmt.Errorf("%w: length %d exceeds remaining data", ErrMalformedTx, n)
		return nil
	}
	b := r.bytes(int(n))
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Hashing domains. Each is used as the BLAKE2b key.
const (
	domainTransactionID          = "TransactionID"
	domainTransactionSigningHash = "TransactionSigningHash"
	domainSigningHashECDSA       = "TransactionSigningHashECDSA"
)

func keyedHash(domain string, data ...[]byte) Hash {
	h, err := blake2b.New256([]byte(domain))
	if err != nil {
		// Keys up to 64 bytes are always accepted.
		panic(err)
	}
	for _, d := range data {
		h.Write(d)
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}
