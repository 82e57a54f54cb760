package txscript

import (
	"fmt"
	"strings"
)

// AddressKind identifies what an address commits to.
type AddressKind byte

// Address kinds, numbered by their on-chain version byte.
const (
	// KindPubKey is a 32-byte x-only Schnorr public key.
	KindPubKey AddressKind = 0
	// KindPubKeyECDSA is a 33-byte compressed ECDSA public key.
	KindPubKeyECDSA AddressKind = 1
	// KindScriptHash is a 32-byte BLAKE2b hash of a redeem script.
	KindScriptHash AddressKind = 8
)

// Payload lengths per address kind.
const (
	SchnorrPubKeyLen = 32
	ECDSAPubKeyLen   = 33
	ScriptHashLen    = 32
)

// Network address prefixes.
const (
	PrefixMainnet = "kaspa"
	PrefixTestnet = "kaspatest"
	PrefixSimnet  = "kaspasim"
	PrefixDevnet  = "kaspadev"
)

var knownPrefixes = map[string]bool{
	PrefixMainnet: true,
	PrefixTestnet: true,
	PrefixSimnet:  true,
	PrefixDevnet:  true,
}

// String returns a human-readable name for the address kind.
func (k AddressKind) String() string {
	switch k {
	case KindPubKey:
		return "PubKey"
	case KindPubKeyECDSA:
		return "PubKeyECDSA"
	case KindScriptHash:
		return "ScriptHash"
	default:
		return fmt.Sprintf("Unknown(%d)", byte(k))
	}
}

// payloadLen returns the expected payload length for k, or 0 if k is unknown.
func (k AddressKind) payloadLen() int {
	switch k {
	case KindPubKey:
		return SchnorrPubKeyLen
	case KindPubKeyECDSA:
		return ECDSAPubKeyLen
	case KindScriptHash:
		return ScriptHashLen
	default:
		return 0
	}
}

// Address is a decoded Kaspa address.
type Address struct {
	Prefix  string
	Kind    AddressKind
	Payload []byte
}

// NewAddress validates the payload length for kind and returns an Address.
func NewAddress(prefix string, kind AddressKind, payload []byte) (Address, error) {
	if !knownPrefixes[prefix] {
		return Address{}, fmt.Errorf("%w: prefix %q", ErrUnsupportedAddress, prefix)
	}
	want := kind.payloadLen()
	if want == 0 {
		return Address{}, fmt.Errorf("%w: kind %s", ErrUnsupportedAddress, kind)
	}
	if len(payload) != want {
		return Address{}, fmt.Errorf("%w: %s payload must be %d bytes, got %d",
			ErrInvalidAddress, kind, want, len(payload))
	}
	p := make([]byte, len(payload))
	copy(p, payload)
	return Address{Prefix: prefix, Kind: kind, Payload: p}, nil
}

// DecodeAddress parses a "prefix:payload" bech32 Kaspa address.
func DecodeAddress(s string) (Address, error) {
	prefix, data, err := bech32Decode(s)
	if err != nil {
		return Address{}, err
	}
	if len(data) == 0 {
		return Address{}, fmt.Errorf("%w: empty payload", ErrInvalidAddress)
	}
	return NewAddress(prefix, AddressKind(data[0]), data[1:])
}

// String encodes the address in its bech32 form.
func (a Address) String() string {
	data := make([]byte, 0, 1+len(a.Payload))
	data = append(data, byte(a.Kind))
	data = append(data, a.Payload...)
	return bech32Encode(a.Prefix, data)
}

// ---------------------------------------------------------------------------
// Kaspa bech32: cashaddr-style 40-bit BCH checksum with a ':' separator.
// ---------------------------------------------------------------------------

const bech32Charset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"

const checksumLen = 8

var bech32CharsetRev [128]int8

func init() {
	for i := range bech32CharsetRev {
		bech32CharsetRev[i] = -1
	}
	for i, c := range bech32Charset {
		bech32CharsetRev[c] = int8(i)
	}
}

var polyGenerators = [5]uint64{0x98f2bc8e61, 0x79b76d99e2, 0xf33e5fb3c4, 0xae2eabe2a8, 0x1e4f43e470}

func polyMod(values []byte) uint64 {
	checksum := uint64(1)
	for _, v := range values {
		top := checksum >> 35
		checksum = ((checksum & 0x07ffffffff) << 5) ^ uint64(v)
		for i, g := range polyGenerators {
			if (top>>uint(i))&1 == 1 {
				checksum ^= g
			}
		}
	}
	return checksum ^ 1
}

func prefixToUint5(prefix string) []byte {
	out := make([]byte, 0, len(prefix)+1)
	for i := 0; i < len(prefix); i++ {
		out = append(out, prefix[i]&0x1f)
	}
	return append(out, 0)
}

func createChecksum(prefix string, data5 []byte) []byte {
	values := prefixToUint5(prefix)
	values = append(values, data5...)
	values = append(values, make([]byte, checksumLen)...)
	poly := polyMod(values)
	out := make([]byte, checksumLen)
	for i := range out {
		out[i] = byte((poly >> uint(5*(checksumLen-1-i))) & 31)
	}
	return out
}

func verifyChecksum(prefix string, data5 []byte) bool {
	values := prefixToUint5(prefix)
	values = append(values, data5...)
	return polyMod(values) == 0
}

func bech32Encode(prefix string, data []byte) string {
	conv, _ := convertBits(data, 8, 5, true)
	chk := createChecksum(prefix, conv)

	var sb strings.Builder
	sb.Grow(len(prefix) + 1 + len(conv) + checksumLen)
	sb.WriteString(prefix)
	sb.WriteByte(':')
	for _, b := range conv {
		sb.WriteByte(bech32Charset[b])
	}
	for _, b := range chk {
		sb.WriteByte(bech32Charset[b])
	}
	return sb.String()
}

func bech32Decode(s string) (string, []byte, error) {
	if s != strings.ToLower(s) && s != strings.ToUpper(s) {
		return "", nil, fmt.Errorf("%w: mixed case", ErrInvalidAddress)
	}
	s = strings.ToLower(s)

	sep := strings.LastIndexByte(s, ':')
	if sep < 1 {
		return "", nil, fmt.Errorf("%w: missing prefix", ErrInvalidAddress)
	}
	prefix, body := s[:sep], s[sep+1:]
	if len(body) < checksumLen+1 {
		return "", nil, fmt.Errorf("%w: too short", ErrInvalidAddress)
	}

	data5 := make([]byte, len(body))
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c >= 128 || bech32CharsetRev[c] < 0 {
			return "", nil, fmt.Errorf("%w: invalid character %q", ErrInvalidAddress, c)
		}
		data5[i] = byte(bech32CharsetRev[c])
	}
	if !verifyChecksum(prefix, data5) {
		return "", nil, fmt.Errorf("%w: checksum mismatch", ErrInvalidAddress)
	}

	data, err := convertBits(data5[:len(data5)-checksumLen], 5, 8, false)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	return prefix, data, nil
}

func convertBits(data []byte, fromBits, toBits uint, pad bool) ([]byte, error) {
	var acc uint32
	var bits uint
	maxV := uint32(1<<toBits) - 1
	out := make([]byte, 0, len(data)*int(fromBits)/int(toBits)+1)
	for _, b := range data {
		if uint32(b)>>fromBits != 0 {
			return nil, fmt.Errorf("invalid data byte %d", b)
		}
		acc = acc<<fromBits | uint32(b)
		bits += fromBits
		for bits >= toBits {
			bits -= toBits
			out = append(out, byte(acc>>bits&maxV))
		}
	}
	if pad {
		if bits > 0 {
			out = append(out, byte(acc<<(toBits-bits)&maxV))
		}
	} else if bits >= fromBits || (acc<<(toBits-bits))&maxV != 0 {
		return nil, fmt.Errorf("invalid padding")
	}
	return out, nil
}
