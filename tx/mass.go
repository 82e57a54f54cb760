package tx

import (
	"context"
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

// Mass weights.
const (
	MassPerTxByte           = 1
	MassPerScriptPubKeyByte = 10
	MassPerSigOp            = 1000
)

// Shape captures everything mass depends on, so fees can be estimated
// without building a transaction.
type Shape struct {
	InputSignatureScriptLens []int
	SigOpCounts              []uint8
	OutputScriptLens         []int
	PayloadLen               int
}

// ShapeOf returns the shape of t.
func ShapeOf(t *Transaction) Shape {
	s := Shape{
		InputSignatureScriptLens: make([]int, len(t.Inputs)),
		SigOpCounts:              make([]uint8, len(t.Inputs)),
		OutputScriptLens:         make([]int, len(t.Outputs)),
		PayloadLen:               len(t.Payload),
	}
	for i, in := range t.Inputs {
		s.InputSignatureScriptLens[i] = len(in.SignatureScript)
		s.SigOpCounts[i] = in.SigOpCount
	}
	for i, out := range t.Outputs {
		s.OutputScriptLens[i] = len(out.ScriptPublicKey)
	}
	return s
}

// EstimatedSerializedSize is the size used for mass: the transaction fields
// plus a 32-byte payload hash, excluding per-input sigop counts.
func EstimatedSerializedSize(s Shape) uint64 {
	size := uint64(2 + 8) // version, input count
	for _, n := range s.InputSignatureScriptLens {
		size += 32 + 4 + 8 + uint64(n) + 8 // outpoint, script length, script, sequence
	}
	size += 8 // output count
	for _, n := range s.OutputScriptLens {
		size += 8 + 2 + 8 + uint64(n) // value, script version, script length, script
	}
	size += 8 + SubnetworkIDSize + 8 + 32 + 8 + uint64(s.PayloadLen)
	return size
}

// Mass returns the fee mass of a transaction with shape s.
func Mass(s Shape) uint64 {
	mass := EstimatedSerializedSize(s) * MassPerTxByte
	for _, n := range s.OutputScriptLens {
		mass += uint64(2+n) * MassPerScriptPubKeyByte
	}
	for _, n := range s.SigOpCounts {
		mass += uint64(n) * MassPerSigOp
	}
	return mass
}

// MassOf returns the fee mass of t.
func MassOf(t *Transaction) uint64 {
	return Mass(ShapeOf(t))
}

// FeeForMass returns ceil(mass * rate), where rate is sompi per gram.
func FeeForMass(mass uint64, rate decimal.Decimal) uint64 {
	fee := decimal.NewFromBigInt(new(big.Int).SetUint64(mass), 0).Mul(rate).Ceil()
	if fee.IsNegative() {
		return 0
	}
	bi := fee.BigInt()
	if !bi.IsUint64() {
		return math.MaxUint64
	}
	return bi.Uint64()
}

// Fee is an estimated network fee.
type Fee struct {
	Amount decimal.Decimal // KAS
	Sompi  uint64
	Mass   uint64
	// Parameters carries flow-specific data needed to send with this fee,
	// such as the reveal fee of a token transfer.
	Parameters any
}

// NewFee builds a Fee from a sompi amount.
func NewFee(sompi, mass uint64, params any) Fee {
	return Fee{Amount: SompiToKAS(sompi), Sompi: sompi, Mass: mass, Parameters: params}
}

// LocalMassEstimator computes mass by parsing the transaction locally
// instead of asking a node.
type LocalMassEstimator struct{}

// EstimateMass implements MassEstimator.
func (LocalMassEstimator) EstimateMass(_ context.Context, raw []byte) (uint64, error) {
	t, err := ParseTransaction(raw)
	if err != nil {
		return 0, fmt.Errorf("estimate mass: %w", err)
	}
	return MassOf(t), nil
}

// StaticFeeRate is a FeeRateSource that always returns the same rate.
type StaticFeeRate decimal.Decimal

// CurrentFeeRate implements FeeRateSource.
func (r StaticFeeRate) CurrentFeeRate(context.Context) (decimal.Decimal, error) {
	return decimal.Decimal(r), nil
}

// DefaultFeeRate is the minimum relay rate in sompi per gram.
var DefaultFeeRate = decimal.NewFromInt(1)
