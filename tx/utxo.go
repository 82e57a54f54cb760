package tx

import (
	"fmt"
	"math"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MaxInputs bounds the number of inputs in a single transaction. Wallets
// holding more spendable outputs than this can only spend the largest ones.
const MaxInputs = 84

// SompiPerKAS is the number of sompi in one KAS.
const SompiPerKAS = 100_000_000

// KASDecimals is the number of decimal places in a KAS amount.
const KASDecimals = 8

// UnspentOutput is a spendable output owned by the wallet.
type UnspentOutput struct {
	Outpoint Outpoint `json:"outpoint"`
	Amount   uint64   `json:"amount"` // sompi
	Script   []byte   `json:"script"` // script public key locking the output
}

// SelectInputs orders available outputs by amount, largest first, and keeps
// at most MaxInputs of them. Ties are broken by outpoint so the result does
// not depend on the order the source returned them in. The input slice is
// not modified.
func SelectInputs(available []UnspentOutput) []UnspentOutput {
	sorted := make([]UnspentOutput, len(available))
	copy(sorted, available)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Amount != sorted[j].Amount {
			return sorted[i].Amount > sorted[j].Amount
		}
		return sorted[i].Outpoint.less(sorted[j].Outpoint)
	})
	if len(sorted) > MaxInputs {
		sorted = sorted[:MaxInputs]
	}
	return sorted
}

// SelectInputsFor returns the shortest prefix of SelectInputs(available)
// whose total covers target. When no prefix does, the whole capped set is
// returned and the shortfall surfaces later from ComputeChange.
func SelectInputsFor(available []UnspentOutput, target uint64) []UnspentOutput {
	selected := SelectInputs(available)
	var sum uint64
	for i, u := range selected {
		sum = saturatingAdd(sum, u.Amount)
		if sum >= target {
			return selected[:i+1]
		}
	}
	return selected
}

// TotalAmount sums the amounts of outputs, saturating at math.MaxUint64.
func TotalAmount(outputs []UnspentOutput) uint64 {
	var sum uint64
	for _, u := range outputs {
		sum = saturatingAdd(sum, u.Amount)
	}
	return sum
}

// ComputeChange returns what is left of the inputs after paying spend and
// fee. hasChange is false when the inputs are consumed exactly, in which case
// no change output should be created.
func ComputeChange(inputs []UnspentOutput, spend, fee uint64) (change uint64, hasChange bool, err error) {
	need, ok := checkedAdd(spend, fee)
	if !ok {
		return 0, false, fmt.Errorf("%w: spend %d + fee %d overflows", ErrInvalidAmount, spend, fee)
	}
	total := TotalAmount(inputs)
	if total < need {
		return 0, false, fmt.Errorf("%w: have %d sompi, need %d", ErrInsufficientFunds, total, need)
	}
	change = total - need
	return change, change > 0, nil
}

// AvailableAmount is the KAS value of inputs.
func AvailableAmount(inputs []UnspentOutput) decimal.Decimal {
	return SompiToKAS(TotalAmount(inputs))
}

// ClampToAvailable returns amount, or the total of inputs when that is smaller.
func ClampToAvailable(inputs []UnspentOutput, amount uint64) uint64 {
	if total := TotalAmount(inputs); amount > total {
		return total
	}
	return amount
}

// SompiToKAS converts sompi to KAS.
func SompiToKAS(sompi uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(sompi), -KASDecimals)
}

// KASToSompi converts a KAS amount to sompi. Amounts with more than eight
// decimal places or outside the uint64 range are rejected.
func KASToSompi(kas decimal.Decimal) (uint64, error) {
	sompi := kas.Shift(KASDecimals)
	if !sompi.IsInteger() || sompi.IsNegative() {
		return 0, fmt.Errorf("%w: %s KAS", ErrInvalidAmount, kas)
	}
	bi := sompi.BigInt()
	if !bi.IsUint64() {
		return 0, fmt.Errorf("%w: %s KAS out of range", ErrInvalidAmount, kas)
	}
	return bi.Uint64(), nil
}

// UTXOSet holds the most recent snapshot of the wallet's unspent outputs.
// Snapshots are replaced wholesale, never patched.
type UTXOSet struct {
	mu        sync.RWMutex
	outputs   []UnspentOutput
	updatedAt time.Time
}

// Replace swaps in a new snapshot.
func (s *UTXOSet) Replace(outputs []UnspentOutput) {
	cp := make([]UnspentOutput, len(outputs))
	copy(cp, outputs)

	s.mu.Lock()
	s.outputs = cp
	s.updatedAt = time.Now()
	s.mu.Unlock()
}

// Snapshot returns a copy of the current outputs.
func (s *UTXOSet) Snapshot() []UnspentOutput {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make([]UnspentOutput, len(s.outputs))
	copy(cp, s.outputs)
	return cp
}

// UpdatedAt reports when the snapshot was last replaced.
func (s *UTXOSet) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

// Spendable returns the outputs a single transaction can consume.
func (s *UTXOSet) Spendable() []UnspentOutput {
	return SelectInputs(s.Snapshot())
}

func checkedAdd(a, b uint64) (uint64, bool) {
	if a > math.MaxUint64-b {
		return 0, false
	}
	return a + b, true
}

func saturatingAdd(a, b uint64) uint64 {
	if s, ok := checkedAdd(a, b); ok {
		return s
	}
	return math.MaxUint64
}
