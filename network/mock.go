package network

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/bitfsorg/libkaspa-go/tx"
)

// MockClient is a test double for Service.
// All function fields must be set before the corresponding method is called.
type MockClient struct {
	FetchUnspentOutputsFn func(ctx context.Context, address string) ([]tx.UnspentOutput, error)
	BroadcastFn           func(ctx context.Context, raw []byte) (tx.Hash, error)
	EstimateMassFn        func(ctx context.Context, raw []byte) (uint64, error)
	CurrentFeeRateFn      func(ctx context.Context) (decimal.Decimal, error)
}

var _ Service = (*MockClient)(nil)

func (m *MockClient) FetchUnspentOutputs(ctx context.Context, address string) ([]tx.UnspentOutput, error) {
	return m.FetchUnspentOutputsFn(ctx, address)
}
func (m *MockClient) Broadcast(ctx context.Context, raw []byte) (tx.Hash, error) {
	return m.BroadcastFn(ctx, raw)
}
func (m *MockClient) EstimateMass(ctx context.Context, raw []byte) (uint64, error) {
	return m.EstimateMassFn(ctx, raw)
}
func (m *MockClient) CurrentFeeRate(ctx context.Context) (decimal.Decimal, error) {
	return m.CurrentFeeRateFn(ctx)
}
