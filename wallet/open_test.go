package wallet

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/libkaspa-go/config"
	"github.com/bitfsorg/libkaspa-go/pending"
	"github.com/bitfsorg/libkaspa-go/tx"
	"github.com/bitfsorg/libkaspa-go/txscript"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Network = "testnet-10"
	cfg.DataDir = t.TempDir()
	cfg.APIURL = "http://127.0.0.1:1"
	cfg.LogLevel = "error"
	return cfg
}

func TestOpen(t *testing.T) {
	cfg := testConfig(t)
	signer, err := NewKeySigner(testPrivKey(), SchnorrKey)
	require.NoError(t, err)

	svc, err := Open(context.Background(), cfg, signer.Owner("wallet-1"))
	require.NoError(t, err)
	defer svc.Close()

	addr, err := signer.Address(txscript.PrefixTestnet)
	require.NoError(t, err)
	assert.Equal(t, addr.String(), svc.Address())
	assert.Equal(t, &TestNet10, svc.Network())
	assert.FileExists(t, cfg.PendingDBPath())
}

func TestOpen_LoadsPendingTransfers(t *testing.T) {
	cfg := testConfig(t)
	signer, err := NewKeySigner(testPrivKey(), SchnorrKey)
	require.NoError(t, err)

	var commit tx.Hash
	commit[0] = 0xc0
	rec := pending.Params{
		CommitTransactionID: commit,
		TargetOutputAmount:  20_003_000,
		Envelope: pending.Envelope{
			Protocol:  "krc-20",
			Operation: "transfer",
			Ticker:    "kasp",
			Amount:    decimal.NewFromInt(100),
			Recipient: "kaspatest:qr",
		},
		CreatedAt: time.Now().UTC(),
	}
	backend, err := pending.OpenBoltBackend(cfg.PendingDBPath())
	require.NoError(t, err)
	require.NoError(t, backend.Put(pending.Key{WalletID: "wallet-1", ContractAddress: "kasp"}, rec))
	require.NoError(t, backend.Close())

	svc, err := Open(context.Background(), cfg, signer.Owner("wallet-1"))
	require.NoError(t, err)
	defer svc.Close()

	got, ok := svc.PendingTokenTransfer("kasp")
	require.True(t, ok)
	assert.Equal(t, commit, got.CommitTransactionID)
	assert.Equal(t, uint64(20_003_000), got.TargetOutputAmount)

	_, ok = svc.PendingTokenTransfer("other")
	assert.False(t, ok)
}

func TestOpen_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Network = "regtest"
	signer, err := GenerateKeySigner(SchnorrKey)
	require.NoError(t, err)

	_, err = Open(context.Background(), cfg, signer.Owner("w"))
	assert.ErrorIs(t, err, config.ErrInvalidNetwork)
}

func TestOpen_InvalidOwner(t *testing.T) {
	cfg := testConfig(t)
	_, err := Open(context.Background(), cfg, Owner{WalletID: "w"})
	assert.ErrorIs(t, err, tx.ErrNilParam)

	// The store was closed on failure so the database can be reopened.
	signer, err := GenerateKeySigner(ECDSAKey)
	require.NoError(t, err)
	svc, err := Open(context.Background(), cfg, signer.Owner("w"))
	require.NoError(t, err)
	assert.NoError(t, svc.Close())
}
