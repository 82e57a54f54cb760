package krc20

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/libkaspa-go/pending"
	"github.com/bitfsorg/libkaspa-go/tx"
)

var testKey = pending.Key{WalletID: "wallet-1", ContractAddress: "kasp"}

// fakeNetwork records broadcasts and signing requests. Function fields
// override the defaults.
type fakeNetwork struct {
	mu         sync.Mutex
	broadcasts [][]byte
	signCalls  int

	BroadcastFn func(call int, raw []byte) (tx.Hash, error)
	SignFn      func(ctx context.Context, call int, hashes [][]byte) ([][]byte, error)
}

func (f *fakeNetwork) Broadcast(_ context.Context, raw []byte) (tx.Hash, error) {
	f.mu.Lock()
	f.broadcasts = append(f.broadcasts, raw)
	call := len(f.broadcasts)
	f.mu.Unlock()

	if f.BroadcastFn != nil {
		return f.BroadcastFn(call, raw)
	}
	parsed, err := tx.ParseTransaction(raw)
	if err != nil {
		return tx.Hash{}, err
	}
	return parsed.ID(), nil
}

func (f *fakeNetwork) Sign(ctx context.Context, hashes [][]byte) ([][]byte, error) {
	f.mu.Lock()
	f.signCalls++
	call := f.signCalls
	f.mu.Unlock()

	if f.SignFn != nil {
		return f.SignFn(ctx, call, hashes)
	}
	return dummySigs(len(hashes)), nil
}

func (f *fakeNetwork) parsedBroadcasts(t *testing.T) []*tx.Transaction {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*tx.Transaction, len(f.broadcasts))
	for i, raw := range f.broadcasts {
		parsed, err := tx.ParseTransaction(raw)
		require.NoError(t, err)
		out[i] = parsed
	}
	return out
}

type harness struct {
	net     *fakeNetwork
	store   *pending.Store
	backend *pending.MemBackend
	coord   *Coordinator
	waits   []tx.Hash
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{net: &fakeNetwork{}, backend: pending.NewMemBackend()}
	h.store = pending.NewStore(h.backend, pending.WithLogger(zerolog.Nop()))
	t.Cleanup(func() { _ = h.store.Close() })

	waiter := CommitWaiterFunc(func(_ context.Context, id tx.Hash) error {
		h.waits = append(h.waits, id)
		return nil
	})
	all := append([]Option{WithCommitWaiter(waiter), WithLogger(zerolog.Nop())}, opts...)

	coord, err := NewCoordinator(Deps{
		Store:       h.store,
		Signer:      h.net,
		Broadcaster: h.net,
		Masses:      tx.LocalMassEstimator{},
		Rates:       tx.StaticFeeRate(decimal.NewFromInt(1)),
	}, all...)
	require.NoError(t, err)
	h.coord = coord
	return h
}

func testRequest(t *testing.T, amount string) Request {
	return Request{
		Key:            testKey,
		Available:      []tx.UnspentOutput{testUTXO(1, 100_000_000), testUTXO(2, 50_000_000)},
		OwnerPublicKey: schnorrKey(),
		SourceScript:   sourceScript(),
		Envelope:       testEnvelope(t, amount),
	}
}

func TestNewCoordinator_RequiresDeps(t *testing.T) {
	_, err := NewCoordinator(Deps{})
	assert.ErrorIs(t, err, tx.ErrNilParam)
}

func TestCoordinator_EstimateFee_Fresh(t *testing.T) {
	h := newHarness(t)
	req := testRequest(t, "5")

	fee, err := h.coord.EstimateFee(context.Background(), req)
	require.NoError(t, err)

	reveal, ok := fee.Parameters.(RevealTransactionFeeParameter)
	require.True(t, ok)
	redeem, err := NewRedeemScript(req.OwnerPublicKey, req.Envelope)
	require.NoError(t, err)
	revealMass, err := EstimateRevealMass(redeem, req.SourceScript)
	require.NoError(t, err)
	assert.Equal(t, revealMass, reveal.Sompi)
	assert.False(t, reveal.RevealOnly)

	// One input, commit output and change.
	commitMass := tx.Mass(tx.Shape{
		InputSignatureScriptLens: []int{66},
		SigOpCounts:              []uint8{1},
		OutputScriptLens:         []int{35, 34},
	})
	assert.Equal(t, commitMass+reveal.Sompi, fee.Sompi)
	assert.True(t, tx.SompiToKAS(fee.Sompi).Equal(fee.Amount))
}

func TestCoordinator_EstimateFee_ResumableIsRevealOnly(t *testing.T) {
	h := newHarness(t)
	req := testRequest(t, "5")
	require.NoError(t, h.store.Put(testKey, pending.Params{
		CommitTransactionID: tx.Hash{7},
		TargetOutputAmount:  20_005_000,
		Envelope:            req.Envelope.toPending(),
	}))

	fee, err := h.coord.EstimateFee(context.Background(), req)
	require.NoError(t, err)
	reveal := fee.Parameters.(RevealTransactionFeeParameter)
	assert.Equal(t, reveal.Sompi, fee.Sompi)
	assert.True(t, reveal.RevealOnly)
}

func TestCoordinator_Send_RevealOnlyFeeCannotPayFreshCommit(t *testing.T) {
	h := newHarness(t)
	req := testRequest(t, "5")
	require.NoError(t, h.store.Put(testKey, pending.Params{
		CommitTransactionID: tx.Hash{7},
		TargetOutputAmount:  20_005_000,
		Envelope:            req.Envelope.toPending(),
	}))

	fee, err := h.coord.EstimateFee(context.Background(), req)
	require.NoError(t, err)
	require.NoError(t, h.coord.Discard(testKey))

	_, err = h.coord.Send(context.Background(), req, fee)
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Empty(t, h.net.parsedBroadcasts(t))
	assert.Zero(t, h.net.signCalls)

	// A fresh estimate works.
	fee, err = h.coord.EstimateFee(context.Background(), req)
	require.NoError(t, err)
	res, err := h.coord.Send(context.Background(), req, fee)
	require.NoError(t, err)
	assert.False(t, res.Resumed)
	assert.Len(t, h.net.parsedBroadcasts(t), 2)
}

func TestCoordinator_Send_Fresh(t *testing.T) {
	h := newHarness(t)
	req := testRequest(t, "5")
	ctx := context.Background()

	fee, err := h.coord.EstimateFee(ctx, req)
	require.NoError(t, err)
	res, err := h.coord.Send(ctx, req, fee)
	require.NoError(t, err)

	assert.False(t, res.Resumed)
	assert.Equal(t, Completed, res.Phase)
	assert.Equal(t, 2, h.net.signCalls)

	txs := h.net.parsedBroadcasts(t)
	require.Len(t, txs, 2)
	commit, reveal := txs[0], txs[1]
	revealFee := fee.Parameters.(RevealTransactionFeeParameter).Sompi

	redeem, err := NewRedeemScript(req.OwnerPublicKey, req.Envelope)
	require.NoError(t, err)
	assert.Equal(t, commit.ID(), res.CommitTxID)
	assert.Equal(t, reveal.ID(), res.RevealTxID)
	assert.Equal(t, []tx.Hash{res.CommitTxID}, h.waits)

	// Commit: P2SH output worth reveal output + reveal fee, change back to source.
	require.Len(t, commit.Outputs, 2)
	assert.Equal(t, redeem.ScriptPublicKey(), commit.Outputs[0].ScriptPublicKey)
	assert.Equal(t, DefaultRevealOutputAmount+revealFee, commit.Outputs[0].Amount)
	assert.Equal(t, req.SourceScript, commit.Outputs[1].ScriptPublicKey)
	assert.Equal(t, uint64(100_000_000)-commit.Outputs[0].Amount-(fee.Sompi-revealFee), commit.Outputs[1].Amount)

	// Reveal: spends commit output 0 and reveals the redeem script.
	require.Len(t, reveal.Inputs, 1)
	assert.Equal(t, tx.Outpoint{TransactionID: res.CommitTxID, Index: 0}, reveal.Inputs[0].PreviousOutpoint)
	embedded, err := ExtractRedeemScript(reveal.Inputs[0].SignatureScript)
	require.NoError(t, err)
	assert.Equal(t, redeem.Bytes, embedded)
	require.Len(t, reveal.Outputs, 1)
	assert.Equal(t, DefaultRevealOutputAmount, reveal.Outputs[0].Amount)

	// Completed transfers leave nothing behind.
	_, ok := h.store.Get(testKey)
	assert.False(t, ok)
	require.NoError(t, h.store.Flush(ctx))
	stored, err := h.backend.LoadAll()
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestCoordinator_Send_UsesNetworkAssignedID(t *testing.T) {
	h := newHarness(t)
	networkID := tx.Hash{0xab, 0xcd}
	h.net.BroadcastFn = func(call int, raw []byte) (tx.Hash, error) {
		if call == 1 {
			return networkID, nil
		}
		return tx.Hash{}, nil
	}
	req := testRequest(t, "1")
	fee, err := h.coord.EstimateFee(context.Background(), req)
	require.NoError(t, err)

	res, err := h.coord.Send(context.Background(), req, fee)
	require.NoError(t, err)
	assert.Equal(t, networkID, res.CommitTxID)

	txs := h.net.parsedBroadcasts(t)
	assert.Equal(t, networkID, txs[1].Inputs[0].PreviousOutpoint.TransactionID)
	// Empty id from the network: the local id is used.
	assert.Equal(t, txs[1].ID(), res.RevealTxID)
}

func TestCoordinator_Send_ResumesMatchingRecord(t *testing.T) {
	h := newHarness(t)
	req := testRequest(t, "5")
	commitID := tx.Hash{0x11, 0x22}
	require.NoError(t, h.store.Put(testKey, pending.Params{
		CommitTransactionID: commitID,
		TargetOutputAmount:  20_004_321,
		Envelope:            req.Envelope.toPending(),
	}))

	fee, err := h.coord.EstimateFee(context.Background(), req)
	require.NoError(t, err)
	res, err := h.coord.Send(context.Background(), req, fee)
	require.NoError(t, err)

	assert.True(t, res.Resumed)
	assert.Equal(t, commitID, res.CommitTxID)
	assert.Equal(t, 1, h.net.signCalls)
	assert.Empty(t, h.waits)

	txs := h.net.parsedBroadcasts(t)
	require.Len(t, txs, 1)
	reveal := txs[0]
	assert.Equal(t, tx.Outpoint{TransactionID: commitID, Index: 0}, reveal.Inputs[0].PreviousOutpoint)
	assert.Equal(t, uint64(20_004_321)-fee.Sompi, reveal.Outputs[0].Amount)

	_, ok := h.store.Get(testKey)
	assert.False(t, ok)
}

func TestCoordinator_Send_MismatchedRecordFallsBack(t *testing.T) {
	h := newHarness(t)
	stale := testRequest(t, "9")
	require.NoError(t, h.store.Put(testKey, pending.Params{
		CommitTransactionID: tx.Hash{0x99},
		TargetOutputAmount:  20_000_500,
		Envelope:            stale.Envelope.toPending(),
	}))

	req := testRequest(t, "5")
	fee, err := h.coord.EstimateFee(context.Background(), req)
	require.NoError(t, err)
	// A stale record is priced as a fresh commit plus reveal.
	reveal := fee.Parameters.(RevealTransactionFeeParameter)
	assert.Greater(t, fee.Sompi, reveal.Sompi)

	res, err := h.coord.Send(context.Background(), req, fee)
	require.NoError(t, err)
	assert.False(t, res.Resumed)
	assert.NotEqual(t, tx.Hash{0x99}, res.CommitTxID)
	assert.Len(t, h.net.parsedBroadcasts(t), 2)
}

func TestCoordinator_Send_InvalidRecordFallsBack(t *testing.T) {
	h := newHarness(t)
	req := testRequest(t, "5")
	// A record with no commit id cannot be resumed.
	require.NoError(t, h.store.Put(testKey, pending.Params{Envelope: req.Envelope.toPending()}))

	_, err := h.coord.resumable(req)
	assert.ErrorIs(t, err, ErrInvalidIncompleteTransaction)

	fee, err := h.coord.EstimateFee(context.Background(), req)
	require.NoError(t, err)
	res, err := h.coord.Send(context.Background(), req, fee)
	require.NoError(t, err)
	assert.False(t, res.Resumed)
}

func TestCoordinator_Send_MissingRecordIsNotAnError(t *testing.T) {
	h := newHarness(t)
	req := testRequest(t, "5")

	_, err := h.coord.resumable(req)
	assert.ErrorIs(t, err, ErrIncompleteTransactionNotFound)

	fee, err := h.coord.EstimateFee(context.Background(), req)
	require.NoError(t, err)
	_, err = h.coord.Send(context.Background(), req, fee)
	assert.NoError(t, err)
}

func TestCoordinator_Send_FailedRevealKeepsRecord(t *testing.T) {
	h := newHarness(t)
	rejected := errors.New("orphan transaction")
	h.net.BroadcastFn = func(call int, raw []byte) (tx.Hash, error) {
		if call == 2 {
			return tx.Hash{}, rejected
		}
		parsed, err := tx.ParseTransaction(raw)
		require.NoError(t, err)
		return parsed.ID(), nil
	}
	req := testRequest(t, "5")
	ctx := context.Background()
	fee, err := h.coord.EstimateFee(ctx, req)
	require.NoError(t, err)

	_, err = h.coord.Send(ctx, req, fee)
	require.Error(t, err)
	assert.ErrorIs(t, err, rejected)
	assert.ErrorIs(t, err, tx.ErrBroadcastFailure)

	var pe *PhaseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, RevealSigned, pe.Phase)
	assert.True(t, pe.CommitBroadcast())

	var be *tx.BroadcastError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, "reveal", be.Phase)
	assert.NotEmpty(t, be.RawTx)

	rec, ok := h.store.Get(testKey)
	require.True(t, ok)
	assert.Equal(t, pe.CommitTxID, rec.CommitTransactionID)
	require.NoError(t, h.store.Flush(ctx))
	stored, err := h.backend.LoadAll()
	require.NoError(t, err)
	assert.Contains(t, stored, testKey)

	// Retrying resumes without a second commit.
	h.net.BroadcastFn = nil
	fee, err = h.coord.EstimateFee(ctx, req)
	require.NoError(t, err)
	res, err := h.coord.Send(ctx, req, fee)
	require.NoError(t, err)
	assert.True(t, res.Resumed)
	assert.Equal(t, pe.CommitTxID, res.CommitTxID)
	assert.Len(t, h.net.parsedBroadcasts(t), 3)
}

func TestCoordinator_Send_FailedCommitBroadcast(t *testing.T) {
	h := newHarness(t)
	h.net.BroadcastFn = func(int, []byte) (tx.Hash, error) {
		return tx.Hash{}, &tx.BroadcastError{RawTx: "ff", Err: errors.New("503")}
	}
	req := testRequest(t, "5")
	fee, err := h.coord.EstimateFee(context.Background(), req)
	require.NoError(t, err)

	_, err = h.coord.Send(context.Background(), req, fee)
	var be *tx.BroadcastError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, "commit", be.Phase)

	var pe *PhaseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, CommitSigned, pe.Phase)
	assert.False(t, pe.CommitBroadcast())
	assert.Zero(t, h.store.Len())
}

func TestCoordinator_Send_SigningCancelledBeforeCommit(t *testing.T) {
	h := newHarness(t)
	h.net.SignFn = func(context.Context, int, [][]byte) ([][]byte, error) {
		return nil, tx.ErrSigningCancelled
	}
	req := testRequest(t, "5")
	fee, err := h.coord.EstimateFee(context.Background(), req)
	require.NoError(t, err)

	_, err = h.coord.Send(context.Background(), req, fee)
	assert.ErrorIs(t, err, tx.ErrSigningCancelled)
	assert.Empty(t, h.net.parsedBroadcasts(t))
	assert.Zero(t, h.store.Len())
}

func TestCoordinator_Send_CancelledAfterSigning(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.net.SignFn = func(_ context.Context, _ int, hashes [][]byte) ([][]byte, error) {
		cancel()
		return dummySigs(len(hashes)), nil
	}
	req := testRequest(t, "5")
	fee, err := h.coord.EstimateFee(context.Background(), req)
	require.NoError(t, err)

	_, err = h.coord.Send(ctx, req, fee)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, h.net.parsedBroadcasts(t))
	assert.Zero(t, h.store.Len())
}

func TestCoordinator_Send_CancelledDuringWaitKeepsRecord(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	waiter := CommitWaiterFunc(func(ctx context.Context, _ tx.Hash) error {
		cancel()
		return FixedDelay(time.Hour).WaitForCommit(ctx, tx.Hash{})
	})
	h.coord = withOpts(t, h, WithCommitWaiter(waiter))

	req := testRequest(t, "5")
	fee, err := h.coord.EstimateFee(context.Background(), req)
	require.NoError(t, err)

	_, err = h.coord.Send(ctx, req, fee)
	assert.ErrorIs(t, err, context.Canceled)

	var pe *PhaseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, CommitBroadcast, pe.Phase)

	rec, ok := h.store.Get(testKey)
	require.True(t, ok)
	assert.Equal(t, pe.CommitTxID, rec.CommitTransactionID)
	assert.Len(t, h.net.parsedBroadcasts(t), 1)
}

func TestCoordinator_Send_RecordPersistedBeforeWait(t *testing.T) {
	h := newHarness(t)
	var seen bool
	waiter := CommitWaiterFunc(func(_ context.Context, id tx.Hash) error {
		rec, ok := h.store.Get(testKey)
		seen = ok && rec.CommitTransactionID == id
		return nil
	})
	h.coord = withOpts(t, h, WithCommitWaiter(waiter), WithClock(func() time.Time {
		return time.Unix(1_700_000_000, 0)
	}))

	req := testRequest(t, "5")
	fee, err := h.coord.EstimateFee(context.Background(), req)
	require.NoError(t, err)
	_, err = h.coord.Send(context.Background(), req, fee)
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestCoordinator_Send_RequiresRevealParameter(t *testing.T) {
	h := newHarness(t)
	_, err := h.coord.Send(context.Background(), testRequest(t, "5"), tx.NewFee(1000, 1000, nil))
	assert.ErrorIs(t, err, ErrInvalidRequest)

	req := testRequest(t, "5")
	req.Key = pending.Key{}
	_, err = h.coord.Send(context.Background(), req, tx.Fee{})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestCoordinator_Send_InsufficientFunds(t *testing.T) {
	h := newHarness(t)
	req := testRequest(t, "5")
	req.Available = []tx.UnspentOutput{testUTXO(1, 1_000_000)}

	fee, err := h.coord.EstimateFee(context.Background(), req)
	require.NoError(t, err)
	_, err = h.coord.Send(context.Background(), req, fee)
	assert.ErrorIs(t, err, tx.ErrInsufficientFunds)
	assert.Empty(t, h.net.parsedBroadcasts(t))
}

func TestCoordinator_Discard(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.Put(testKey, pending.Params{CommitTransactionID: tx.Hash{1}}))

	_, ok := h.coord.Pending(testKey)
	require.True(t, ok)
	require.NoError(t, h.coord.Discard(testKey))
	_, ok = h.coord.Pending(testKey)
	assert.False(t, ok)
}

func TestFixedDelay(t *testing.T) {
	start := time.Now()
	require.NoError(t, FixedDelay(10*time.Millisecond).WaitForCommit(context.Background(), tx.Hash{}))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, FixedDelay(time.Hour).WaitForCommit(ctx, tx.Hash{}), context.Canceled)
	assert.ErrorIs(t, FixedDelay(0).WaitForCommit(ctx, tx.Hash{}), context.Canceled)
	assert.NoError(t, FixedDelay(0).WaitForCommit(context.Background(), tx.Hash{}))
}

func TestTransfer_Advance(t *testing.T) {
	tr := &transfer{log: zerolog.Nop()}
	require.NoError(t, tr.advance(CommitBuilt))
	assert.ErrorIs(t, tr.advance(RevealBuilt), ErrInvalidTransition)
	require.NoError(t, tr.advance(CommitSigned))

	resumed := &transfer{log: zerolog.Nop()}
	require.NoError(t, resumed.advance(RevealBuilt))

	done := &transfer{phase: Completed, log: zerolog.Nop()}
	assert.ErrorIs(t, done.advance(Completed+1), ErrInvalidTransition)
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "commit broadcast", CommitBroadcast.String())
	assert.Equal(t, "Phase(42)", Phase(42).String())
}

func withOpts(t *testing.T, h *harness, opts ...Option) *Coordinator {
	t.Helper()
	all := append([]Option{WithLogger(zerolog.Nop())}, opts...)
	coord, err := NewCoordinator(Deps{
		Store:       h.store,
		Signer:      h.net,
		Broadcaster: h.net,
		Masses:      tx.LocalMassEstimator{},
		Rates:       tx.StaticFeeRate(decimal.NewFromInt(1)),
	}, all...)
	require.NoError(t, err)
	return coord
}
