package krc20

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/bitfsorg/libkaspa-go/internal/log"
	"github.com/bitfsorg/libkaspa-go/pending"
	"github.com/bitfsorg/libkaspa-go/tx"
)

// maxFeeIterations bounds the commit fee/selection fixed-point loop.
const maxFeeIterations = 8

// Deps are the collaborators a Coordinator drives.
type Deps struct {
	Store       *pending.Store
	Signer      tx.Signer
	Broadcaster tx.Broadcaster
	Masses      tx.MassEstimator
	Rates       tx.FeeRateSource
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithCommitWaiter replaces the wait between commit and reveal.
func WithCommitWaiter(w CommitWaiter) Option {
	return func(c *Coordinator) { c.waiter = w }
}

// WithRevealOutputAmount sets what the reveal returns to the sender.
func WithRevealOutputAmount(sompi uint64) Option {
	return func(c *Coordinator) { c.revealOutput = sompi }
}

// WithLogger sets the coordinator's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

// WithClock overrides the time source used to stamp pending records.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// Coordinator runs token transfers through the commit/reveal protocol,
// persisting the commit so an interrupted transfer resumes at the reveal.
type Coordinator struct {
	deps         Deps
	waiter       CommitWaiter
	revealOutput uint64
	log          zerolog.Logger
	now          func() time.Time
}

// NewCoordinator returns a coordinator using deps.
func NewCoordinator(deps Deps, opts ...Option) (*Coordinator, error) {
	switch {
	case deps.Store == nil:
		return nil, fmt.Errorf("%w: pending store", tx.ErrNilParam)
	case deps.Signer == nil:
		return nil, fmt.Errorf("%w: signer", tx.ErrNilParam)
	case deps.Broadcaster == nil:
		return nil, fmt.Errorf("%w: broadcaster", tx.ErrNilParam)
	case deps.Masses == nil:
		return nil, fmt.Errorf("%w: mass estimator", tx.ErrNilParam)
	case deps.Rates == nil:
		return nil, fmt.Errorf("%w: fee rate source", tx.ErrNilParam)
	}
	c := &Coordinator{
		deps:         deps,
		waiter:       FixedDelay(DefaultCommitDelay),
		revealOutput: DefaultRevealOutputAmount,
		log:          log.KRC20,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Request describes one token transfer.
type Request struct {
	Key       pending.Key
	Available []tx.UnspentOutput
	// OwnerPublicKey is the sender's 32-byte Schnorr or 33-byte ECDSA key.
	OwnerPublicKey []byte
	// SourceScript locks the sender's own outputs; commit change and the
	// reveal output go back to it.
	SourceScript []byte
	Envelope     Envelope
}

func (r Request) validate() error {
	if err := r.Key.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if len(r.SourceScript) == 0 {
		return fmt.Errorf("%w: source script", ErrInvalidRequest)
	}
	return nil
}

// Result reports a completed transfer.
type Result struct {
	CommitTxID tx.Hash
	RevealTxID tx.Hash
	// Resumed is true when a previously broadcast commit was reused.
	Resumed bool
	Phase   Phase
}

// resumable returns the pending record for req when it describes the same
// transfer.
func (c *Coordinator) resumable(req Request) (pending.Params, error) {
	rec, ok := c.deps.Store.Get(req.Key)
	if !ok {
		return pending.Params{}, ErrIncompleteTransactionNotFound
	}
	if err := rec.Validate(); err != nil {
		return pending.Params{}, fmt.Errorf("%w: %w", ErrInvalidIncompleteTransaction, err)
	}
	if !envelopeFromPending(rec.Envelope).Equal(req.Envelope) {
		return pending.Params{}, fmt.Errorf("%w: pending %s %s to %s does not match request",
			ErrInvalidIncompleteTransaction, rec.Envelope.Amount, rec.Envelope.Ticker, rec.Envelope.Recipient)
	}
	return rec, nil
}

// Pending returns the pending commit for key, if any.
func (c *Coordinator) Pending(key pending.Key) (pending.Params, bool) {
	return c.deps.Store.Get(key)
}

// Discard drops the pending commit for key. Funds locked by an already
// broadcast commit stay unspent until a transfer reveals them.
func (c *Coordinator) Discard(key pending.Key) error {
	if err := c.deps.Store.Remove(key); err != nil {
		return err
	}
	c.log.Info().Str("key", key.String()).Msg("pending token transfer discarded")
	return nil
}

// EstimateFee prices req. When a matching commit is pending only the reveal
// is priced; otherwise the fee covers commit and reveal, with the reveal's
// share in Parameters as a RevealTransactionFeeParameter.
func (c *Coordinator) EstimateFee(ctx context.Context, req Request) (tx.Fee, error) {
	if err := req.validate(); err != nil {
		return tx.Fee{}, err
	}
	redeem, err := NewRedeemScript(req.OwnerPublicKey, req.Envelope)
	if err != nil {
		return tx.Fee{}, err
	}
	rate, err := c.deps.Rates.CurrentFeeRate(ctx)
	if err != nil {
		return tx.Fee{}, fmt.Errorf("fee rate: %w", err)
	}
	reveal, err := RevealFeeParameter(redeem, req.SourceScript, rate)
	if err != nil {
		return tx.Fee{}, err
	}

	if _, err := c.resumable(req); err == nil {
		reveal.RevealOnly = true
		return tx.NewFee(reveal.Sompi, reveal.Mass, reveal), nil
	}

	target, err := CommitOutputAmount(c.revealOutput, reveal.Sompi)
	if err != nil {
		return tx.Fee{}, err
	}
	var commitFee, mass uint64
	for i := 0; i < maxFeeIterations; i++ {
		u, err := commitForMass(req.Available, redeem, target, commitFee, req.SourceScript)
		if err != nil {
			return tx.Fee{}, err
		}
		dummy, err := u.FinalizeDummy()
		if err != nil {
			return tx.Fee{}, err
		}
		mass, err = c.deps.Masses.EstimateMass(ctx, dummy.Serialize())
		if err != nil {
			return tx.Fee{}, fmt.Errorf("estimate mass: %w", err)
		}
		next := tx.FeeForMass(mass, rate)
		if next == commitFee {
			break
		}
		commitFee = next
	}
	c.log.Debug().Uint64("commit_fee", commitFee).Uint64("reveal_fee", reveal.Sompi).Msg("estimated token transfer fee")
	return tx.NewFee(commitFee+reveal.Sompi, mass+reveal.Mass, reveal), nil
}

// Send runs req to completion using fee from EstimateFee. A matching pending
// commit is resumed from RevealBuilt; a missing or mismatched one falls
// back to a fresh commit, which needs a fee estimated without that commit.
func (c *Coordinator) Send(ctx context.Context, req Request, fee tx.Fee) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	reveal, ok := fee.Parameters.(RevealTransactionFeeParameter)
	if !ok {
		return nil, fmt.Errorf("%w: fee carries no reveal fee parameter", ErrInvalidRequest)
	}
	redeem, err := NewRedeemScript(req.OwnerPublicKey, req.Envelope)
	if err != nil {
		return nil, err
	}

	logger := c.log.With().Str("key", req.Key.String()).Logger()
	t := &transfer{log: logger}
	res := &Result{}

	rec, err := c.resumable(req)
	switch {
	case err == nil:
		logger.Info().Stringer("commit", rec.CommitTransactionID).Msg("resuming token transfer at reveal")
		res.Resumed = true
		res.CommitTxID = rec.CommitTransactionID
	case errors.Is(err, ErrIncompleteTransactionNotFound):
		logger.Debug().Msg("no pending commit, starting fresh")
	default:
		logger.Warn().Err(err).Msg("pending commit not reusable, starting fresh")
	}

	target := rec.TargetOutputAmount
	if !res.Resumed {
		if reveal.RevealOnly {
			return nil, fmt.Errorf("%w: fee was estimated for a pending reveal and does not cover a commit", ErrInvalidRequest)
		}
		if fee.Sompi < reveal.Sompi {
			return nil, fmt.Errorf("%w: fee %d below reveal fee %d", ErrInvalidRequest, fee.Sompi, reveal.Sompi)
		}
		target, err = CommitOutputAmount(c.revealOutput, reveal.Sompi)
		if err != nil {
			return nil, err
		}
		res.CommitTxID, err = c.commit(ctx, t, req, redeem, target, fee.Sompi-reveal.Sompi)
		if err != nil {
			return nil, err
		}
	}

	res.RevealTxID, err = c.reveal(ctx, t, req, redeem, res.CommitTxID, target, reveal.Sompi)
	if err != nil {
		return nil, err
	}
	res.Phase = t.phase
	return res, nil
}

func (c *Coordinator) commit(ctx context.Context, t *transfer, req Request, redeem RedeemScript, target, commitFee uint64) (tx.Hash, error) {
	fail := func(err error) (tx.Hash, error) {
		return tx.Hash{}, &PhaseError{Phase: t.phase, Err: err}
	}

	u, hashes, err := BuildCommit(req.Available, redeem, target, commitFee, req.SourceScript)
	if err != nil {
		return fail(err)
	}
	if err := t.advance(CommitBuilt); err != nil {
		return fail(err)
	}

	sigs, err := c.deps.Signer.Sign(ctx, hashes)
	if err != nil {
		return fail(err)
	}
	signed, err := u.Finalize(sigs)
	if err != nil {
		return fail(err)
	}
	if err := t.advance(CommitSigned); err != nil {
		return fail(err)
	}
	// Last point at which cancelling leaves nothing behind.
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	id, err := c.broadcast(ctx, "commit", signed)
	if err != nil {
		return fail(err)
	}
	if err := t.advance(CommitBroadcast); err != nil {
		return fail(err)
	}

	params := pending.Params{
		CommitTransactionID: id,
		TargetOutputAmount:  target,
		Envelope:            req.Envelope.toPending(),
		CreatedAt:           c.now().UTC(),
	}
	if err := c.deps.Store.Put(req.Key, params); err != nil {
		t.log.Error().Err(err).Stringer("commit", id).Msg("persist pending commit")
	}

	if err := c.waiter.WaitForCommit(ctx, id); err != nil {
		return tx.Hash{}, &PhaseError{Phase: t.phase, CommitTxID: id, Err: err}
	}
	return id, nil
}

func (c *Coordinator) reveal(ctx context.Context, t *transfer, req Request, redeem RedeemScript, commitID tx.Hash, target, revealFee uint64) (tx.Hash, error) {
	fail := func(err error) (tx.Hash, error) {
		return tx.Hash{}, &PhaseError{Phase: t.phase, CommitTxID: commitID, Err: err}
	}

	u, hashes, err := BuildReveal(commitID, redeem, target, revealFee, req.SourceScript)
	if err != nil {
		return fail(err)
	}
	if err := t.advance(RevealBuilt); err != nil {
		return fail(err)
	}

	sigs, err := c.deps.Signer.Sign(ctx, hashes)
	if err != nil {
		return fail(err)
	}
	signed, err := u.Finalize(sigs)
	if err != nil {
		return fail(err)
	}
	if err := t.advance(RevealSigned); err != nil {
		return fail(err)
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	id, err := c.broadcast(ctx, "reveal", signed)
	if err != nil {
		return fail(err)
	}
	if err := t.advance(RevealBroadcast); err != nil {
		return fail(err)
	}

	if err := c.deps.Store.Remove(req.Key); err != nil {
		t.log.Error().Err(err).Msg("remove pending commit")
	}
	if err := t.advance(Completed); err != nil {
		return fail(err)
	}
	t.log.Info().Stringer("commit", commitID).Stringer("reveal", id).Msg("token transfer completed")
	return id, nil
}

// broadcast submits signed and returns its id, falling back to the locally
// computed id when the network does not return one. Failures are reported
// as *tx.BroadcastError carrying the raw transaction.
func (c *Coordinator) broadcast(ctx context.Context, phase string, signed *tx.Transaction) (tx.Hash, error) {
	raw := signed.Serialize()
	c.log.Debug().Str("phase", phase).Str("raw", signed.Hex()).Msg("broadcasting")

	id, err := c.deps.Broadcaster.Broadcast(ctx, raw)
	if err != nil {
		var be *tx.BroadcastError
		if errors.As(err, &be) {
			be.Phase = phase
			return tx.Hash{}, be
		}
		return tx.Hash{}, &tx.BroadcastError{Phase: phase, RawTx: signed.Hex(), Err: err}
	}
	if id.IsZero() {
		id = signed.ID()
	}
	c.log.Info().Str("phase", phase).Stringer("txid", id).Msg("broadcast accepted")
	return id, nil
}
