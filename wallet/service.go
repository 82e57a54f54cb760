// Package wallet is the entry point for sending from a single Kaspa address.
// It keeps the address's UTXO snapshot and current fee rate, and dispatches
// transfers to the coin builder or the KRC-20 commit/reveal coordinator
// depending on the kind of amount being sent.
package wallet

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/bitfsorg/libkaspa-go/internal/log"
	"github.com/bitfsorg/libkaspa-go/krc20"
	"github.com/bitfsorg/libkaspa-go/network"
	"github.com/bitfsorg/libkaspa-go/pending"
	"github.com/bitfsorg/libkaspa-go/tx"
	"github.com/bitfsorg/libkaspa-go/txscript"
)

// Owner identifies a wallet and how it signs.
type Owner struct {
	WalletID  string
	PublicKey []byte
	Signer    tx.Signer
}

// ServiceConfig holds the per-wallet settings of a Service.
type ServiceConfig struct {
	Owner   Owner
	Network *NetworkParams
	// CommitWaiter overrides the wait between commit and reveal; nil keeps
	// krc20's fixed delay.
	CommitWaiter krc20.CommitWaiter
	// RevealOutputAmount overrides what a reveal returns; zero keeps the default.
	RevealOutputAmount uint64
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used by the service and its builders.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// SendResult reports a broadcast transfer. For token transfers TransactionID
// is the reveal and Token carries both transaction ids.
type SendResult struct {
	TransactionID tx.Hash
	Token         *krc20.Result
}

// Service sends coins and tokens from one address.
type Service struct {
	walletID string
	params   *NetworkParams
	address  string
	script   []byte
	pubKey   []byte

	net    network.Service
	signer tx.Signer
	store  *pending.Store

	utxos   tx.UTXOSet
	rates   rateCache
	builder *tx.Builder
	tokens  *krc20.Coordinator
	log     zerolog.Logger
}

// NewService builds a Service over net and store. The store is owned by the
// service afterwards and closed by Close.
func NewService(cfg ServiceConfig, net network.Service, store *pending.Store, opts ...Option) (*Service, error) {
	if cfg.Owner.WalletID == "" {
		return nil, fmt.Errorf("%w: wallet id", tx.ErrNilParam)
	}
	if cfg.Owner.Signer == nil || net == nil || store == nil {
		return nil, fmt.Errorf("%w: signer, network and store are required", tx.ErrNilParam)
	}
	params := cfg.Network
	if params == nil {
		params = &MainNet
	}

	script, err := txscript.PubKeyScript(cfg.Owner.PublicKey)
	if err != nil {
		return nil, err
	}
	kind := txscript.KindPubKey
	if len(cfg.Owner.PublicKey) == txscript.ECDSAPubKeyLen {
		kind = txscript.KindPubKeyECDSA
	}
	addr, err := txscript.NewAddress(params.AddressPrefix, kind, cfg.Owner.PublicKey)
	if err != nil {
		return nil, err
	}

	s := &Service{
		walletID: cfg.Owner.WalletID,
		params:   params,
		address:  addr.String(),
		script:   script,
		pubKey:   append([]byte(nil), cfg.Owner.PublicKey...),
		net:      net,
		signer:   cfg.Owner.Signer,
		store:    store,
		log:      log.Wallet,
	}
	s.rates.src = net
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With().Str("address", s.address).Logger()
	s.builder = tx.NewBuilder(script).WithLogger(s.log)

	coordOpts := []krc20.Option{krc20.WithLogger(s.log)}
	if cfg.CommitWaiter != nil {
		coordOpts = append(coordOpts, krc20.WithCommitWaiter(cfg.CommitWaiter))
	}
	if cfg.RevealOutputAmount > 0 {
		coordOpts = append(coordOpts, krc20.WithRevealOutputAmount(cfg.RevealOutputAmount))
	}
	s.tokens, err = krc20.NewCoordinator(krc20.Deps{
		Store:       store,
		Signer:      cfg.Owner.Signer,
		Broadcaster: net,
		Masses:      net,
		Rates:       &s.rates,
	}, coordOpts...)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Address returns the wallet's bech32 address.
func (s *Service) Address() string { return s.address }

// Network returns the network the wallet is on.
func (s *Service) Network() *NetworkParams { return s.params }

// Close flushes and closes the pending store.
func (s *Service) Close() error {
	return s.store.Close()
}

// Refresh replaces the UTXO snapshot and fee rate with fresh values from the
// network. Both are fetched concurrently; on error neither is replaced.
func (s *Service) Refresh(ctx context.Context) error {
	var (
		utxos []tx.UnspentOutput
		rate  decimal.Decimal
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		utxos, err = s.net.FetchUnspentOutputs(gctx, s.address)
		return err
	})
	g.Go(func() error {
		var err error
		rate, err = s.net.CurrentFeeRate(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("wallet: refresh: %w", err)
	}

	s.utxos.Replace(utxos)
	s.rates.set(rate)
	s.log.Debug().Int("utxos", len(utxos)).Str("fee_rate", rate.String()).Msg("refreshed")
	return nil
}

// AvailableAmount returns the KAS a single transaction can spend from the
// current snapshot.
func (s *Service) AvailableAmount() decimal.Decimal {
	return tx.AvailableAmount(s.utxos.Spendable())
}

// EstimateFee prices t against the current snapshot.
func (s *Service) EstimateFee(ctx context.Context, t Transfer) (tx.Fee, error) {
	if err := s.checkTransfer(t); err != nil {
		return tx.Fee{}, err
	}
	switch a := t.Amount.(type) {
	case CoinAmount:
		dest, sompi, err := s.coinTarget(t.Destination, a)
		if err != nil {
			return tx.Fee{}, err
		}
		return s.builder.EstimateFee(ctx, s.utxos.Snapshot(), dest, sompi, s.net, &s.rates)
	case TokenAmount:
		req, err := s.tokenRequest(t.Destination, a)
		if err != nil {
			return tx.Fee{}, err
		}
		return s.tokens.EstimateFee(ctx, req)
	default:
		return tx.Fee{}, fmt.Errorf("%w: %T", ErrUnsupportedAmount, t.Amount)
	}
}

// Send signs and broadcasts t with fee from EstimateFee. A token transfer
// whose commit is already pending resumes at the reveal.
func (s *Service) Send(ctx context.Context, t Transfer, fee tx.Fee) (*SendResult, error) {
	if err := s.checkTransfer(t); err != nil {
		return nil, err
	}
	switch a := t.Amount.(type) {
	case CoinAmount:
		dest, sompi, err := s.coinTarget(t.Destination, a)
		if err != nil {
			return nil, err
		}
		id, err := s.sendCoin(ctx, dest, sompi, fee)
		if err != nil {
			return nil, err
		}
		return &SendResult{TransactionID: id}, nil
	case TokenAmount:
		req, err := s.tokenRequest(t.Destination, a)
		if err != nil {
			return nil, err
		}
		res, err := s.tokens.Send(ctx, req, fee)
		if err != nil {
			return nil, err
		}
		return &SendResult{TransactionID: res.RevealTxID, Token: res}, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedAmount, t.Amount)
	}
}

func (s *Service) sendCoin(ctx context.Context, dest []byte, sompi uint64, fee tx.Fee) (tx.Hash, error) {
	u, hashes, err := s.builder.BuildForSign(s.utxos.Snapshot(), dest, sompi, fee.Sompi)
	if err != nil {
		return tx.Hash{}, err
	}
	sigs, err := s.signer.Sign(ctx, hashes)
	if err != nil {
		return tx.Hash{}, err
	}
	raw, err := s.builder.BuildForSend(u, sigs)
	if err != nil {
		return tx.Hash{}, err
	}
	if err := ctx.Err(); err != nil {
		return tx.Hash{}, err
	}

	id, err := s.net.Broadcast(ctx, raw)
	if err != nil {
		var be *tx.BroadcastError
		if !errors.As(err, &be) {
			be = &tx.BroadcastError{RawTx: hex.EncodeToString(raw), Err: err}
		}
		be.Phase = "transfer"
		return tx.Hash{}, be
	}
	if id.IsZero() {
		signed, err := tx.ParseTransaction(raw)
		if err != nil {
			return tx.Hash{}, err
		}
		id = signed.ID()
	}
	s.log.Info().Stringer("txid", id).Uint64("sompi", sompi).Msg("transfer broadcast")
	return id, nil
}

// PendingTokenTransfer returns the commit awaiting a reveal for contract, if any.
func (s *Service) PendingTokenTransfer(contract string) (pending.Params, bool) {
	return s.tokens.Pending(pending.Key{WalletID: s.walletID, ContractAddress: contract})
}

// DiscardPending drops the pending commit for contract so the next transfer
// starts with a fresh commit.
func (s *Service) DiscardPending(contract string) error {
	return s.tokens.Discard(pending.Key{WalletID: s.walletID, ContractAddress: contract})
}

func (s *Service) checkTransfer(t Transfer) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if s.utxos.UpdatedAt().IsZero() {
		return ErrNotRefreshed
	}
	return nil
}

// destination decodes addr and checks it belongs to the wallet's network.
func (s *Service) destination(addr string) ([]byte, error) {
	a, err := txscript.DecodeAddress(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTransfer, err)
	}
	if a.Prefix != s.params.AddressPrefix {
		return nil, fmt.Errorf("%w: %s address on %s", ErrInvalidTransfer, a.Prefix, s.params.Name)
	}
	return txscript.PayToAddrScript(a)
}

func (s *Service) coinTarget(addr string, a CoinAmount) ([]byte, uint64, error) {
	dest, err := s.destination(addr)
	if err != nil {
		return nil, 0, err
	}
	sompi, err := tx.KASToSompi(a.Value)
	if err != nil {
		return nil, 0, err
	}
	return dest, sompi, nil
}

func (s *Service) tokenRequest(addr string, a TokenAmount) (krc20.Request, error) {
	if _, err := s.destination(addr); err != nil {
		return krc20.Request{}, err
	}
	env, err := krc20.NewTransferEnvelope(a.Ticker, addr, a.Value, a.Decimals)
	if err != nil {
		return krc20.Request{}, err
	}
	return krc20.Request{
		Key:            pending.Key{WalletID: s.walletID, ContractAddress: a.ContractAddress},
		Available:      s.utxos.Snapshot(),
		OwnerPublicKey: s.pubKey,
		SourceScript:   s.script,
		Envelope:       env,
	}, nil
}

// rateCache serves the fee rate from the last Refresh, asking the network
// only when no refresh has happened yet.
type rateCache struct {
	src  tx.FeeRateSource
	mu   sync.RWMutex
	rate decimal.Decimal
	ok   bool
}

func (r *rateCache) set(rate decimal.Decimal) {
	r.mu.Lock()
	r.rate, r.ok = rate, true
	r.mu.Unlock()
}

// CurrentFeeRate implements tx.FeeRateSource.
func (r *rateCache) CurrentFeeRate(ctx context.Context) (decimal.Decimal, error) {
	r.mu.RLock()
	rate, ok := r.rate, r.ok
	r.mu.RUnlock()
	if ok {
		return rate, nil
	}
	return r.src.CurrentFeeRate(ctx)
}
