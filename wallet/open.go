package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bitfsorg/libkaspa-go/config"
	"github.com/bitfsorg/libkaspa-go/internal/log"
	"github.com/bitfsorg/libkaspa-go/krc20"
	"github.com/bitfsorg/libkaspa-go/network"
	"github.com/bitfsorg/libkaspa-go/pending"
)

// Open assembles a Service from cfg: it configures logging, connects the
// REST client, and opens the pending store under cfg.DataDir, loading any
// transfers left unfinished by a previous run. Unreadable pending records
// are logged and skipped.
func Open(ctx context.Context, cfg config.Config, owner Owner, opts ...Option) (*Service, error) {
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if err := log.Init(cfg.LogLevel, cfg.LogJSON, cfg.LogFile); err != nil {
		return nil, fmt.Errorf("wallet: init logging: %w", err)
	}

	params, err := GetNetwork(cfg.Network)
	if err != nil {
		return nil, err
	}

	netCfg, err := network.ResolveConfig(&network.Config{
		URL:     cfg.APIURL,
		Timeout: time.Duration(cfg.HTTPTimeout),
		Retries: cfg.HTTPRetries,
	}, nil, cfg.Network)
	if err != nil {
		return nil, err
	}
	// The config file always carries a retry count, and zero means none.
	netCfg.Retries = cfg.HTTPRetries
	client := network.NewClient(*netCfg)

	backend, err := pending.OpenBoltBackend(cfg.PendingDBPath())
	if err != nil {
		return nil, err
	}
	store := pending.NewStore(backend)
	if err := store.Load(ctx); err != nil {
		if !errors.Is(err, pending.ErrCorruptRecord) {
			_ = store.Close()
			return nil, fmt.Errorf("wallet: load pending transfers: %w", err)
		}
		log.Wallet.Warn().Err(err).Msg("skipped unreadable pending records")
	}

	svc, err := NewService(ServiceConfig{
		Owner:              owner,
		Network:            params,
		CommitWaiter:       krc20.FixedDelay(cfg.RevealDelay),
		RevealOutputAmount: cfg.RevealOutputAmount,
	}, client, store, opts...)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	log.Wallet.Info().Str("network", params.Name).Str("api", netCfg.URL).
		Int("pending", store.Len()).Msg("wallet opened")
	return svc, nil
}
