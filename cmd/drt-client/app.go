package main

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/quantumauth-io/quantum-go-utils/log"

	clientconfig "github.com/relieftoken/drt-client/cmd/drt-client/config"
	"github.com/relieftoken/drt-client/internal/apperr"
	"github.com/relieftoken/drt-client/internal/chains"
	"github.com/relieftoken/drt-client/internal/history"
	"github.com/relieftoken/drt-client/internal/readcache"
	"github.com/relieftoken/drt-client/internal/session"
	"github.com/relieftoken/drt-client/internal/txflow"
	"github.com/relieftoken/drt-client/internal/wallet"
)

// app holds the wired core. Without a wallet it still serves observer reads.
type app struct {
	chains   *chains.Service
	provider *chains.Provider
	session  *session.Manager
	mediator *txflow.Mediator
	history  *history.Querier
	metrics  *prometheus.Registry
}

func newApp(ctx context.Context, cfg *clientconfig.Config, withWallet bool) (*app, error) {
	svc, err := chains.NewService(cfg.EthNetworks, chains.DialEthclient)
	if err != nil {
		return nil, err
	}

	provider := chains.NewProvider(nil, svc)
	if withWallet {
		provider = chains.NewOpeningProvider(func(ctx context.Context) (wallet.Transport, error) {
			return openWallet(ctx, cfg, svc)
		}, svc)
		_, err := provider.Transport(ctx)
		switch {
		case err == nil:
		case errors.Is(err, apperr.ErrNoWallet), errors.Is(err, apperr.ErrNetwork):
			log.Warn("no wallet available yet, will retry on connect", "kind", cfg.Wallet.Kind, "error", err)
		default:
			_ = svc.Close()
			return nil, err
		}
	}

	cache, err := readcache.New(cfg.Cache.Size)
	if err != nil {
		_ = provider.Close()
		_ = svc.Close()
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	manager := session.New(provider, cache, cfg.Session)
	return &app{
		chains:   svc,
		provider: provider,
		session:  manager,
		mediator: txflow.NewMediator(manager, cache, txflow.NewMetrics(reg)),
		history:  history.New(cfg.History),
		metrics:  reg,
	}, nil
}

// openWallet opens the configured wallet. It runs again on every connect until it succeeds.
func openWallet(ctx context.Context, cfg *clientconfig.Config, svc *chains.Service) (wallet.Transport, error) {
	var node wallet.ChainIDReader
	if network, err := svc.DefaultNetwork(); err == nil {
		dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		backend, err := svc.BackendFor(dialCtx, network)
		cancel()
		if err != nil {
			// The keystore reads the selected chain from the node.
			if strings.EqualFold(strings.TrimSpace(cfg.Wallet.Kind), wallet.KindKeystore) {
				return nil, err
			}
			log.Warn("default network unreachable", "network", network.NetworkName, "error", err)
		} else {
			node = backend
		}
	}

	transport, err := wallet.Open(ctx, cfg.Wallet, node)
	if err != nil {
		return nil, err
	}
	return transport, nil
}

func (a *app) Close() {
	a.mediator.Close()
	a.session.Close()
	if err := a.provider.Close(); err != nil {
		log.Error("wallet close failed", "error", err)
	}
	if err := a.chains.Close(); err != nil {
		log.Error("chain backends close failed", "error", err)
	}
}
