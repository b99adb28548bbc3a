package chains

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/relieftoken/drt-client/internal/apperr"
	"github.com/relieftoken/drt-client/internal/wallet"
)

// Opener opens the wallet transport. A failure marked apperr.ErrNoWallet means no wallet is
// reachable yet.
type Opener func(ctx context.Context) (wallet.Transport, error)

// Provider pairs the wallet transport with the configured networks. Every Connect yields a
// Connection pinned to the chain the wallet reported at that moment.
//
// Wallet events reach subscribers through the provider's own feed, so a subscription taken
// before any wallet was found keeps working once one is opened.
type Provider struct {
	chains *Service
	open   Opener

	mu        sync.Mutex
	transport wallet.Transport
	relay     event.Subscription

	feed  event.Feed
	scope event.SubscriptionScope
}

// NewProvider uses a fixed transport. A nil transport means no wallet, for good.
func NewProvider(transport wallet.Transport, chains *Service) *Provider {
	p := &Provider{chains: chains}
	if transport != nil {
		p.attach(transport)
	}
	return p
}

// NewOpeningProvider opens the transport on first use and retries on every Connect until a
// wallet answers.
func NewOpeningProvider(open Opener, chains *Service) *Provider {
	return &Provider{chains: chains, open: open}
}

func (p *Provider) Chains() *Service { return p.chains }

// Available reports whether a transport is currently held.
func (p *Provider) Available() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.transport != nil
}

// Subscribe follows wallet events in emission order, whether or not a wallet exists yet.
func (p *Provider) Subscribe(sink chan<- wallet.Event) event.Subscription {
	return p.scope.Track(p.feed.Subscribe(sink))
}

// Transport returns the held transport, opening one when none is held.
func (p *Provider) Transport(ctx context.Context) (wallet.Transport, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.transport != nil {
		return p.transport, nil
	}
	if p.open == nil {
		return nil, apperr.NoWallet(nil)
	}
	t, err := p.open(ctx)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, apperr.NoWallet(nil)
	}
	p.attachLocked(t)
	log.Info("wallet transport opened", "transport", t.Name())
	return t, nil
}

func (p *Provider) attach(t wallet.Transport) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attachLocked(t)
}

// attachLocked forwards the transport's events to the provider feed. Caller holds mu.
func (p *Provider) attachLocked(t wallet.Transport) {
	p.transport = t

	events := make(chan wallet.Event, 16)
	sub := t.Subscribe(events)
	p.relay = event.NewSubscription(func(quit <-chan struct{}) error {
		defer sub.Unsubscribe()
		for {
			select {
			case ev := <-events:
				p.feed.Send(ev)
			case err := <-sub.Err():
				return err
			case <-quit:
				return nil
			}
		}
	})
}

// Close stops relaying events and closes the transport.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.relay != nil {
		p.relay.Unsubscribe()
		p.relay = nil
	}
	p.scope.Close()
	if p.transport == nil {
		return nil
	}
	err := p.transport.Close()
	p.transport = nil
	return err
}

func (p *Provider) Connect(ctx context.Context) (*Connection, error) {
	transport, err := p.Transport(ctx)
	if err != nil {
		return nil, err
	}

	chainID, err := transport.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	network, err := p.chains.ResolveNetworkByChainID(chainID.Uint64())
	if err != nil {
		return nil, err
	}
	backend, err := p.chains.BackendFor(ctx, network)
	if err != nil {
		return nil, err
	}

	return &Connection{
		transport: transport,
		backend:   backend,
		network:   network,
		chainID:   new(big.Int).Set(chainID),
	}, nil
}

// Connection is the low-level handle to the wallet and the node for one chain.
type Connection struct {
	transport wallet.Transport
	backend   Backend
	network   ResolvedChain
	chainID   *big.Int
}

func (c *Connection) Backend() Backend { return c.backend }

func (c *Connection) Network() ResolvedChain { return c.network }

func (c *Connection) ChainID() *big.Int { return new(big.Int).Set(c.chainID) }

func (c *Connection) Transport() wallet.Transport { return c.transport }

func (c *Connection) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	return c.transport.RequestAccounts(ctx)
}

// TransactOpts returns signing options for account on this connection's chain.
func (c *Connection) TransactOpts(account common.Address) *bind.TransactOpts {
	return &bind.TransactOpts{
		From:   account,
		Signer: c.transport.Signer(account, c.chainID),
	}
}
