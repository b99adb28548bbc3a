package session

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/relieftoken/drt-client/internal/chains"
	"github.com/relieftoken/drt-client/internal/contracts"
)

// Reader is a set of read-only handles. Calls through it never prompt the wallet.
type Reader struct {
	Network    chains.ResolvedChain
	Registry   *contracts.Registry
	Token      *contracts.Token
	Backend    chains.Backend
	Generation uint64
}

// Reader returns handles on the session's network when connected, otherwise on the
// configured default network so observers can read without a wallet.
func (m *Manager) Reader(ctx context.Context) (Reader, error) {
	if b, err := m.Binding(); err == nil {
		return Reader{
			Network:    b.Network,
			Registry:   b.Registry,
			Token:      b.Token,
			Backend:    b.Backend,
			Generation: b.Generation,
		}, nil
	}

	svc := m.provider.Chains()
	network, err := svc.DefaultNetwork()
	if err != nil {
		return Reader{}, err
	}
	backend, err := svc.BackendFor(ctx, network)
	if err != nil {
		return Reader{}, err
	}
	registry, err := contracts.NewRegistry(network.Registry, backend, nil)
	if err != nil {
		return Reader{}, err
	}
	token, err := contracts.NewToken(network.Token, backend, nil)
	if err != nil {
		return Reader{}, err
	}

	m.mu.RLock()
	generation := m.generation
	m.mu.RUnlock()

	return Reader{
		Network:    network,
		Registry:   registry,
		Token:      token,
		Backend:    backend,
		Generation: generation,
	}, nil
}

// Roles returns the role flags of account, from cache when present.
func (m *Manager) Roles(ctx context.Context, account string) (contracts.Roles, error) {
	addr, err := contracts.ParseAddress(account)
	if err != nil {
		return contracts.Roles{}, err
	}
	if r, ok := m.cache.Roles(addr); ok {
		return r, nil
	}
	return m.readRoles(ctx, addr)
}

func (m *Manager) readRoles(ctx context.Context, addr common.Address) (contracts.Roles, error) {
	epoch := m.cache.Epoch()
	reader, err := m.Reader(ctx)
	if err != nil {
		return contracts.Roles{}, err
	}
	r, err := reader.Registry.Roles(ctx, addr)
	if err != nil {
		return contracts.Roles{}, err
	}
	m.cache.PutRoles(r, epoch)
	return r, nil
}

// RefreshRoles re-reads the connected account's flags from chain, dropping the cached copy,
// and updates the session's owner flag if it changed.
func (m *Manager) RefreshRoles(ctx context.Context) (contracts.Roles, error) {
	b, err := m.Binding()
	if err != nil {
		return contracts.Roles{}, err
	}

	m.cache.InvalidateRoles(b.Account)
	r, err := m.readRoles(ctx, b.Account)
	if err != nil {
		return contracts.Roles{}, err
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()
	cur := m.current()
	if cur.state == Connected && cur.account == b.Account && cur.isOwner != r.IsOwner {
		cur.isOwner = r.IsOwner
		m.set(cur, false, nil)
	}
	return r, nil
}

// Balance returns the token balance of account in base units.
func (m *Manager) Balance(ctx context.Context, account string) (*big.Int, error) {
	addr, err := contracts.ParseAddress(account)
	if err != nil {
		return nil, err
	}
	if v, ok := m.cache.Balance(addr); ok {
		return v, nil
	}

	epoch := m.cache.Epoch()
	reader, err := m.Reader(ctx)
	if err != nil {
		return nil, err
	}
	v, err := reader.Token.BalanceOf(ctx, addr)
	if err != nil {
		return nil, err
	}
	m.cache.PutBalance(addr, v, epoch)
	return v, nil
}
