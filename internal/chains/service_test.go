package chains_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/relieftoken/drt-client/internal/apperr"
	"github.com/relieftoken/drt-client/internal/chains"
	"github.com/relieftoken/drt-client/internal/chaintest"
	"github.com/relieftoken/drt-client/internal/wallet"
)

func newService(t *testing.T) (*chains.Service, *chaintest.Chain, *chaintest.Network) {
	t.Helper()

	_, owner := chaintest.NewKey()
	chain := chaintest.NewChain(31337, owner)
	network := chaintest.NewNetwork()
	network.Add("local", chain)
	network.Add("other", chaintest.NewChain(5, owner))

	svc, err := chains.NewService(network.Config(), network.Dial)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc, chain, network
}

func TestNewServiceRequiresNetworks(t *testing.T) {
	_, err := chains.NewService(chains.AllChainsConfig{}, nil)
	require.Error(t, err)
}

func TestResolveNetwork(t *testing.T) {
	svc, chain, _ := newService(t)

	byID, err := svc.ResolveNetworkByChainID(31337)
	require.NoError(t, err)
	require.Equal(t, "local", byID.NetworkName)
	require.Equal(t, chain.Registry().Hex(), byID.Registry)

	byName, err := svc.ResolveNetworkByName("LOCAL")
	require.NoError(t, err)
	require.Equal(t, byID, byName)

	def, err := svc.DefaultNetwork()
	require.NoError(t, err)
	require.Equal(t, "local", def.NetworkName)

	_, err = svc.ResolveNetworkByChainID(1)
	require.Error(t, err)
	_, err = svc.ResolveNetworkByName("mainnet")
	require.Error(t, err)
}

func TestBackendForIsCached(t *testing.T) {
	svc, chain, _ := newService(t)
	network, err := svc.DefaultNetwork()
	require.NoError(t, err)

	first, err := svc.BackendFor(context.Background(), network)
	require.NoError(t, err)
	second, err := svc.BackendFor(context.Background(), network)
	require.NoError(t, err)
	require.Same(t, chain, first)
	require.Same(t, first, second)
}

func TestBackendForDialFailureIsNetworkError(t *testing.T) {
	svc, _, _ := newService(t)
	network, err := svc.DefaultNetwork()
	require.NoError(t, err)
	network.URL = "mem://missing"
	network.NetworkName = "missing"

	_, err = svc.BackendFor(context.Background(), network)
	require.ErrorIs(t, err, apperr.ErrNetwork)
}

func TestProviderWithoutWallet(t *testing.T) {
	svc, _, _ := newService(t)
	p := chains.NewProvider(nil, svc)

	require.False(t, p.Available())
	_, err := p.Connect(context.Background())
	require.ErrorIs(t, err, apperr.ErrNoWallet)

	events := make(chan wallet.Event, 1)
	sub := p.Subscribe(events)
	sub.Unsubscribe()
	require.NoError(t, p.Close())
}

func TestOpeningProviderRetriesUntilWalletAppears(t *testing.T) {
	svc, _, _ := newService(t)
	key, account := chaintest.NewKey()
	w := chaintest.NewWallet(31337, key)

	var (
		mu       sync.Mutex
		attempts int
		ready    bool
	)
	p := chains.NewOpeningProvider(func(context.Context) (wallet.Transport, error) {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if !ready {
			return nil, apperr.NoWallet(errors.New("dial tcp 127.0.0.1:8545: connection refused"))
		}
		return w, nil
	}, svc)
	t.Cleanup(func() { _ = p.Close() })

	events := make(chan wallet.Event, 4)
	sub := p.Subscribe(events)
	defer sub.Unsubscribe()

	_, err := p.Connect(context.Background())
	require.ErrorIs(t, err, apperr.ErrNoWallet)
	_, err = p.Connect(context.Background())
	require.ErrorIs(t, err, apperr.ErrNoWallet)
	require.False(t, p.Available())

	mu.Lock()
	ready = true
	mu.Unlock()

	conn, err := p.Connect(context.Background())
	require.NoError(t, err)
	require.Equal(t, "local", conn.Network().NetworkName)
	require.True(t, p.Available())

	_, err = p.Connect(context.Background())
	require.NoError(t, err)
	mu.Lock()
	require.Equal(t, 3, attempts, "an opened transport is kept")
	mu.Unlock()

	// The subscription taken before the wallet existed now follows it.
	w.SwitchAccounts(account)
	select {
	case ev := <-events:
		require.Equal(t, wallet.AccountsChanged, ev.Kind)
		require.Equal(t, []common.Address{account}, ev.Accounts)
	case <-time.After(2 * time.Second):
		t.Fatal("no event relayed from the opened wallet")
	}
}

func TestProviderRelaysEventsInOrder(t *testing.T) {
	svc, _, _ := newService(t)
	key, account := chaintest.NewKey()
	w := chaintest.NewWallet(31337, key)
	p := chains.NewProvider(w, svc)
	t.Cleanup(func() { _ = p.Close() })

	events := make(chan wallet.Event, 8)
	sub := p.Subscribe(events)
	defer sub.Unsubscribe()

	w.SwitchChain(5)
	w.SwitchAccounts()
	w.SwitchAccounts(account)
	w.SwitchChain(31337)

	want := []wallet.EventKind{wallet.ChainChanged, wallet.AccountsChanged, wallet.AccountsChanged, wallet.ChainChanged}
	for i, kind := range want {
		select {
		case ev := <-events:
			require.Equal(t, kind, ev.Kind, "event %d", i)
		case <-time.After(2 * time.Second):
			t.Fatalf("event %d not relayed", i)
		}
	}
}

func TestProviderConnectFollowsWalletChain(t *testing.T) {
	svc, _, _ := newService(t)
	key, account := chaintest.NewKey()
	w := chaintest.NewWallet(5, key)
	p := chains.NewProvider(w, svc)

	conn, err := p.Connect(context.Background())
	require.NoError(t, err)
	require.Equal(t, "other", conn.Network().NetworkName)
	require.Equal(t, uint64(5), conn.ChainID().Uint64())
	require.Equal(t, account, conn.TransactOpts(account).From)

	w.SwitchChain(99)
	_, err = p.Connect(context.Background())
	require.Error(t, err)
}
