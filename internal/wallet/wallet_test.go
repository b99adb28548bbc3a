package wallet

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/require"

	"github.com/relieftoken/drt-client/internal/apperr"
	"github.com/relieftoken/drt-client/internal/constants"
)

type codedError struct {
	code int
	msg  string
}

func (e codedError) Error() string  { return e.msg }
func (e codedError) ErrorCode() int { return e.code }

// fakeWallet is served over an in-process RPC server under the eth namespace.
type fakeWallet struct {
	mu       sync.Mutex
	chainID  int64
	accounts []common.Address
	reject   bool
}

func (f *fakeWallet) ChainId() *hexutil.Big {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (*hexutil.Big)(big.NewInt(f.chainID))
}

func (f *fakeWallet) Accounts() []common.Address {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]common.Address{}, f.accounts...)
}

func (f *fakeWallet) RequestAccounts() ([]common.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reject {
		return nil, codedError{code: constants.RPCCodeUserRejected, msg: "User rejected the request."}
	}
	return append([]common.Address{}, f.accounts...), nil
}

func (f *fakeWallet) set(chainID int64, accounts ...common.Address) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chainID = chainID
	f.accounts = accounts
}

func newTestRPCTransport(t *testing.T, fake *fakeWallet) *RPCTransport {
	t.Helper()

	srv := rpc.NewServer()
	require.NoError(t, srv.RegisterName("eth", fake))
	t.Cleanup(srv.Stop)

	tr, err := newRPCTransport(context.Background(), "inproc", rpc.DialInProc(srv), 10*time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func TestRPCTransportRequestAccounts(t *testing.T) {
	alice := common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	fake := &fakeWallet{chainID: 31337, accounts: []common.Address{alice}}
	tr := newTestRPCTransport(t, fake)

	id, err := tr.ChainID(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(31337), id.Int64())

	accounts, err := tr.RequestAccounts(context.Background())
	require.NoError(t, err)
	require.Equal(t, []common.Address{alice}, accounts)
}

func TestRPCTransportRejection(t *testing.T) {
	fake := &fakeWallet{chainID: 1, reject: true}
	tr := newTestRPCTransport(t, fake)

	_, err := tr.RequestAccounts(context.Background())
	require.ErrorIs(t, err, apperr.ErrUserRejected)

	fake.mu.Lock()
	fake.reject = false
	fake.mu.Unlock()

	_, err = tr.RequestAccounts(context.Background())
	require.ErrorIs(t, err, apperr.ErrUserRejected, "an empty account list is a refusal")
}

func TestRPCTransportEmitsChanges(t *testing.T) {
	alice := common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob := common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	fake := &fakeWallet{chainID: 31337, accounts: []common.Address{alice}}
	tr := newTestRPCTransport(t, fake)

	events := make(chan Event, 8)
	sub := tr.Subscribe(events)
	defer sub.Unsubscribe()

	fake.set(31337, bob)
	select {
	case ev := <-events:
		require.Equal(t, AccountsChanged, ev.Kind)
		require.Equal(t, []common.Address{bob}, ev.Accounts)
	case <-time.After(2 * time.Second):
		t.Fatal("no accountsChanged event")
	}

	fake.set(5, bob)
	select {
	case ev := <-events:
		require.Equal(t, ChainChanged, ev.Kind)
		require.Equal(t, int64(5), ev.ChainID.Int64())
	case <-time.After(2 * time.Second):
		t.Fatal("no chainChanged event")
	}
}

func TestNotifierAnnouncesEachChangeOnce(t *testing.T) {
	var n notifier
	defer n.close()

	events := make(chan Event, 8)
	sub := n.subscribe(events)
	defer sub.Unsubscribe()

	a := common.HexToAddress("0x01")
	n.baseline([]common.Address{a}, big.NewInt(1))

	n.observeAccounts([]common.Address{a})
	n.observeChain(big.NewInt(1))
	n.observeChain(nil)
	require.Empty(t, events)

	n.observeChain(big.NewInt(2))
	n.observeChain(big.NewInt(2))
	n.observeAccounts(nil)
	n.observeAccounts(nil)

	require.Len(t, events, 2)
	first := <-events
	require.Equal(t, ChainChanged, first.Kind)
	second := <-events
	require.Equal(t, AccountsChanged, second.Kind)
	require.Empty(t, second.Accounts)
}

func TestRPCFailureClassification(t *testing.T) {
	err := rpcFailure(codedError{code: constants.RPCCodeUnauthorized, msg: "unauthorized"}, "eth_accounts")
	require.ErrorIs(t, err, apperr.ErrUserRejected)

	err = rpcFailure(codedError{code: -32000, msg: "boom"}, "eth_accounts")
	require.ErrorIs(t, err, apperr.ErrNetwork)

	err = rpcFailure(errors.New("connection reset"), "eth_chainId")
	require.ErrorIs(t, err, apperr.ErrNetwork)
}

func TestOpenWithoutWallet(t *testing.T) {
	ctx := context.Background()

	_, err := Open(ctx, Config{Kind: "none"}, nil)
	require.ErrorIs(t, err, apperr.ErrNoWallet)

	_, err = Open(ctx, Config{Kind: KindRPC}, nil)
	require.ErrorIs(t, err, apperr.ErrNoWallet)

	_, err = Open(ctx, Config{Kind: KindKeystore, KeystoreDir: t.TempDir() + "/missing"}, nil)
	require.ErrorIs(t, err, apperr.ErrNoWallet)

	_, err = Open(ctx, Config{Kind: KindKeystore, KeystoreDir: t.TempDir(), Passphrase: "x"}, staticChain(1))
	require.ErrorIs(t, err, apperr.ErrNoWallet, "empty keystore")

	_, err = Open(ctx, Config{Kind: "ledger"}, nil)
	require.Error(t, err)
	require.NotErrorIs(t, err, apperr.ErrNoWallet)
}

type staticChain int64

func (c staticChain) ChainID(context.Context) (*big.Int, error) { return big.NewInt(int64(c)), nil }
