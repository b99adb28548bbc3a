package chaintest

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/accounts/abi/bind/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/event"

	"github.com/relieftoken/drt-client/internal/apperr"
	"github.com/relieftoken/drt-client/internal/wallet"
)

var _ wallet.Transport = (*Wallet)(nil)

var errUnknownAccount = errors.New("account is not managed by this wallet")

// Wallet is a scripted wallet transport. Tests decide whether prompts are approved and
// emit account and network switches explicitly.
type Wallet struct {
	mu       sync.Mutex
	keys     map[common.Address]*ecdsa.PrivateKey
	accounts []common.Address
	chainID  *big.Int

	rejectPrompt bool
	rejectSign   bool
	prompts      int

	feed  event.Feed
	scope event.SubscriptionScope
}

// NewWallet creates a wallet holding the given keys; the first is the active account.
func NewWallet(chainID int64, keys ...*ecdsa.PrivateKey) *Wallet {
	w := &Wallet{
		keys:    make(map[common.Address]*ecdsa.PrivateKey),
		chainID: big.NewInt(chainID),
	}
	for _, k := range keys {
		addr := crypto.PubkeyToAddress(k.PublicKey)
		w.keys[addr] = k
		w.accounts = append(w.accounts, addr)
	}
	return w
}

// NewKey returns a fresh key and its address.
func NewKey() (*ecdsa.PrivateKey, common.Address) {
	k, err := crypto.GenerateKey()
	if err != nil {
		panic(err)
	}
	return k, crypto.PubkeyToAddress(k.PublicKey)
}

func (w *Wallet) Name() string { return "scripted" }

func (w *Wallet) RejectPrompts(reject bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rejectPrompt = reject
}

func (w *Wallet) RejectSigning(reject bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rejectSign = reject
}

func (w *Wallet) Prompts() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.prompts
}

func (w *Wallet) AddKey(k *ecdsa.PrivateKey) common.Address {
	w.mu.Lock()
	defer w.mu.Unlock()
	addr := crypto.PubkeyToAddress(k.PublicKey)
	w.keys[addr] = k
	return addr
}

func (w *Wallet) RequestAccounts(context.Context) ([]common.Address, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prompts++
	if w.rejectPrompt {
		return nil, apperr.UserRejected(errors.New("user denied account authorization"))
	}
	return append([]common.Address(nil), w.accounts...), nil
}

func (w *Wallet) Accounts(context.Context) ([]common.Address, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]common.Address(nil), w.accounts...), nil
}

func (w *Wallet) ChainID(context.Context) (*big.Int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return new(big.Int).Set(w.chainID), nil
}

func (w *Wallet) Signer(account common.Address, chainID *big.Int) bind.SignerFn {
	signer := types.LatestSignerForChainID(chainID)
	return func(from common.Address, tx *types.Transaction) (*types.Transaction, error) {
		w.mu.Lock()
		key, reject := w.keys[from], w.rejectSign
		w.mu.Unlock()

		if from != account || key == nil {
			return nil, errUnknownAccount
		}
		if reject {
			return nil, apperr.UserRejected(errors.New("user denied transaction signature"))
		}
		return types.SignTx(tx, signer, key)
	}
}

func (w *Wallet) Subscribe(sink chan<- wallet.Event) event.Subscription {
	return w.scope.Track(w.feed.Subscribe(sink))
}

// SwitchAccounts replaces the exposed accounts and emits AccountsChanged.
func (w *Wallet) SwitchAccounts(accounts ...common.Address) {
	w.mu.Lock()
	w.accounts = append([]common.Address(nil), accounts...)
	w.mu.Unlock()
	w.feed.Send(wallet.Event{Kind: wallet.AccountsChanged, Accounts: append([]common.Address(nil), accounts...)})
}

// SwitchChain changes the selected network and emits ChainChanged.
func (w *Wallet) SwitchChain(chainID int64) {
	w.mu.Lock()
	w.chainID = big.NewInt(chainID)
	w.mu.Unlock()
	w.feed.Send(wallet.Event{Kind: wallet.ChainChanged, ChainID: big.NewInt(chainID)})
}

func (w *Wallet) Close() error {
	w.scope.Close()
	return nil
}
