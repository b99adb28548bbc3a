package wallet

import (
	"context"
	"math/big"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi/bind/v2"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/relieftoken/drt-client/internal/apperr"
	"github.com/relieftoken/drt-client/internal/constants"
)

// Prompter asks the human to authorise an account. Returning an empty passphrase or an
// error means the request was declined.
type Prompter interface {
	Passphrase(account common.Address) (string, error)
}

// KeystoreTransport serves accounts from a go-ethereum keystore directory. An account is
// "permitted" once the human unlocked it through the Prompter.
type KeystoreTransport struct {
	dir      string
	ks       *keystore.KeyStore
	chain    ChainIDReader
	prompt   Prompter
	interval time.Duration

	mu       sync.Mutex
	unlocked []common.Address

	notifier  notifier
	startOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
}

// OpenKeystore opens dir. A missing directory or one without keys is reported as
// apperr.ErrNoWallet.
func OpenKeystore(ctx context.Context, dir string, chain ChainIDReader, prompt Prompter, interval time.Duration) (*KeystoreTransport, error) {
	if dir == "" {
		return nil, apperr.NoWallet(errors.New("keystore directory is not configured"))
	}
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		return nil, apperr.NoWallet(errors.Newf("keystore directory %s not found", dir))
	}
	if chain == nil {
		return nil, errors.New("keystore transport needs a chain id reader")
	}
	if prompt == nil {
		return nil, errors.New("keystore transport needs a prompter")
	}
	if interval <= 0 {
		interval = constants.DefaultPollIntervalMS * time.Millisecond
	}

	ks := keystore.NewKeyStore(dir, keystore.StandardScryptN, keystore.StandardScryptP)
	if len(ks.Accounts()) == 0 {
		return nil, apperr.NoWallet(errors.Newf("keystore %s has no accounts", dir))
	}

	t := &KeystoreTransport{
		dir:      dir,
		ks:       ks,
		chain:    chain,
		prompt:   prompt,
		interval: interval,
	}

	chainID, err := chain.ChainID(ctx)
	if err != nil {
		return nil, apperr.Network(err, "read chain id")
	}
	t.notifier.baseline(nil, chainID)

	t.ctx, t.cancel = context.WithCancel(context.Background())
	return t, nil
}

func (t *KeystoreTransport) Name() string { return "keystore:" + t.dir }

func (t *KeystoreTransport) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	if current, _ := t.Accounts(ctx); len(current) > 0 {
		return current, nil
	}

	all := t.ks.Accounts()
	if len(all) == 0 {
		return nil, apperr.NoWallet(errors.Newf("keystore %s has no accounts", t.dir))
	}
	account := all[0]

	pass, err := t.prompt.Passphrase(account.Address)
	if err != nil {
		return nil, apperr.UserRejected(err)
	}
	if pass == "" {
		return nil, apperr.UserRejected(errors.New("empty passphrase"))
	}
	if err := t.ks.Unlock(account, pass); err != nil {
		return nil, apperr.UserRejected(errors.Wrapf(err, "unlock %s", account.Address.Hex()))
	}

	t.mu.Lock()
	t.unlocked = []common.Address{account.Address}
	out := slices.Clone(t.unlocked)
	t.mu.Unlock()

	t.notifier.baseline(out, nil)
	return out, nil
}

func (t *KeystoreTransport) Accounts(_ context.Context) ([]common.Address, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.unlocked), nil
}

func (t *KeystoreTransport) ChainID(ctx context.Context) (*big.Int, error) {
	id, err := t.chain.ChainID(ctx)
	if err != nil {
		return nil, apperr.Network(err, "read chain id")
	}
	return id, nil
}

func (t *KeystoreTransport) Signer(account common.Address, chainID *big.Int) bind.SignerFn {
	return func(from common.Address, tx *types.Transaction) (*types.Transaction, error) {
		if from != account {
			return nil, errors.Newf("signer bound to %s cannot sign for %s", account.Hex(), from.Hex())
		}
		signed, err := t.ks.SignTx(accounts.Account{Address: from}, tx, chainID)
		if err != nil {
			if errors.Is(err, keystore.ErrLocked) {
				return nil, apperr.UserRejected(err)
			}
			return nil, errors.Wrap(err, "keystore sign")
		}
		return signed, nil
	}
}

func (t *KeystoreTransport) Subscribe(sink chan<- Event) event.Subscription {
	t.startOnce.Do(func() {
		go pollWallet(t.ctx, t.Name(), t.interval, &t.notifier, t.ChainID, nil)
		go t.watchKeys()
	})
	return t.notifier.subscribe(sink)
}

// watchKeys drops accounts whose key file disappeared from the directory.
func (t *KeystoreTransport) watchKeys() {
	events := make(chan accounts.WalletEvent, 16)
	sub := t.ks.Subscribe(events)
	defer sub.Unsubscribe()

	for {
		select {
		case <-t.ctx.Done():
			return
		case err := <-sub.Err():
			if err != nil {
				log.Warn("keystore subscription failed", "dir", t.dir, "error", err)
			}
			return
		case ev := <-events:
			if ev.Kind != accounts.WalletDropped {
				continue
			}
			t.drop(ev.Wallet.Accounts())
		}
	}
}

func (t *KeystoreTransport) drop(gone []accounts.Account) {
	t.mu.Lock()
	before := len(t.unlocked)
	t.unlocked = slices.DeleteFunc(t.unlocked, func(a common.Address) bool {
		return slices.ContainsFunc(gone, func(g accounts.Account) bool { return g.Address == a })
	})
	changed := len(t.unlocked) != before
	remaining := slices.Clone(t.unlocked)
	t.mu.Unlock()

	if changed {
		t.notifier.observeAccounts(remaining)
	}
}

func (t *KeystoreTransport) Close() error {
	t.cancel()
	t.notifier.close()
	t.mu.Lock()
	for _, a := range t.unlocked {
		_ = t.ks.Lock(a)
	}
	t.unlocked = nil
	t.mu.Unlock()
	return nil
}
