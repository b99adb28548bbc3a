package wallet

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/quantumauth-io/quantum-go-utils/log"
)

// notifier owns the event feed of a transport and remembers the last observed wallet
// state so that each change is announced once.
type notifier struct {
	feed  event.Feed
	scope event.SubscriptionScope

	mu       sync.Mutex
	accounts []common.Address
	chainID  *big.Int
}

func (n *notifier) subscribe(sink chan<- Event) event.Subscription {
	return n.scope.Track(n.feed.Subscribe(sink))
}

// baseline records the state without emitting anything. A nil chainID keeps the
// previously observed chain.
func (n *notifier) baseline(accounts []common.Address, chainID *big.Int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.accounts = append([]common.Address(nil), accounts...)
	if chainID != nil {
		n.chainID = new(big.Int).Set(chainID)
	}
}

func (n *notifier) observeChain(chainID *big.Int) {
	n.mu.Lock()
	if chainID == nil || sameChain(n.chainID, chainID) {
		n.mu.Unlock()
		return
	}
	n.chainID = new(big.Int).Set(chainID)
	n.mu.Unlock()

	n.feed.Send(Event{Kind: ChainChanged, ChainID: new(big.Int).Set(chainID)})
}

func (n *notifier) observeAccounts(accounts []common.Address) {
	n.mu.Lock()
	if sameAccounts(n.accounts, accounts) {
		n.mu.Unlock()
		return
	}
	n.accounts = append([]common.Address(nil), accounts...)
	n.mu.Unlock()

	n.feed.Send(Event{Kind: AccountsChanged, Accounts: append([]common.Address(nil), accounts...)})
}

func (n *notifier) close() {
	n.scope.Close()
}

// pollWallet periodically samples the wallet and feeds changes to the notifier. A failed
// sample is skipped; the next tick tries again.
func pollWallet(ctx context.Context, name string, interval time.Duration, n *notifier,
	chainID func(context.Context) (*big.Int, error),
	accounts func(context.Context) ([]common.Address, error)) {

	timer := time.NewTimer(interval)
	defer timer.Stop()
	polls := 0
	for {
		timer.Reset(interval)
		select {
		case <-ctx.Done():
			log.Info("wallet watcher exiting", "transport", name, "polls", polls)
			return
		case <-timer.C:
			polls++
			if id, err := chainID(ctx); err != nil {
				log.Warn("wallet chain id poll failed", "transport", name, "error", err)
			} else {
				n.observeChain(id)
			}
			if accounts == nil {
				continue
			}
			if accts, err := accounts(ctx); err != nil {
				log.Warn("wallet accounts poll failed", "transport", name, "error", err)
			} else {
				n.observeAccounts(accts)
			}
		}
	}
}
