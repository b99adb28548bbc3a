// Package wallet abstracts the transport to the user's wallet: the component that owns the
// accounts, signs transactions, and announces account and network switches.
package wallet

import (
	"context"
	"math/big"
	"slices"

	"github.com/ethereum/go-ethereum/accounts/abi/bind/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
)

type EventKind int

const (
	AccountsChanged EventKind = iota + 1
	ChainChanged
)

func (k EventKind) String() string {
	switch k {
	case AccountsChanged:
		return "accountsChanged"
	case ChainChanged:
		return "chainChanged"
	default:
		return "unknown"
	}
}

// Event is one wallet-level notification. Accounts is set for AccountsChanged, ChainID
// for ChainChanged.
type Event struct {
	Kind     EventKind
	Accounts []common.Address
	ChainID  *big.Int
}

// Transport is the wallet as seen by the client.
//   - RequestAccounts may prompt the human and fails with apperr.ErrUserRejected on refusal.
//   - Accounts never prompts; it returns the currently permitted accounts.
//   - Subscribe delivers events in emission order, one per underlying change.
type Transport interface {
	Name() string
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	Accounts(ctx context.Context) ([]common.Address, error)
	ChainID(ctx context.Context) (*big.Int, error)
	Signer(account common.Address, chainID *big.Int) bind.SignerFn
	Subscribe(sink chan<- Event) event.Subscription
	Close() error
}

// ChainIDReader is the part of a node client needed to follow the selected network.
type ChainIDReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

func sameAccounts(a, b []common.Address) bool {
	return slices.Equal(a, b)
}

func sameChain(a, b *big.Int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Cmp(b) == 0
}
