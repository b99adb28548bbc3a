// Package readcache keeps the client's copies of chain reads (balances, role flags). A copy
// is valid only until the next invalidation; reconcile after a confirmed write invalidates
// exactly the entries that write could have changed.
package readcache

import (
	"math/big"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ethereum/go-ethereum/common"

	"github.com/relieftoken/drt-client/internal/constants"
	"github.com/relieftoken/drt-client/internal/contracts"
)

type Store struct {
	balances *lru.Cache[common.Address, *big.Int]
	roles    *lru.Cache[common.Address, contracts.Roles]

	// epoch is bumped on every invalidation. A read started under an older epoch must not
	// repopulate the cache, or it could resurrect a value the invalidation removed.
	epoch atomic.Uint64
}

func New(size int) (*Store, error) {
	if size <= 0 {
		size = constants.DefaultCacheSize
	}
	balances, err := lru.New[common.Address, *big.Int](size)
	if err != nil {
		return nil, err
	}
	roles, err := lru.New[common.Address, contracts.Roles](size)
	if err != nil {
		return nil, err
	}
	return &Store{balances: balances, roles: roles}, nil
}

// Epoch returns the token a reader must present when storing what it read.
func (s *Store) Epoch() uint64 { return s.epoch.Load() }

func (s *Store) Balance(account common.Address) (*big.Int, bool) {
	v, ok := s.balances.Get(account)
	if !ok {
		return nil, false
	}
	return new(big.Int).Set(v), true
}

// PutBalance stores v unless an invalidation happened since epoch was taken.
func (s *Store) PutBalance(account common.Address, v *big.Int, epoch uint64) bool {
	if v == nil || s.epoch.Load() != epoch {
		return false
	}
	s.balances.Add(account, new(big.Int).Set(v))
	return true
}

func (s *Store) InvalidateBalances(accounts ...common.Address) {
	s.epoch.Add(1)
	for _, a := range accounts {
		s.balances.Remove(a)
	}
}

func (s *Store) Roles(account common.Address) (contracts.Roles, bool) {
	return s.roles.Get(account)
}

func (s *Store) PutRoles(r contracts.Roles, epoch uint64) bool {
	if s.epoch.Load() != epoch {
		return false
	}
	s.roles.Add(r.Account, r)
	return true
}

func (s *Store) InvalidateRoles(accounts ...common.Address) {
	s.epoch.Add(1)
	for _, a := range accounts {
		s.roles.Remove(a)
	}
}

// Purge drops everything, used on account and network switches.
func (s *Store) Purge() {
	s.epoch.Add(1)
	s.balances.Purge()
	s.roles.Purge()
}

func (s *Store) Len() (balances, roles int) {
	return s.balances.Len(), s.roles.Len()
}
