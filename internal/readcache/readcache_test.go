package readcache

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/relieftoken/drt-client/internal/contracts"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

func TestBalanceCacheReturnsCopies(t *testing.T) {
	s, err := New(8)
	require.NoError(t, err)

	require.True(t, s.PutBalance(alice, big.NewInt(10), s.Epoch()))
	v, ok := s.Balance(alice)
	require.True(t, ok)
	v.SetInt64(99)

	again, ok := s.Balance(alice)
	require.True(t, ok)
	require.Equal(t, int64(10), again.Int64())
}

func TestInvalidationRejectsStaleWriters(t *testing.T) {
	s, err := New(8)
	require.NoError(t, err)

	epoch := s.Epoch()
	s.InvalidateBalances(alice)

	require.False(t, s.PutBalance(alice, big.NewInt(1), epoch))
	_, ok := s.Balance(alice)
	require.False(t, ok)

	require.True(t, s.PutBalance(alice, big.NewInt(2), s.Epoch()))
}

func TestInvalidateOnlyNamedEntries(t *testing.T) {
	s, err := New(8)
	require.NoError(t, err)

	require.True(t, s.PutBalance(alice, big.NewInt(1), s.Epoch()))
	require.True(t, s.PutBalance(bob, big.NewInt(2), s.Epoch()))
	require.True(t, s.PutRoles(contracts.Roles{Account: bob, IsVendor: true}, s.Epoch()))

	s.InvalidateBalances(alice)

	_, ok := s.Balance(alice)
	require.False(t, ok)
	_, ok = s.Balance(bob)
	require.True(t, ok)
	r, ok := s.Roles(bob)
	require.True(t, ok)
	require.True(t, r.IsVendor)

	s.Purge()
	b, roles := s.Len()
	require.Zero(t, b)
	require.Zero(t, roles)
}
