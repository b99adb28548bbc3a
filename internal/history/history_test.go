package history

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi/bind/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/relieftoken/drt-client/internal/chaintest"
	"github.com/relieftoken/drt-client/internal/constants"
	"github.com/relieftoken/drt-client/internal/contracts"
)

func tokens(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

type ledger struct {
	chain       *chaintest.Chain
	token       *contracts.Token
	beneficiary common.Address
	vendor      common.Address
}

// newLedger plays: add beneficiary, add vendor, mint 100, transfer 30, mint 5.
func newLedger(t *testing.T) *ledger {
	t.Helper()
	ctx := context.Background()

	ownerKey, owner := chaintest.NewKey()
	benKey, beneficiary := chaintest.NewKey()
	_, vendor := chaintest.NewKey()
	chain := chaintest.NewChain(31337, owner)
	w := chaintest.NewWallet(31337, ownerKey, benKey)

	as := func(account common.Address) *bind.TransactOpts {
		return &bind.TransactOpts{From: account, Signer: w.Signer(account, chain.ID())}
	}

	registry, err := contracts.NewRegistry(chain.Registry().Hex(), chain, as(owner))
	require.NoError(t, err)
	ownerToken, err := contracts.NewToken(chain.Token().Hex(), chain, as(owner))
	require.NoError(t, err)
	benToken, err := contracts.NewToken(chain.Token().Hex(), chain, as(beneficiary))
	require.NoError(t, err)

	_, err = registry.AddBeneficiary(ctx, beneficiary)
	require.NoError(t, err)
	_, err = registry.AddVendor(ctx, vendor, contracts.CategoryFood)
	require.NoError(t, err)
	_, err = ownerToken.Mint(ctx, beneficiary, tokens(100))
	require.NoError(t, err)
	_, err = benToken.Transfer(ctx, vendor, tokens(30))
	require.NoError(t, err)
	_, err = ownerToken.Mint(ctx, beneficiary, tokens(5))
	require.NoError(t, err)

	observer, err := contracts.NewToken(chain.Token().Hex(), chain, nil)
	require.NoError(t, err)
	return &ledger{chain: chain, token: observer, beneficiary: beneficiary, vendor: vendor}
}

func TestQueryMostRecentFirstWithMintTag(t *testing.T) {
	l := newLedger(t)

	records, err := New(Config{MaxBlockRange: 2}).Query(context.Background(), l.token, 0)
	require.NoError(t, err)
	require.Len(t, records, 3)

	require.Equal(t, KindMint, records[0].Kind)
	require.Equal(t, "5", records[0].Amount)
	require.Equal(t, constants.ZeroAddr, records[0].From)

	require.Equal(t, KindTransfer, records[1].Kind)
	require.Equal(t, "30", records[1].Amount)
	require.Equal(t, l.beneficiary.Hex(), records[1].From)
	require.Equal(t, l.vendor.Hex(), records[1].To)

	require.Equal(t, KindMint, records[2].Kind)
	require.Equal(t, tokens(100).String(), records[2].RawAmount)

	for i := 1; i < len(records); i++ {
		require.Greater(t, records[i-1].BlockNumber, records[i].BlockNumber)
	}
}

func TestRawAmountEncodesAsDecimalString(t *testing.T) {
	l := newLedger(t)

	records, err := New(Config{}).Query(context.Background(), l.token, 0)
	require.NoError(t, err)

	raw, err := json.Marshal(records[len(records)-1])
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, "100000000000000000000", decoded["rawAmount"])
}

func TestQueryIsStableAcrossCalls(t *testing.T) {
	l := newLedger(t)
	q := New(Config{})

	first, err := q.Query(context.Background(), l.token, 0)
	require.NoError(t, err)
	second, err := q.Query(context.Background(), l.token, 0)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestQueryPagesCoverEveryBlock(t *testing.T) {
	l := newLedger(t)

	paged, err := New(Config{MaxBlockRange: 1}).Query(context.Background(), l.token, 0)
	require.NoError(t, err)
	whole, err := New(Config{MaxBlockRange: 1_000}).Query(context.Background(), l.token, 0)
	require.NoError(t, err)

	require.Equal(t, whole, paged)
	require.Greater(t, l.chain.Calls("FilterLogs"), 2)
}

func TestQueryRespectsStartBlock(t *testing.T) {
	l := newLedger(t)

	records, err := New(Config{}).Query(context.Background(), l.token, 6)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "5", records[0].Amount)
}

func TestQueryFallsBackToDefaultDecimals(t *testing.T) {
	l := newLedger(t)
	l.chain.FailNext("CallContract", chaintest.NewRevertError(""))

	records, err := New(Config{}).Query(context.Background(), l.token, 0)
	require.NoError(t, err)
	require.Equal(t, "30", records[1].Amount)
}

func TestQueryNetworkFailure(t *testing.T) {
	l := newLedger(t)
	l.chain.FailNext("FilterLogs", context.DeadlineExceeded)

	_, err := New(Config{}).Query(context.Background(), l.token, 0)
	require.Error(t, err)
}
