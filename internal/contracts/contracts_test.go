package contracts_test

import (
	"context"
	"math/big"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/relieftoken/drt-client/internal/apperr"
	"github.com/relieftoken/drt-client/internal/chaintest"
	"github.com/relieftoken/drt-client/internal/contracts"
)

func TestSameAddressIgnoresCase(t *testing.T) {
	addr := "0x5FbDB2315678afecb367f032d93F642f64180aa3"

	require.True(t, contracts.SameAddress(addr, strings.ToLower(addr)))
	require.True(t, contracts.SameAddress(strings.ToUpper("0x"+addr[2:]), addr))
	require.False(t, contracts.SameAddress(addr, "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"))
	require.False(t, contracts.SameAddress("0x1234", "0x1234"))
}

func TestParseAddress(t *testing.T) {
	got, err := contracts.ParseAddress(" 5fbdb2315678afecb367f032d93f642f64180aa3 ")
	require.NoError(t, err)
	require.Equal(t, common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"), got)

	for _, raw := range []string{"", "0x", "0x1234", "not an address", "0xZZbDB2315678afecb367f032d93F642f64180aa3"} {
		_, err := contracts.ParseAddress(raw)
		require.ErrorIs(t, err, apperr.ErrInvalidAddress, raw)
	}
}

func TestParseCategory(t *testing.T) {
	cases := map[string]contracts.Category{
		"food":     contracts.CategoryFood,
		"Medicine": contracts.CategoryMedicine,
		"1":        contracts.CategoryFood,
		" 2 ":      contracts.CategoryMedicine,
		"none":     contracts.CategoryNone,
	}
	for in, want := range cases {
		got, err := contracts.ParseCategory(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	_, err := contracts.ParseCategory("3")
	require.Error(t, err)
	_, err = contracts.ParseCategory("fuel")
	require.Error(t, err)
	require.Equal(t, "Category(7)", contracts.Category(7).String())
}

func TestDecodeRevert(t *testing.T) {
	reason, ok := contracts.DecodeRevert(chaintest.NewRevertError(chaintest.ReasonNotBeneficiary))
	require.True(t, ok)
	require.Equal(t, chaintest.ReasonNotBeneficiary, reason)

	reason, ok = contracts.DecodeRevert(errors.New("VM Exception while processing transaction: reverted with reason string 'Recipient not a vendor'"))
	require.True(t, ok)
	require.Equal(t, chaintest.ReasonNotVendor, reason)

	reason, ok = contracts.DecodeRevert(errors.New("execution reverted"))
	require.True(t, ok)
	require.Empty(t, reason)

	_, ok = contracts.DecodeRevert(errors.New("connection refused"))
	require.False(t, ok)
	_, ok = contracts.DecodeRevert(nil)
	require.False(t, ok)
}

func TestBindRejectsBadAddressWithoutNetwork(t *testing.T) {
	_, owner := chaintest.NewKey()
	chain := chaintest.NewChain(31337, owner)

	_, err := contracts.NewToken("0xnope", chain, nil)
	require.ErrorIs(t, err, apperr.ErrInvalidAddress)
	require.Zero(t, chain.Calls("CallContract"))
	require.Zero(t, chain.Calls("CodeAt"))
}

func TestObserverReads(t *testing.T) {
	ctx := context.Background()
	_, owner := chaintest.NewKey()
	_, vendor := chaintest.NewKey()
	chain := chaintest.NewChain(31337, owner)
	chain.SetVendor(vendor, uint8(contracts.CategoryMedicine))
	chain.SetBalance(vendor, big.NewInt(42))

	registry, err := contracts.NewRegistry(chain.Registry().Hex(), chain, nil)
	require.NoError(t, err)
	token, err := contracts.NewToken(chain.Token().Hex(), chain, nil)
	require.NoError(t, err)
	require.False(t, token.CanTransact())

	gotOwner, err := registry.Owner(ctx)
	require.NoError(t, err)
	require.Equal(t, owner, gotOwner)

	roles, err := registry.Roles(ctx, vendor)
	require.NoError(t, err)
	require.False(t, roles.IsBeneficiary)
	require.True(t, roles.IsVendor)
	require.Equal(t, contracts.CategoryMedicine, roles.Category)

	vendorEntry, err := registry.Vendors(ctx, vendor)
	require.NoError(t, err)
	require.Equal(t, contracts.CategoryMedicine, vendorEntry)
	inBeneficiaries, err := registry.Beneficiaries(ctx, vendor)
	require.NoError(t, err)
	require.False(t, inBeneficiaries)

	balance, err := token.BalanceOf(ctx, vendor)
	require.NoError(t, err)
	require.Equal(t, int64(42), balance.Int64())

	meta, err := token.Metadata(ctx)
	require.NoError(t, err)
	require.Equal(t, "DRT", meta.Symbol)
	require.Equal(t, uint8(18), meta.Decimals)
	require.Equal(t, chain.Token().Hex(), meta.Address)

	_, err = token.Mint(ctx, vendor, big.NewInt(1))
	require.ErrorIs(t, err, contracts.ErrNoSigner)
}

func TestRegistryMappings(t *testing.T) {
	ctx := context.Background()
	_, owner := chaintest.NewKey()
	_, beneficiary := chaintest.NewKey()
	_, stranger := chaintest.NewKey()
	chain := chaintest.NewChain(31337, owner)
	chain.SetBeneficiary(beneficiary)

	registry, err := contracts.NewRegistry(chain.Registry().Hex(), chain, nil)
	require.NoError(t, err)

	ok, err := registry.Beneficiaries(ctx, beneficiary)
	require.NoError(t, err)
	require.True(t, ok)
	viaGetter, err := registry.IsBeneficiary(ctx, beneficiary)
	require.NoError(t, err)
	require.Equal(t, viaGetter, ok)

	ok, err = registry.Beneficiaries(ctx, stranger)
	require.NoError(t, err)
	require.False(t, ok)

	category, err := registry.Vendors(ctx, stranger)
	require.NoError(t, err)
	require.Equal(t, contracts.CategoryNone, category)
}
