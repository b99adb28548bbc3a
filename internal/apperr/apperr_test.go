package apperr

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func TestMarkersSurviveWrapping(t *testing.T) {
	err := errors.Wrap(UserRejected(errors.New("denied")), "connect")
	require.ErrorIs(t, err, ErrUserRejected)
	require.NotErrorIs(t, err, ErrNoWallet)

	err = errors.Wrap(Network(errors.New("dial tcp: refused"), "dial localhost"), "connect")
	require.ErrorIs(t, err, ErrNetwork)

	revert := errors.Wrap(NewContractRevert("Insufficient balance", "", nil), "transfer")
	require.ErrorIs(t, revert, ErrContractRevert)
}

func TestMarkersVisibleToStandardLibrary(t *testing.T) {
	cases := []struct {
		err    error
		marker error
	}{
		{NoWallet(errors.New("dial refused")), ErrNoWallet},
		{UserRejected(errors.New("user denied account authorization")), ErrUserRejected},
		{InvalidAddress("0x12"), ErrInvalidAddress},
		{Required("amount"), ErrValidation},
		{Network(errors.New("eof"), "eth_call"), ErrNetwork},
	}
	for _, tc := range cases {
		wrapped := fmt.Errorf("outer: %w", errors.Wrap(tc.err, "middle"))
		require.True(t, stderrors.Is(wrapped, tc.marker), tc.err.Error())
		require.True(t, errors.Is(wrapped, tc.marker), tc.err.Error())

		for _, other := range []error{ErrNoWallet, ErrUserRejected, ErrInvalidAddress, ErrValidation, ErrNetwork} {
			if other != tc.marker {
				require.False(t, stderrors.Is(wrapped, other), "%s must not match %s", tc.err, other)
			}
		}
	}

	cause := errors.New("socket closed")
	require.ErrorIs(t, Network(cause, "read"), cause)
}

func TestNetworkIsNotDoubleWrapped(t *testing.T) {
	inner := Network(errors.New("timeout"), "read")
	require.Equal(t, inner, Network(inner, "again"))
	require.NoError(t, Network(nil, "noop"))
}

func TestUserMessage(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"no wallet", NoWallet(nil), "No wallet found. Install or configure a wallet and try again"},
		{"rejected", UserRejected(errors.New("user said no")), "Request was rejected in the wallet"},
		{"invalid address", InvalidAddress("0x12"), `invalid address "0x12"`},
		{"required", Required("amount"), "amount is required"},
		{"network", Network(errors.New("connection refused"), "dial"), "Network error: connection refused"},
		{"revert mapped", NewContractRevert("Sender not a beneficiary", "Sender is not a registered beneficiary", nil), "Sender is not a registered beneficiary"},
		{"revert raw", NewContractRevert("custom", "", nil), "custom"},
		{"revert empty", NewContractRevert("", "", nil), "execution reverted"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, UserMessage(tc.err))
		})
	}
}
