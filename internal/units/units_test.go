package units

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func ether(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic(s)
	}
	return v
}

func TestFormatUnits(t *testing.T) {
	require.Equal(t, "0", FormatUnits(nil, 18))
	require.Equal(t, "1", FormatUnits(ether("1000000000000000000"), 18))
	require.Equal(t, "1.5", FormatUnits(ether("1500000000000000000"), 18))
	require.Equal(t, "0.000000000000000001", FormatUnits(big.NewInt(1), 18))
	require.Equal(t, "-2.25", FormatUnits(ether("-2250000000000000000"), 18))
}

func TestFormatUnitsTrim(t *testing.T) {
	require.Equal(t, "1.2345", FormatUnitsTrim(ether("1234500000000000000"), 18, 6))
	require.Equal(t, "1.23", FormatUnitsTrim(ether("1234500000000000000"), 18, 2))
	require.Equal(t, "0", FormatUnitsTrim(big.NewInt(1), 18, 4))
	require.Equal(t, "7", FormatUnitsTrim(ether("7000000000000000001"), 18, 0))
}

func TestParseUnits(t *testing.T) {
	v, err := ParseUnits("100", 18)
	require.NoError(t, err)
	require.Equal(t, ether("100000000000000000000"), v)

	v, err = ParseUnits(" 0.25 ", 18)
	require.NoError(t, err)
	require.Equal(t, ether("250000000000000000"), v)

	v, err = ParseUnits(".5", 18)
	require.NoError(t, err)
	require.Equal(t, ether("500000000000000000"), v)

	v, err = ParseUnits("3.", 2)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(300), v)

	for _, bad := range []string{"", "-1", "abc", "1e18", ".", "1.2.3", "0.1234"} {
		_, err := ParseUnits(bad, 3)
		require.Error(t, err, bad)
	}
}

func TestParseFormatRoundTrip(t *testing.T) {
	for _, s := range []string{"0", "1", "42.000000000000000001", "123456789.987654321"} {
		v, err := ParseUnits(s, 18)
		require.NoError(t, err)
		require.Equal(t, s, FormatUnits(v, 18))
	}
}
