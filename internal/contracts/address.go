package contracts

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/relieftoken/drt-client/internal/apperr"
)

// ParseAddress validates a user or wallet supplied hex address. Both checksummed and
// lowercase forms are accepted; the 0x prefix is optional.
func ParseAddress(raw string) (common.Address, error) {
	s := strings.TrimSpace(raw)
	if !common.IsHexAddress(s) {
		return common.Address{}, apperr.InvalidAddress(raw)
	}
	return common.HexToAddress(s), nil
}

// SameAddress compares two hex addresses ignoring letter case. Malformed input is never
// equal to anything.
func SameAddress(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if !common.IsHexAddress(a) || !common.IsHexAddress(b) {
		return false
	}
	return strings.EqualFold(common.HexToAddress(a).Hex(), common.HexToAddress(b).Hex())
}

func IsZero(addr common.Address) bool {
	return addr == (common.Address{})
}
