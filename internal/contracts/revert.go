package contracts

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

const revertMarker = "execution reverted"

// hardhat / anvil style: "reverted with reason string 'Sender not a beneficiary'"
const reasonStringMarker = "reverted with reason string '"

// DecodeRevert extracts the revert reason carried by a node error. ok is false when the
// error is not a revert at all (transport failure, bad request, ...).
func DecodeRevert(err error) (reason string, ok bool) {
	if err == nil {
		return "", false
	}

	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if r, found := ReasonFromData(dataErr.ErrorData()); found {
			return r, true
		}
	}

	msg := err.Error()
	if i := strings.Index(msg, reasonStringMarker); i >= 0 {
		rest := msg[i+len(reasonStringMarker):]
		if j := strings.Index(rest, "'"); j >= 0 {
			rest = rest[:j]
		}
		return rest, true
	}
	if i := strings.Index(msg, revertMarker); i >= 0 {
		rest := strings.TrimSpace(msg[i+len(revertMarker):])
		rest = strings.TrimSpace(strings.TrimPrefix(rest, ":"))
		return rest, true
	}
	return "", false
}

// ReasonFromData decodes Error(string) revert data as returned in JSON-RPC error data.
func ReasonFromData(data any) (string, bool) {
	var raw []byte
	switch v := data.(type) {
	case string:
		b, err := hexutil.Decode(v)
		if err != nil {
			return "", false
		}
		raw = b
	case []byte:
		raw = v
	case hexutil.Bytes:
		raw = v
	default:
		return "", false
	}

	reason, err := abi.UnpackRevert(raw)
	if err != nil {
		return "", false
	}
	return reason, true
}
