package chaintest

import (
	"math/big"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/relieftoken/drt-client/internal/contracts"
)

// Revert reasons of the deployed contracts.
const (
	ReasonNotOwner           = "Ownable: caller is not the owner"
	ReasonNotBeneficiary     = "Sender not a beneficiary"
	ReasonNotVendor          = "Recipient not a vendor"
	ReasonInsufficient       = "Insufficient balance"
	ReasonMintNotBeneficiary = "Recipient not a beneficiary"
	ReasonInvalidCategory    = "Invalid category"
	ReasonAlreadyRegistered  = "Already registered"
)

var revertSelector = []byte{0x08, 0xc3, 0x79, 0xa0}

// RevertError is what a JSON-RPC node returns for a reverted call: code 3 with the ABI
// encoded Error(string) payload as data.
type RevertError struct {
	Reason string
	data   []byte
}

func NewRevertError(reason string) *RevertError {
	stringType, _ := abi.NewType("string", "", nil)
	packed, _ := abi.Arguments{{Type: stringType}}.Pack(reason)
	return &RevertError{Reason: reason, data: append(append([]byte{}, revertSelector...), packed...)}
}

func (e *RevertError) Error() string  { return "execution reverted: " + e.Reason }
func (e *RevertError) ErrorCode() int { return 3 }
func (e *RevertError) ErrorData() any { return hexutil.Encode(e.data) }

type state struct {
	beneficiaries map[common.Address]bool
	vendors       map[common.Address]uint8
	balances      map[common.Address]*big.Int
	supply        *big.Int
}

func newState() *state {
	return &state{
		beneficiaries: make(map[common.Address]bool),
		vendors:       make(map[common.Address]uint8),
		balances:      make(map[common.Address]*big.Int),
		supply:        new(big.Int),
	}
}

// clone is shallow per value; balances are replaced, never mutated in place.
func (s *state) clone() *state {
	next := newState()
	for k, v := range s.beneficiaries {
		next.beneficiaries[k] = v
	}
	for k, v := range s.vendors {
		next.vendors[k] = v
	}
	for k, v := range s.balances {
		next.balances[k] = v
	}
	next.supply = s.supply
	return next
}

func (s *state) balance(account common.Address) *big.Int {
	if b, ok := s.balances[account]; ok {
		return b
	}
	return new(big.Int)
}

// exec runs one call against st, mutating it. Caller holds mu.
func (c *Chain) exec(st *state, from, to common.Address, data []byte) ([]byte, []types.Log, error) {
	var desc contracts.Descriptor
	switch to {
	case c.registry:
		desc = contracts.RegistryDescriptor
	case c.token:
		desc = contracts.TokenDescriptor
	default:
		// Plain value transfer or call into an account without code.
		return nil, nil, nil
	}
	if len(data) < 4 {
		return nil, nil, NewRevertError("")
	}

	method, err := desc.ABI.MethodById(data[:4])
	if err != nil {
		return nil, nil, NewRevertError("")
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, errors.Wrapf(err, "decode %s arguments", method.Name)
	}

	var (
		out  []any
		logs []types.Log
	)
	switch desc.Name + "." + method.Name {
	case "registry.owner", "token.owner":
		out = []any{c.owner}
	case "registry.isBeneficiary", "registry.beneficiaries":
		out = []any{st.beneficiaries[args[0].(common.Address)]}
	case "registry.isVendor":
		_, ok := st.vendors[args[0].(common.Address)]
		out = []any{ok}
	case "registry.getVendorCategory", "registry.vendors":
		out = []any{st.vendors[args[0].(common.Address)]}
	case "registry.addBeneficiary":
		account := args[0].(common.Address)
		if from != c.owner {
			return nil, nil, NewRevertError(ReasonNotOwner)
		}
		if st.beneficiaries[account] {
			return nil, nil, NewRevertError(ReasonAlreadyRegistered)
		}
		st.beneficiaries[account] = true
		logs = append(logs, c.eventLog(desc, c.registry, "BeneficiaryAdded", account))
	case "registry.addVendor":
		account, category := args[0].(common.Address), args[1].(uint8)
		if from != c.owner {
			return nil, nil, NewRevertError(ReasonNotOwner)
		}
		if !contracts.Category(category).Valid() || contracts.Category(category) == contracts.CategoryNone {
			return nil, nil, NewRevertError(ReasonInvalidCategory)
		}
		if _, ok := st.vendors[account]; ok {
			return nil, nil, NewRevertError(ReasonAlreadyRegistered)
		}
		st.vendors[account] = category
		logs = append(logs, c.eventLog(desc, c.registry, "VendorAdded", account, category))
	case "token.name":
		out = []any{"Disaster Relief Token"}
	case "token.symbol":
		out = []any{"DRT"}
	case "token.decimals":
		out = []any{uint8(18)}
	case "token.totalSupply":
		out = []any{new(big.Int).Set(st.supply)}
	case "token.balanceOf":
		out = []any{new(big.Int).Set(st.balance(args[0].(common.Address)))}
	case "token.mint":
		to, amount := args[0].(common.Address), args[1].(*big.Int)
		if from != c.owner {
			return nil, nil, NewRevertError(ReasonNotOwner)
		}
		if !st.beneficiaries[to] {
			return nil, nil, NewRevertError(ReasonMintNotBeneficiary)
		}
		st.balances[to] = new(big.Int).Add(st.balance(to), amount)
		st.supply = new(big.Int).Add(st.supply, amount)
		logs = append(logs,
			c.eventLog(desc, c.token, "Transfer", common.Address{}, to, amount),
			c.eventLog(desc, c.token, "Minted", to, amount),
		)
	case "token.transfer":
		to, amount := args[0].(common.Address), args[1].(*big.Int)
		if !st.beneficiaries[from] {
			return nil, nil, NewRevertError(ReasonNotBeneficiary)
		}
		if _, ok := st.vendors[to]; !ok {
			return nil, nil, NewRevertError(ReasonNotVendor)
		}
		if st.balance(from).Cmp(amount) < 0 {
			return nil, nil, NewRevertError(ReasonInsufficient)
		}
		st.balances[from] = new(big.Int).Sub(st.balance(from), amount)
		st.balances[to] = new(big.Int).Add(st.balance(to), amount)
		logs = append(logs, c.eventLog(desc, c.token, "Transfer", from, to, amount))
		out = []any{true}
	default:
		return nil, nil, NewRevertError("")
	}

	ret, err := method.Outputs.Pack(out...)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "encode %s result", method.Name)
	}
	return ret, logs, nil
}

// eventLog encodes an event; values are given in ABI input order.
func (c *Chain) eventLog(desc contracts.Descriptor, address common.Address, name string, values ...any) types.Log {
	ev := desc.ABI.Events[name]
	topics := []common.Hash{ev.ID}
	var data []any
	for i, in := range ev.Inputs {
		if in.Indexed {
			topics = append(topics, common.BytesToHash(values[i].(common.Address).Bytes()))
			continue
		}
		data = append(data, values[i])
	}
	packed, _ := ev.Inputs.NonIndexed().Pack(data...)
	return types.Log{Address: address, Topics: topics, Data: packed}
}
