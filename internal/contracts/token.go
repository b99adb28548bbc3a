package contracts

import (
	"context"
	"math/big"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/accounts/abi/bind/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type Metadata struct {
	Address     string `json:"address"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Decimals    uint8  `json:"decimals"`
	TotalSupply string `json:"totalSupply"`
}

// TransferEvent mirrors Transfer(address indexed from, address indexed to, uint256 value).
type TransferEvent struct {
	From  common.Address
	To    common.Address
	Value *big.Int
}

type Token struct {
	*Handle
}

func NewToken(address string, backend bind.ContractBackend, opts *bind.TransactOpts) (*Token, error) {
	h, err := Bind(address, TokenDescriptor, backend, opts)
	if err != nil {
		return nil, err
	}
	return &Token{Handle: h}, nil
}

func (t *Token) Name(ctx context.Context) (string, error) {
	return callOne[string](ctx, t.Handle, "name")
}

func (t *Token) Symbol(ctx context.Context) (string, error) {
	return callOne[string](ctx, t.Handle, "symbol")
}

func (t *Token) Decimals(ctx context.Context) (uint8, error) {
	return callOne[uint8](ctx, t.Handle, "decimals")
}

func (t *Token) TotalSupply(ctx context.Context) (*big.Int, error) {
	return callOne[*big.Int](ctx, t.Handle, "totalSupply")
}

func (t *Token) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	return callOne[*big.Int](ctx, t.Handle, "balanceOf", account)
}

func (t *Token) Owner(ctx context.Context) (common.Address, error) {
	return callOne[common.Address](ctx, t.Handle, "owner")
}

func (t *Token) Mint(ctx context.Context, to common.Address, amount *big.Int) (*types.Transaction, error) {
	return t.Transact(ctx, "mint", to, amount)
}

func (t *Token) Transfer(ctx context.Context, to common.Address, amount *big.Int) (*types.Transaction, error) {
	return t.Transact(ctx, "transfer", to, amount)
}

// Metadata reads the descriptive fields of the token. The name is optional.
func (t *Token) Metadata(ctx context.Context) (Metadata, error) {
	symbol, err := t.Symbol(ctx)
	if err != nil {
		return Metadata{}, errors.Wrap(err, "symbol")
	}
	decimals, err := t.Decimals(ctx)
	if err != nil {
		return Metadata{}, errors.Wrap(err, "decimals")
	}
	supply, err := t.TotalSupply(ctx)
	if err != nil {
		return Metadata{}, errors.Wrap(err, "totalSupply")
	}

	name := ""
	if n, err := t.Name(ctx); err == nil {
		name = n
	}

	return Metadata{
		Address:     t.Address().Hex(),
		Name:        name,
		Symbol:      symbol,
		Decimals:    decimals,
		TotalSupply: supply.String(),
	}, nil
}

// UnpackTransfer decodes one Transfer log; indexed topics are filled in by the binding.
func (t *Token) UnpackTransfer(log types.Log) (TransferEvent, error) {
	var ev TransferEvent
	if err := t.UnpackLog(&ev, "Transfer", log); err != nil {
		return TransferEvent{}, errors.Wrap(err, "unpack Transfer")
	}
	return ev, nil
}
