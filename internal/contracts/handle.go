package contracts

import (
	"context"
	"math/big"

	"github.com/cockroachdb/errors"
	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/relieftoken/drt-client/internal/apperr"
)

// ErrNoSigner is returned by Transact on a handle bound without a signer.
var ErrNoSigner = errors.New("contract handle is read-only (no signer)")

// Handle is a callable binding of one contract interface at one address. A handle is
// immutable once bound: two handles for the same contract with different signers are
// independent values.
type Handle struct {
	address common.Address
	desc    Descriptor
	backend bind.ContractBackend
	opts    *bind.TransactOpts
	bound   *bind.BoundContract
}

// Bind validates the address and produces a handle. opts may be nil for a read-only
// (observer) handle. No network round-trip happens here.
func Bind(address string, desc Descriptor, backend bind.ContractBackend, opts *bind.TransactOpts) (*Handle, error) {
	addr, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}
	if backend == nil {
		return nil, errors.Newf("bind %s: backend is nil", desc.Name)
	}

	var signer *bind.TransactOpts
	if opts != nil {
		cp := *opts
		signer = &cp
	}

	return &Handle{
		address: addr,
		desc:    desc,
		backend: backend,
		opts:    signer,
		bound:   bind.NewBoundContract(addr, desc.ABI, backend, backend, backend),
	}, nil
}

func (h *Handle) Address() common.Address { return h.address }

func (h *Handle) Backend() bind.ContractBackend { return h.backend }

func (h *Handle) CanTransact() bool { return h.opts != nil && h.opts.Signer != nil }

// From returns the signer account, or the zero address for read-only handles.
func (h *Handle) From() common.Address {
	if h.opts == nil {
		return common.Address{}
	}
	return h.opts.From
}

// Call performs a read-only call and returns the decoded outputs.
func (h *Handle) Call(ctx context.Context, method string, args ...any) ([]any, error) {
	opts := &bind.CallOpts{Context: ctx}
	if h.opts != nil {
		opts.From = h.opts.From
	}

	var out []any
	if err := h.bound.Call(opts, &out, method, args...); err != nil {
		return nil, classify(err, h.desc.Name+"."+method)
	}
	return out, nil
}

// Transact signs and submits a state-changing call. It returns as soon as the node accepted
// the transaction; confirmation is the caller's concern.
func (h *Handle) Transact(ctx context.Context, method string, args ...any) (*types.Transaction, error) {
	if !h.CanTransact() {
		return nil, ErrNoSigner
	}
	opts := *h.opts
	opts.Context = ctx

	tx, err := h.bound.Transact(&opts, method, args...)
	if err != nil {
		return nil, classify(err, h.desc.Name+"."+method)
	}
	return tx, nil
}

// FilterLogs returns the raw logs of one event emitted by this contract in [from, to].
// A nil bound means "latest" for to and genesis for from.
func (h *Handle) FilterLogs(ctx context.Context, event string, from, to *big.Int) ([]types.Log, error) {
	ev, ok := h.desc.ABI.Events[event]
	if !ok {
		return nil, errors.Newf("%s: unknown event %q", h.desc.Name, event)
	}

	logs, err := h.backend.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: from,
		ToBlock:   to,
		Addresses: []common.Address{h.address},
		Topics:    [][]common.Hash{{ev.ID}},
	})
	if err != nil {
		return nil, apperr.Network(err, "filter "+h.desc.Name+"."+event)
	}
	return logs, nil
}

func (h *Handle) UnpackLog(out any, event string, log types.Log) error {
	return h.bound.UnpackLog(out, event, log)
}

func callOne[T any](ctx context.Context, h *Handle, method string, args ...any) (T, error) {
	var zero T
	out, err := h.Call(ctx, method, args...)
	if err != nil {
		return zero, err
	}
	if len(out) != 1 {
		return zero, errors.Newf("%s.%s: expected 1 result, got %d", h.desc.Name, method, len(out))
	}
	v, ok := out[0].(T)
	if !ok {
		return zero, errors.Newf("%s.%s: unexpected result type %T", h.desc.Name, method, out[0])
	}
	return v, nil
}

func classify(err error, op string) error {
	if errors.Is(err, apperr.ErrUserRejected) || errors.Is(err, apperr.ErrNoWallet) {
		return err
	}
	if reason, ok := DecodeRevert(err); ok {
		return apperr.NewContractRevert(reason, "", errors.Wrap(err, op))
	}
	return apperr.Network(err, op)
}
