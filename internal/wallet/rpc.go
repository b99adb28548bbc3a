package wallet

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/accounts/abi/bind/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/relieftoken/drt-client/internal/apperr"
	"github.com/relieftoken/drt-client/internal/constants"
)

// RPCTransport talks to an EIP-1193 style wallet that exposes JSON-RPC (Frame, Clef in
// eth mode, a dev node with unlocked accounts). Account and chain switches are detected
// by polling eth_accounts and eth_chainId.
type RPCTransport struct {
	endpoint string
	client   *rpc.Client
	interval time.Duration

	notifier  notifier
	startOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
}

// DialRPC connects to the wallet endpoint and probes it. An empty endpoint or a wallet
// that does not answer eth_chainId is reported as apperr.ErrNoWallet.
func DialRPC(ctx context.Context, endpoint string, interval time.Duration) (*RPCTransport, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, apperr.NoWallet(errors.New("wallet endpoint is not configured"))
	}

	client, err := rpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, apperr.NoWallet(errors.Wrapf(err, "dial %s", endpoint))
	}
	return newRPCTransport(ctx, endpoint, client, interval)
}

func newRPCTransport(ctx context.Context, endpoint string, client *rpc.Client, interval time.Duration) (*RPCTransport, error) {
	if interval <= 0 {
		interval = constants.DefaultPollIntervalMS * time.Millisecond
	}

	t := &RPCTransport{
		endpoint: endpoint,
		client:   client,
		interval: interval,
	}

	chainID, err := t.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, apperr.NoWallet(err)
	}
	accounts, err := t.Accounts(ctx)
	if err != nil {
		accounts = nil
	}
	t.notifier.baseline(accounts, chainID)

	t.ctx, t.cancel = context.WithCancel(context.Background())
	return t, nil
}

func (t *RPCTransport) Name() string { return "rpc:" + t.endpoint }

func (t *RPCTransport) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address
	if err := t.client.CallContext(ctx, &accounts, "eth_requestAccounts"); err != nil {
		return nil, rpcFailure(err, "eth_requestAccounts")
	}
	if len(accounts) == 0 {
		return nil, apperr.UserRejected(errors.New("wallet returned no accounts"))
	}
	t.notifier.baseline(accounts, nil)
	return accounts, nil
}

func (t *RPCTransport) Accounts(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address
	if err := t.client.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		return nil, rpcFailure(err, "eth_accounts")
	}
	return accounts, nil
}

func (t *RPCTransport) ChainID(ctx context.Context) (*big.Int, error) {
	var id hexutil.Big
	if err := t.client.CallContext(ctx, &id, "eth_chainId"); err != nil {
		return nil, rpcFailure(err, "eth_chainId")
	}
	return (*big.Int)(&id), nil
}

type signTxResult struct {
	Raw hexutil.Bytes `json:"raw"`
}

// Signer asks the wallet to sign with eth_signTransaction. The wallet shows its own
// confirmation prompt; a refusal surfaces as apperr.ErrUserRejected.
func (t *RPCTransport) Signer(account common.Address, chainID *big.Int) bind.SignerFn {
	return func(from common.Address, tx *types.Transaction) (*types.Transaction, error) {
		if from != account {
			return nil, errors.Newf("signer bound to %s cannot sign for %s", account.Hex(), from.Hex())
		}

		args := map[string]any{
			"from":    from,
			"gas":     hexutil.Uint64(tx.Gas()),
			"nonce":   hexutil.Uint64(tx.Nonce()),
			"value":   (*hexutil.Big)(tx.Value()),
			"input":   hexutil.Bytes(tx.Data()),
			"chainId": (*hexutil.Big)(chainID),
		}
		if tx.To() != nil {
			args["to"] = tx.To()
		}
		if tx.Type() == types.DynamicFeeTxType {
			args["maxFeePerGas"] = (*hexutil.Big)(tx.GasFeeCap())
			args["maxPriorityFeePerGas"] = (*hexutil.Big)(tx.GasTipCap())
		} else {
			args["gasPrice"] = (*hexutil.Big)(tx.GasPrice())
		}

		var res signTxResult
		if err := t.client.CallContext(t.ctx, &res, "eth_signTransaction", args); err != nil {
			return nil, rpcFailure(err, "eth_signTransaction")
		}

		signed := new(types.Transaction)
		if err := signed.UnmarshalBinary(res.Raw); err != nil {
			return nil, errors.Wrap(err, "decode signed transaction")
		}
		return signed, nil
	}
}

func (t *RPCTransport) Subscribe(sink chan<- Event) event.Subscription {
	t.startOnce.Do(func() {
		go pollWallet(t.ctx, t.Name(), t.interval, &t.notifier, t.ChainID, t.Accounts)
	})
	return t.notifier.subscribe(sink)
}

func (t *RPCTransport) Close() error {
	t.cancel()
	t.notifier.close()
	t.client.Close()
	return nil
}

// rpcFailure maps EIP-1193 refusal codes to apperr.ErrUserRejected and everything else to
// apperr.ErrNetwork.
func rpcFailure(err error, method string) error {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		switch rpcErr.ErrorCode() {
		case constants.RPCCodeUserRejected, constants.RPCCodeUnauthorized:
			return apperr.UserRejected(errors.Wrap(err, method))
		}
	}
	return apperr.Network(err, method)
}
