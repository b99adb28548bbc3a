// Package chaintest provides an in-memory node that executes the registry and token
// contracts, and a scripted wallet, for tests of the session and transaction layers.
package chaintest

import (
	"context"
	"math/big"
	"sync"

	"github.com/cockroachdb/errors"
	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/relieftoken/drt-client/internal/chains"
)

var _ chains.Backend = (*Chain)(nil)

const estimatedGas = 150_000

var (
	baseFee = big.NewInt(1_000_000_000)
	tipCap  = big.NewInt(1_000_000_000)
	code    = []byte{0x60, 0x80, 0x60, 0x40}
)

// Chain mines every accepted transaction into its own block immediately.
type Chain struct {
	mu sync.Mutex

	chainID  *big.Int
	owner    common.Address
	registry common.Address
	token    common.Address
	signer   types.Signer

	state    *state
	nonces   map[common.Address]uint64
	head     uint64
	logs     []types.Log
	receipts map[common.Hash]*types.Receipt
	held     map[common.Hash]bool

	holdReceipts bool
	forceInclude bool
	failures     map[string]error
	calls        map[string]int
}

func NewChain(chainID int64, owner common.Address) *Chain {
	id := big.NewInt(chainID)
	return &Chain{
		chainID:  id,
		owner:    owner,
		registry: crypto.CreateAddress(owner, 0),
		token:    crypto.CreateAddress(owner, 1),
		signer:   types.LatestSignerForChainID(id),
		state:    newState(),
		nonces:   map[common.Address]uint64{owner: 2},
		head:     1,
		receipts: make(map[common.Hash]*types.Receipt),
		held:     make(map[common.Hash]bool),
		failures: make(map[string]error),
		calls:    make(map[string]int),
	}
}

func (c *Chain) Registry() common.Address { return c.registry }
func (c *Chain) Token() common.Address    { return c.token }
func (c *Chain) Owner() common.Address    { return c.owner }
func (c *Chain) ID() *big.Int             { return new(big.Int).Set(c.chainID) }

// HoldReceipts keeps mined receipts invisible until Release is called.
func (c *Chain) HoldReceipts(hold bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.holdReceipts = hold
}

func (c *Chain) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for h := range c.held {
		delete(c.held, h)
	}
}

// ForceInclude makes gas estimation succeed even for reverting calls, so the revert
// surfaces on the mined receipt instead of at submission.
func (c *Chain) ForceInclude(force bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.forceInclude = force
}

// FailNext makes the next call of the named backend method return err.
func (c *Chain) FailNext(method string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[method] = err
}

func (c *Chain) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

func (c *Chain) SetBeneficiary(account common.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.beneficiaries[account] = true
}

func (c *Chain) SetVendor(account common.Address, category uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.vendors[account] = category
}

// SetBalance credits account directly, without a Transfer log.
func (c *Chain) SetBalance(account common.Address, v *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.supply = new(big.Int).Add(new(big.Int).Sub(c.state.supply, c.state.balance(account)), v)
	c.state.balances[account] = new(big.Int).Set(v)
}

func (c *Chain) BalanceOf(account common.Address) *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return new(big.Int).Set(c.state.balance(account))
}

func (c *Chain) IsBeneficiary(account common.Address) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.beneficiaries[account]
}

// enter records a call and returns an injected failure, if any. Caller holds mu.
func (c *Chain) enter(method string) error {
	c.calls[method]++
	if err, ok := c.failures[method]; ok {
		delete(c.failures, method)
		return err
	}
	return nil
}

func (c *Chain) ChainID(context.Context) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("ChainID"); err != nil {
		return nil, err
	}
	return new(big.Int).Set(c.chainID), nil
}

func (c *Chain) CodeAt(_ context.Context, account common.Address, _ *big.Int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("CodeAt"); err != nil {
		return nil, err
	}
	return c.codeOf(account), nil
}

func (c *Chain) PendingCodeAt(_ context.Context, account common.Address) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.codeOf(account), nil
}

func (c *Chain) codeOf(account common.Address) []byte {
	if account == c.registry || account == c.token {
		return code
	}
	return nil
}

func (c *Chain) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("CallContract"); err != nil {
		return nil, err
	}
	if msg.To == nil {
		return nil, errors.New("contract creation is not supported")
	}
	ret, _, err := c.exec(c.state.clone(), msg.From, *msg.To, msg.Data)
	return ret, err
}

func (c *Chain) EstimateGas(_ context.Context, msg ethereum.CallMsg) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("EstimateGas"); err != nil {
		return 0, err
	}
	if msg.To == nil {
		return 0, errors.New("contract creation is not supported")
	}
	if c.forceInclude {
		return estimatedGas, nil
	}
	if _, _, err := c.exec(c.state.clone(), msg.From, *msg.To, msg.Data); err != nil {
		return 0, err
	}
	return estimatedGas, nil
}

func (c *Chain) SuggestGasPrice(context.Context) (*big.Int, error) {
	return new(big.Int).Add(baseFee, tipCap), nil
}

func (c *Chain) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return new(big.Int).Set(tipCap), nil
}

func (c *Chain) HeaderByNumber(_ context.Context, number *big.Int) (*types.Header, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("HeaderByNumber"); err != nil {
		return nil, err
	}
	n := c.head
	if number != nil && number.Sign() >= 0 {
		if number.Uint64() > c.head {
			return nil, ethereum.NotFound
		}
		n = number.Uint64()
	}
	return &types.Header{
		Number:  new(big.Int).SetUint64(n),
		BaseFee: new(big.Int).Set(baseFee),
		Time:    n * 12,
	}, nil
}

func (c *Chain) PendingNonceAt(_ context.Context, account common.Address) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nonces[account], nil
}

func (c *Chain) SendTransaction(_ context.Context, tx *types.Transaction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("SendTransaction"); err != nil {
		return err
	}

	from, err := types.Sender(c.signer, tx)
	if err != nil {
		return errors.Wrap(err, "invalid sender")
	}
	if tx.To() == nil {
		return errors.New("contract creation is not supported")
	}
	if want := c.nonces[from]; tx.Nonce() != want {
		return errors.Newf("invalid nonce: have %d, want %d", tx.Nonce(), want)
	}
	c.nonces[from]++
	c.head++

	blockHash := crypto.Keccak256Hash(new(big.Int).SetUint64(c.head).Bytes(), c.chainID.Bytes())
	receipt := &types.Receipt{
		Type:              tx.Type(),
		Status:            types.ReceiptStatusSuccessful,
		CumulativeGasUsed: estimatedGas,
		GasUsed:           estimatedGas,
		TxHash:            tx.Hash(),
		BlockHash:         blockHash,
		BlockNumber:       new(big.Int).SetUint64(c.head),
	}

	next := c.state.clone()
	if _, logs, err := c.exec(next, from, *tx.To(), tx.Data()); err != nil {
		receipt.Status = types.ReceiptStatusFailed
	} else {
		c.state = next
		for i := range logs {
			logs[i].BlockNumber = c.head
			logs[i].BlockHash = blockHash
			logs[i].TxHash = tx.Hash()
			logs[i].Index = uint(len(c.logs))
			c.logs = append(c.logs, logs[i])
			receipt.Logs = append(receipt.Logs, &c.logs[len(c.logs)-1])
		}
	}

	c.receipts[tx.Hash()] = receipt
	if c.holdReceipts {
		c.held[tx.Hash()] = true
	}
	return nil
}

func (c *Chain) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("TransactionReceipt"); err != nil {
		return nil, err
	}
	r, ok := c.receipts[hash]
	if !ok || c.held[hash] {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func (c *Chain) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("FilterLogs"); err != nil {
		return nil, err
	}

	from, to := uint64(0), c.head
	if q.FromBlock != nil {
		from = q.FromBlock.Uint64()
	}
	if q.ToBlock != nil && q.ToBlock.Uint64() < to {
		to = q.ToBlock.Uint64()
	}

	var out []types.Log
	for _, l := range c.logs {
		if l.BlockNumber < from || l.BlockNumber > to {
			continue
		}
		if len(q.Addresses) > 0 && !containsAddress(q.Addresses, l.Address) {
			continue
		}
		if !matchTopics(q.Topics, l.Topics) {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (c *Chain) SubscribeFilterLogs(context.Context, ethereum.FilterQuery, chan<- types.Log) (ethereum.Subscription, error) {
	return nil, errors.New("log subscriptions are not supported")
}

func containsAddress(list []common.Address, a common.Address) bool {
	for _, x := range list {
		if x == a {
			return true
		}
	}
	return false
}

func matchTopics(query [][]common.Hash, topics []common.Hash) bool {
	for i, alternatives := range query {
		if len(alternatives) == 0 {
			continue
		}
		if i >= len(topics) {
			return false
		}
		ok := false
		for _, t := range alternatives {
			if t == topics[i] {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}
