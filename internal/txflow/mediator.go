// Package txflow mediates every state-changing call: validate, submit, wait for the
// receipt, then reconcile the client's cached reads with what the chain now says.
package txflow

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/relieftoken/drt-client/internal/apperr"
	"github.com/relieftoken/drt-client/internal/constants"
	"github.com/relieftoken/drt-client/internal/contracts"
	"github.com/relieftoken/drt-client/internal/readcache"
	"github.com/relieftoken/drt-client/internal/session"
	"github.com/relieftoken/drt-client/internal/units"
)

var (
	// ErrActionPending is returned when a write of the same kind has not resolved yet.
	ErrActionPending = errors.New("a request of this kind is already pending")
	ErrUnknownTicket = errors.New("unknown transaction id")
)

// DefaultTicketTTL bounds how long a resolved ticket stays retrievable when nobody looks it up.
const DefaultTicketTTL = 10 * time.Minute

// maxAmount is the largest value a uint256 amount argument can carry.
var maxAmount = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// Session is the part of the session the mediator writes through.
type Session interface {
	Binding() (session.Binding, error)
}

type request struct {
	action Action
	amount string
	send   func(ctx context.Context, b session.Binding) (*types.Transaction, error)
	// reconcile invalidates every cached read the write could have changed.
	reconcile func(b session.Binding)
}

type Mediator struct {
	session Session
	cache   *readcache.Store
	metrics *Metrics

	// submitMu keeps nonce assignment and broadcast of one write from interleaving with
	// another; confirmation waits run outside it.
	submitMu sync.Mutex

	mu      sync.Mutex
	busy    map[Action]bool
	tickets map[string]*Ticket
	// ticketTTL is how long a resolved ticket is kept for Lookup.
	ticketTTL time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewMediator(s Session, cache *readcache.Store, metrics *Metrics) *Mediator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Mediator{
		session:   s,
		cache:     cache,
		metrics:   metrics,
		busy:      make(map[Action]bool),
		tickets:   make(map[string]*Ticket),
		ticketTTL: DefaultTicketTTL,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Close abandons outstanding confirmation waits and waits for their goroutines.
func (m *Mediator) Close() {
	m.cancel()
	m.wg.Wait()
}

func (m *Mediator) AddBeneficiary(ctx context.Context, account string) (*Ticket, error) {
	addr, err := requireAddress("beneficiary address", account)
	if err != nil {
		return nil, err
	}
	return m.submit(ctx, request{
		action: ActionAddBeneficiary,
		send: func(ctx context.Context, b session.Binding) (*types.Transaction, error) {
			return b.Registry.AddBeneficiary(ctx, addr)
		},
		reconcile: func(session.Binding) { m.cache.InvalidateRoles(addr) },
	})
}

func (m *Mediator) AddVendor(ctx context.Context, account string, category contracts.Category) (*Ticket, error) {
	addr, err := requireAddress("vendor address", account)
	if err != nil {
		return nil, err
	}
	if category == contracts.CategoryNone || !category.Valid() {
		return nil, apperr.Validation("vendor category must be Food or Medicine")
	}
	return m.submit(ctx, request{
		action: ActionAddVendor,
		send: func(ctx context.Context, b session.Binding) (*types.Transaction, error) {
			return b.Registry.AddVendor(ctx, addr, category)
		},
		reconcile: func(session.Binding) { m.cache.InvalidateRoles(addr) },
	})
}

func (m *Mediator) Mint(ctx context.Context, to, amount string) (*Ticket, error) {
	addr, err := requireAddress("recipient address", to)
	if err != nil {
		return nil, err
	}
	value, err := requireAmount(amount)
	if err != nil {
		return nil, err
	}
	return m.submit(ctx, request{
		action: ActionMint,
		amount: strings.TrimSpace(amount),
		send: func(ctx context.Context, b session.Binding) (*types.Transaction, error) {
			return b.Token.Mint(ctx, addr, value)
		},
		reconcile: func(session.Binding) { m.cache.InvalidateBalances(addr) },
	})
}

func (m *Mediator) Transfer(ctx context.Context, to, amount string) (*Ticket, error) {
	addr, err := requireAddress("recipient address", to)
	if err != nil {
		return nil, err
	}
	value, err := requireAmount(amount)
	if err != nil {
		return nil, err
	}
	return m.submit(ctx, request{
		action: ActionTransfer,
		amount: strings.TrimSpace(amount),
		send: func(ctx context.Context, b session.Binding) (*types.Transaction, error) {
			return b.Token.Transfer(ctx, addr, value)
		},
		reconcile: func(b session.Binding) { m.cache.InvalidateBalances(b.Account, addr) },
	})
}

func requireAddress(field, raw string) (common.Address, error) {
	if strings.TrimSpace(raw) == "" {
		return common.Address{}, apperr.Required(field)
	}
	return contracts.ParseAddress(raw)
}

func requireAmount(raw string) (*big.Int, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, apperr.Required("amount")
	}
	v, err := units.ParseUnits(raw, constants.TokenDecimals)
	if err != nil {
		return nil, apperr.Validation("invalid amount %q: %v", raw, err)
	}
	if v.Sign() <= 0 {
		return nil, apperr.Validation("amount must be greater than zero")
	}
	if v.Cmp(maxAmount) > 0 {
		return nil, apperr.Validation("amount %q is too large", raw)
	}
	return v, nil
}

func (m *Mediator) submit(ctx context.Context, req request) (*Ticket, error) {
	b, err := m.session.Binding()
	if err != nil {
		return nil, err
	}
	if !m.acquire(req.action) {
		return nil, ErrActionPending
	}

	m.submitMu.Lock()
	tx, err := req.send(ctx, b)
	m.submitMu.Unlock()
	if err != nil {
		m.release(req.action)
		m.metrics.count(req.action, StatusFailed)
		log.Warn("transaction submission failed", "action", req.action, "from", b.Account.Hex(), "error", err)
		return nil, humanize(err)
	}

	id := uuid.NewString()
	ticket := newTicket(id, req.action, tx.Hash(), func() { m.forget(id) })

	m.mu.Lock()
	m.tickets[id] = ticket
	m.mu.Unlock()

	m.metrics.count(req.action, StatusSubmitted)
	log.Info("transaction submitted", "action", req.action, "id", id, "tx", tx.Hash().Hex())

	m.wg.Add(1)
	go m.await(ticket, b, tx, req)
	return ticket, nil
}

// await waits for the receipt with no deadline of its own, then reconciles.
func (m *Mediator) await(t *Ticket, b session.Binding, tx *types.Transaction, req request) {
	defer m.wg.Done()

	var outcome Outcome
	receipt, err := bind.WaitMined(m.ctx, b.Backend, tx.Hash())
	switch {
	case err != nil:
		err = apperr.Network(err, "wait for "+string(req.action))
		outcome = Outcome{Status: StatusFailed, Message: apperr.UserMessage(err), Err: err}
	case receipt.Status != types.ReceiptStatusSuccessful:
		err = humanize(m.revertOf(b, tx, receipt))
		outcome = Outcome{Status: StatusFailed, Message: apperr.UserMessage(err), Receipt: receipt, Err: err}
	default:
		m.metrics.confirmed(req.action, t.SubmittedAt)
		outcome = Outcome{Status: StatusConfirmed, Message: successMessage(req.action, req.amount), Receipt: receipt}
	}

	req.reconcile(b)
	m.metrics.count(req.action, outcome.Status)

	if outcome.Err != nil {
		log.Warn("transaction failed", "action", req.action, "tx", tx.Hash().Hex(), "error", outcome.Err)
	} else {
		log.Info("transaction confirmed", "action", req.action, "tx", tx.Hash().Hex(), "block", receipt.BlockNumber,
			"elapsed", time.Since(t.SubmittedAt).Round(time.Millisecond))
	}
	m.release(req.action)
	t.resolve(outcome)
	time.AfterFunc(m.ticketTTL, func() { m.forget(t.ID) })
}

// revertOf recovers the reason of a mined but failed transaction by replaying it against
// the state of its block.
func (m *Mediator) revertOf(b session.Binding, tx *types.Transaction, receipt *types.Receipt) error {
	_, err := b.Backend.CallContract(m.ctx, ethereum.CallMsg{
		From:  b.Account,
		To:    tx.To(),
		Gas:   tx.Gas(),
		Value: tx.Value(),
		Data:  tx.Data(),
	}, receipt.BlockNumber)

	if reason, ok := contracts.DecodeRevert(err); ok {
		return apperr.NewContractRevert(reason, "", err)
	}
	return apperr.NewContractRevert("", "", errors.Newf("transaction %s reverted", tx.Hash().Hex()))
}

func (m *Mediator) acquire(action Action) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.busy[action] {
		return false
	}
	m.busy[action] = true
	return true
}

func (m *Mediator) release(action Action) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.busy, action)
}

// Pending reports whether a write of this kind is in flight.
func (m *Mediator) Pending(action Action) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.busy[action]
}

// Lookup returns the current view of a ticket. A resolved ticket is dropped once it has
// been looked up, or after the ticket TTL when it never is.
func (m *Mediator) Lookup(id string) (View, error) {
	m.mu.Lock()
	t, ok := m.tickets[id]
	m.mu.Unlock()
	if !ok {
		return View{}, ErrUnknownTicket
	}

	v := t.View()
	if v.Resolved() {
		m.forget(id)
	}
	return v, nil
}

func (m *Mediator) forget(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tickets, id)
}

// WaitAll blocks until every outstanding ticket has resolved or ctx ends.
func (m *Mediator) WaitAll(ctx context.Context) error {
	m.mu.Lock()
	pending := make([]*Ticket, 0, len(m.tickets))
	for _, t := range m.tickets {
		pending = append(pending, t)
	}
	m.mu.Unlock()

	for _, t := range pending {
		select {
		case <-t.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
