package txflow

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type Action string

const (
	ActionAddBeneficiary Action = "addBeneficiary"
	ActionAddVendor      Action = "addVendor"
	ActionMint           Action = "mint"
	ActionTransfer       Action = "transfer"
)

type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// Outcome is the resolution of a submitted write.
type Outcome struct {
	Status  Status
	Message string
	Receipt *types.Receipt
	Err     error
}

// Ticket tracks one submitted write from Submitted{hash} to its final outcome.
type Ticket struct {
	ID          string
	Action      Action
	Hash        common.Hash
	SubmittedAt time.Time

	done     chan struct{}
	observed func()

	mu         sync.Mutex
	outcome    Outcome
	resolvedAt time.Time
}

func newTicket(id string, action Action, hash common.Hash, observed func()) *Ticket {
	return &Ticket{
		ID:          id,
		Action:      action,
		Hash:        hash,
		SubmittedAt: time.Now(),
		done:        make(chan struct{}),
		observed:    observed,
		outcome:     Outcome{Status: StatusSubmitted},
	}
}

func (t *Ticket) resolve(o Outcome) {
	t.mu.Lock()
	t.outcome = o
	t.resolvedAt = time.Now()
	t.mu.Unlock()
	close(t.done)
}

// Done is closed once the outcome is known.
func (t *Ticket) Done() <-chan struct{} { return t.done }

// Wait blocks until the write resolves or ctx ends. Giving up does not stop the
// confirmation wait; the outcome is still applied.
func (t *Ticket) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-t.done:
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}

	t.mu.Lock()
	o := t.outcome
	t.mu.Unlock()

	if t.observed != nil {
		t.observed()
	}
	return o, nil
}

// View is the serialisable state of a ticket.
type View struct {
	ID          string     `json:"id"`
	Action      Action     `json:"action"`
	Hash        string     `json:"hash"`
	Status      Status     `json:"status"`
	Message     string     `json:"message,omitempty"`
	BlockNumber uint64     `json:"blockNumber,omitempty"`
	SubmittedAt time.Time  `json:"submittedAt"`
	ResolvedAt  *time.Time `json:"resolvedAt,omitempty"`
}

func (t *Ticket) View() View {
	t.mu.Lock()
	defer t.mu.Unlock()

	v := View{
		ID:          t.ID,
		Action:      t.Action,
		Hash:        t.Hash.Hex(),
		Status:      t.outcome.Status,
		Message:     t.outcome.Message,
		SubmittedAt: t.SubmittedAt,
	}
	if t.outcome.Receipt != nil && t.outcome.Receipt.BlockNumber != nil {
		v.BlockNumber = t.outcome.Receipt.BlockNumber.Uint64()
	}
	if !t.resolvedAt.IsZero() {
		at := t.resolvedAt
		v.ResolvedAt = &at
	}
	return v
}

func (v View) Resolved() bool { return v.Status != StatusSubmitted }
