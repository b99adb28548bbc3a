// Package session owns the wallet session: who is connected, on which network, with which
// contract handles, and whether that account owns the registry. Only Manager mutates the
// session; everyone else works from Snapshot values.
package session

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/relieftoken/drt-client/internal/apperr"
	"github.com/relieftoken/drt-client/internal/chains"
	"github.com/relieftoken/drt-client/internal/contracts"
	"github.com/relieftoken/drt-client/internal/readcache"
	"github.com/relieftoken/drt-client/internal/wallet"
)

var (
	// ErrConnectInProgress is returned to a Connect that overlaps another; it never prompts.
	ErrConnectInProgress = errors.New("connect already in progress")
	ErrNotConnected      = errors.New("wallet is not connected")
)

type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

type Config struct {
	ReconnectOnNetworkChange bool `mapstructure:"reconnectOnNetworkChange"`
}

// Snapshot is an immutable copy of the session published to observers.
type Snapshot struct {
	State      State  `json:"state"`
	Account    string `json:"account,omitempty"`
	IsOwner    bool   `json:"isOwner"`
	ChainID    uint64 `json:"chainId,omitempty"`
	Network    string `json:"network,omitempty"`
	Registry   string `json:"registry,omitempty"`
	Token      string `json:"token,omitempty"`
	Explorer   string `json:"explorer,omitempty"`
	Generation uint64 `json:"generation"`
	LastError  string `json:"lastError,omitempty"`
}

func (s Snapshot) IsConnected() bool { return s.Account != "" }

// Binding is what a write needs from a connected session.
type Binding struct {
	Account    common.Address
	Network    chains.ResolvedChain
	Registry   *contracts.Registry
	Token      *contracts.Token
	Backend    chains.Backend
	Generation uint64
}

// fields is the session proper. It is replaced as a whole, never field by field.
type fields struct {
	state    State
	account  common.Address
	hasAcct  bool
	isOwner  bool
	conn     *chains.Connection
	registry *contracts.Registry
	token    *contracts.Token
}

type Manager struct {
	provider *chains.Provider
	cache    *readcache.Store
	cfg      Config

	// opMu serialises transitions: Connect, Disconnect and wallet event handling.
	opMu       sync.Mutex
	connecting atomic.Bool

	mu         sync.RWMutex
	cur        fields
	generation uint64
	lastErr    string

	feed  event.Feed
	scope event.SubscriptionScope

	ctx     context.Context
	cancel  context.CancelFunc
	events  chan wallet.Event
	walletS event.Subscription
	wg      sync.WaitGroup
}

// New creates a disconnected session and starts following wallet events.
func New(provider *chains.Provider, cache *readcache.Store, cfg Config) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		provider: provider,
		cache:    cache,
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
		events:   make(chan wallet.Event, 16),
	}

	m.walletS = provider.Subscribe(m.events)
	m.wg.Add(1)
	go m.loop()
	return m
}

// Close stops event processing. The session is left as is.
func (m *Manager) Close() {
	m.cancel()
	m.walletS.Unsubscribe()
	m.wg.Wait()
	m.scope.Close()
}

// Subscribe publishes every new snapshot to ch. Slow receivers delay the session, so the
// channel should be buffered and drained.
func (m *Manager) Subscribe(ch chan<- Snapshot) event.Subscription {
	return m.scope.Track(m.feed.Subscribe(ch))
}

func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

func (m *Manager) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cur.hasAcct
}

func (m *Manager) snapshotLocked() Snapshot {
	s := Snapshot{
		State:      m.cur.state,
		IsOwner:    m.cur.isOwner,
		Generation: m.generation,
		LastError:  m.lastErr,
	}
	if m.cur.hasAcct {
		s.Account = m.cur.account.Hex()
	}
	if m.cur.conn != nil {
		network := m.cur.conn.Network()
		s.ChainID = network.ChainID
		s.Network = network.NetworkName
		s.Registry = network.Registry
		s.Token = network.Token
		s.Explorer = network.Explorer
	}
	return s
}

// Binding returns the handles of the connected account for a write.
func (m *Manager) Binding() (Binding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.cur.state != Connected || !m.cur.hasAcct {
		return Binding{}, ErrNotConnected
	}
	return Binding{
		Account:    m.cur.account,
		Network:    m.cur.conn.Network(),
		Registry:   m.cur.registry,
		Token:      m.cur.token,
		Backend:    m.cur.conn.Backend(),
		Generation: m.generation,
	}, nil
}

// set replaces the session, records err (nil clears it) and publishes the result.
// Caller holds opMu.
func (m *Manager) set(next fields, bump bool, err error) {
	m.mu.Lock()
	m.cur = next
	if bump {
		m.generation++
	}
	m.lastErr = apperr.UserMessage(err)
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.feed.Send(snap)
}

func (m *Manager) current() fields {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cur
}

// Connect runs the connect sequence: wallet connection, account prompt, handle binding and
// owner detection. On failure the session is exactly what it was before.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.connecting.CompareAndSwap(false, true) {
		return ErrConnectInProgress
	}
	defer m.connecting.Store(false)

	m.opMu.Lock()
	defer m.opMu.Unlock()

	prev := m.current()
	if prev.state == Connected {
		return nil
	}

	connecting := prev
	connecting.state = Connecting
	m.set(connecting, false, nil)

	err := m.connect(ctx, true)
	if err != nil {
		log.Warn("wallet connect failed", "error", err)
		m.set(prev, false, err)
		return err
	}
	return nil
}

// connect performs the sequence and commits on success only. Caller holds opMu.
func (m *Manager) connect(ctx context.Context, prompt bool) error {
	conn, err := m.provider.Connect(ctx)
	if err != nil {
		return err
	}

	var accounts []common.Address
	if prompt {
		accounts, err = conn.RequestAccounts(ctx)
	} else {
		accounts, err = conn.Transport().Accounts(ctx)
	}
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		if prompt {
			return apperr.UserRejected(errors.New("wallet returned no accounts"))
		}
		return ErrNotConnected
	}
	return m.establish(ctx, conn, accounts[0])
}

// establish binds both handles for account and reads the registry owner. Caller holds opMu.
func (m *Manager) establish(ctx context.Context, conn *chains.Connection, account common.Address) error {
	network := conn.Network()
	opts := conn.TransactOpts(account)

	registry, err := contracts.NewRegistry(network.Registry, conn.Backend(), opts)
	if err != nil {
		return err
	}
	token, err := contracts.NewToken(network.Token, conn.Backend(), opts)
	if err != nil {
		return err
	}
	owner, err := registry.Owner(ctx)
	if err != nil {
		return err
	}

	m.cache.Purge()
	m.set(fields{
		state:    Connected,
		account:  account,
		hasAcct:  true,
		isOwner:  contracts.SameAddress(owner.Hex(), account.Hex()),
		conn:     conn,
		registry: registry,
		token:    token,
	}, true, nil)

	log.Info("wallet connected",
		"account", account.Hex(),
		"network", network.NetworkName,
		"chainId", network.ChainID,
	)
	return nil
}

// Disconnect forgets the session locally. The wallet itself keeps its permissions.
func (m *Manager) Disconnect() {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if cur := m.current(); cur.state == Disconnected && !cur.hasAcct {
		return
	}
	m.cache.Purge()
	m.set(fields{}, true, nil)
	log.Info("wallet disconnected")
}

func (m *Manager) loop() {
	defer m.wg.Done()

	for {
		select {
		case ev := <-m.events:
			m.handle(ev)
		case err := <-m.walletS.Err():
			if err != nil {
				log.Error("wallet event subscription failed", "error", err)
			}
			return
		case <-m.ctx.Done():
			return
		}
	}
}

func (m *Manager) handle(ev wallet.Event) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if m.current().state != Connected {
		return
	}

	switch ev.Kind {
	case wallet.AccountsChanged:
		m.accountsChanged(ev.Accounts)
	case wallet.ChainChanged:
		m.chainChanged(ev)
	}
}

func (m *Manager) accountsChanged(accounts []common.Address) {
	m.cache.Purge()

	if len(accounts) == 0 {
		m.set(fields{}, true, nil)
		log.Info("wallet exposed no accounts, session cleared")
		return
	}

	conn := m.current().conn
	if err := m.establish(m.ctx, conn, accounts[0]); err != nil {
		log.Warn("reconnect after account change failed", "account", accounts[0].Hex(), "error", err)
		m.set(fields{}, true, err)
	}
}

// chainChanged drops everything bound to the previous network before anything else can
// use it, then optionally reconnects on the new one.
func (m *Manager) chainChanged(ev wallet.Event) {
	m.cache.Purge()
	m.set(fields{}, true, nil)
	log.Info("wallet network changed, session reset", "chainId", ev.ChainID)

	if !m.cfg.ReconnectOnNetworkChange {
		return
	}
	if err := m.connect(m.ctx, false); err != nil {
		log.Warn("reconnect after network change failed", "error", err)
		m.set(fields{}, false, err)
	}
}
