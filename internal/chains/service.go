package chains

import (
	"context"
	"math/big"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/accounts/abi/bind/v2"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/relieftoken/drt-client/internal/apperr"
)

// Backend is everything the client needs from a node: contract calls, transactions,
// receipts, logs and the chain id.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
}

// Dialer opens a Backend for an RPC URL.
type Dialer func(ctx context.Context, url string) (Backend, error)

func DialEthclient(ctx context.Context, url string) (Backend, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to connect to blockchain at %s", url)
	}
	return client, nil
}

type ResolvedChain struct {
	NetworkName string
	ChainID     uint64
	Registry    string
	Token       string
	DeployBlock uint64
	Explorer    string

	RPCName string
	URL     string
}

// Service resolves configured networks and keeps one dialed backend per network.
type Service struct {
	cfg  AllChainsConfig
	dial Dialer

	mu       sync.Mutex
	backends map[string]Backend
}

func NewService(cfg AllChainsConfig, dial Dialer) (*Service, error) {
	if len(cfg.Networks) == 0 {
		return nil, errors.New("no networks configured")
	}
	if dial == nil {
		dial = DialEthclient
	}
	cfg.Normalize()

	return &Service{
		cfg:      cfg,
		dial:     dial,
		backends: make(map[string]Backend),
	}, nil
}

// DefaultNetwork resolves the configured default network, or the only one configured.
func (s *Service) DefaultNetwork() (ResolvedChain, error) {
	name := strings.TrimSpace(s.cfg.DefaultNetwork)
	if name == "" {
		if len(s.cfg.Networks) != 1 {
			return ResolvedChain{}, errors.New("default network is not set")
		}
		for n := range s.cfg.Networks {
			name = n
		}
	}
	return s.ResolveNetworkByName(name)
}

// BackendFor returns (and caches) the backend of a resolved network.
func (s *Service) BackendFor(ctx context.Context, chain ResolvedChain) (Backend, error) {
	cacheKey := strings.ToLower(chain.NetworkName)

	s.mu.Lock()
	if existing := s.backends[cacheKey]; existing != nil {
		s.mu.Unlock()
		return existing, nil
	}
	s.mu.Unlock()

	// Dial outside the lock (avoid blocking concurrent readers)
	dialed, err := s.dial(ctx, chain.URL)
	if err != nil {
		return nil, apperr.Network(err, "dial "+chain.NetworkName)
	}

	s.mu.Lock()
	if existing := s.backends[cacheKey]; existing != nil {
		s.mu.Unlock()
		// We raced; close what we just dialed and return existing
		safeClose(dialed)
		return existing, nil
	}
	s.backends[cacheKey] = dialed
	s.mu.Unlock()

	return dialed, nil
}

// Close closes all cached backends (call on shutdown).
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, backend := range s.backends {
		safeClose(backend)
		delete(s.backends, key)
	}
	return nil
}

func safeClose(b Backend) {
	if closer, ok := b.(interface{ Close() }); ok {
		closer.Close()
	}
}

func (s *Service) ResolveNetworkByChainID(chainID uint64) (ResolvedChain, error) {
	if chainID == 0 {
		return ResolvedChain{}, errors.New("chainID is 0")
	}

	for networkName, network := range s.cfg.Networks {
		if network.ChainID != chainID {
			continue
		}
		return s.resolveFromNetworkConfig(networkName, network)
	}

	return ResolvedChain{}, errors.Newf("wallet is on chain %d which is not configured", chainID)
}

func (s *Service) ResolveNetworkByName(networkName string) (ResolvedChain, error) {
	networkName = strings.TrimSpace(networkName)
	if networkName == "" {
		return ResolvedChain{}, errors.New("network name is empty")
	}

	for name, network := range s.cfg.Networks {
		if strings.EqualFold(name, networkName) {
			return s.resolveFromNetworkConfig(name, network)
		}
	}
	return ResolvedChain{}, errors.Newf("unknown network %q", networkName)
}

func (s *Service) resolveFromNetworkConfig(networkName string, network NetworkConfig) (ResolvedChain, error) {
	// pick RPC by preferred name; otherwise first
	var selectedRPC *RPC

	if preferred := strings.TrimSpace(s.cfg.PreferredRPC); preferred != "" {
		for i := range network.RPCs {
			if strings.EqualFold(strings.TrimSpace(network.RPCs[i].Name), preferred) {
				selectedRPC = &network.RPCs[i]
				break
			}
		}
	}
	if selectedRPC == nil {
		if len(network.RPCs) == 0 {
			return ResolvedChain{}, errors.Newf("network %q has no RPCs configured", networkName)
		}
		selectedRPC = &network.RPCs[0]
	}

	if strings.TrimSpace(selectedRPC.URL) == "" {
		return ResolvedChain{}, errors.Newf("network %q rpc %q url is empty", networkName, selectedRPC.Name)
	}

	return ResolvedChain{
		NetworkName: networkName,
		ChainID:     network.ChainID,
		Registry:    network.Registry,
		Token:       network.Token,
		DeployBlock: network.DeployBlock,
		Explorer:    network.Explorer,
		RPCName:     selectedRPC.Name,
		URL:         selectedRPC.URL,
	}, nil
}
