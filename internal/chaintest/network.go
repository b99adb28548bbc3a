package chaintest

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/relieftoken/drt-client/internal/chains"
)

// Network is a set of in-memory chains reachable by URL, usable as a chains.Dialer.
type Network struct {
	byURL map[string]*Chain
	first string
}

func NewNetwork() *Network {
	return &Network{byURL: make(map[string]*Chain)}
}

// URL of an added chain is "mem://<name>".
func (n *Network) Add(name string, c *Chain) string {
	url := "mem://" + strings.ToLower(name)
	n.byURL[url] = c
	if n.first == "" {
		n.first = strings.ToLower(name)
	}
	return url
}

func (n *Network) Dial(_ context.Context, url string) (chains.Backend, error) {
	c, ok := n.byURL[url]
	if !ok {
		return nil, errors.Newf("no chain at %s", url)
	}
	return c, nil
}

// Config builds a chains config for every added chain.
func (n *Network) Config() chains.AllChainsConfig {
	cfg := chains.AllChainsConfig{
		Networks:       make(map[string]chains.NetworkConfig),
		DefaultNetwork: n.first,
	}
	for url, c := range n.byURL {
		name := strings.TrimPrefix(url, "mem://")
		cfg.Networks[name] = chains.NetworkConfig{
			Name:     name,
			ChainID:  c.chainID.Uint64(),
			Registry: c.registry.Hex(),
			Token:    c.token.Hex(),
			RPCs:     []chains.RPC{{Name: "mem", URL: url}},
		}
	}
	return cfg
}
