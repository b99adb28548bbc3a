package wallet

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/relieftoken/drt-client/internal/apperr"
)

const (
	KindRPC      = "rpc"
	KindKeystore = "keystore"
)

type Config struct {
	Kind           string `mapstructure:"kind"`
	Endpoint       string `mapstructure:"endpoint"`
	KeystoreDir    string `mapstructure:"keystoreDir"`
	Passphrase     string `mapstructure:"passphrase"`
	PollIntervalMS int    `mapstructure:"pollIntervalMs"`
}

// Open returns the configured transport. Absence of a usable wallet is reported as
// apperr.ErrNoWallet so callers can tell it apart from a declined prompt.
func Open(ctx context.Context, cfg Config, chain ChainIDReader) (Transport, error) {
	interval := time.Duration(cfg.PollIntervalMS) * time.Millisecond

	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case "", KindRPC:
		return DialRPC(ctx, cfg.Endpoint, interval)
	case KindKeystore:
		var prompt Prompter = TerminalPrompter{}
		if cfg.Passphrase != "" {
			prompt = StaticPrompter(cfg.Passphrase)
		}
		return OpenKeystore(ctx, cfg.KeystoreDir, chain, prompt, interval)
	case "none":
		return nil, apperr.NoWallet(nil)
	default:
		return nil, errors.Newf("unknown wallet kind %q (allowed: rpc, keystore, none)", cfg.Kind)
	}
}
