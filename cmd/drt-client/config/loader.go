package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"

	"github.com/relieftoken/drt-client/internal/chains"
	"github.com/relieftoken/drt-client/internal/constants"
	"github.com/relieftoken/drt-client/internal/history"
	"github.com/relieftoken/drt-client/internal/session"
	"github.com/relieftoken/drt-client/internal/wallet"
)

//go:embed config.yaml
var EmbeddedConfigYAML []byte

const envPrefix = "DRT"

type ClientSettings struct {
	LocalHost      string   `mapstructure:"localHost"`
	Port           string   `mapstructure:"port"`
	LoopbackOnly   bool     `mapstructure:"loopbackOnly"`
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

type CacheConfig struct {
	Size int `mapstructure:"size"`
}

type Config struct {
	ClientSettings ClientSettings         `mapstructure:"ClientSettings"`
	Wallet         wallet.Config          `mapstructure:"Wallet"`
	Session        session.Config         `mapstructure:"Session"`
	History        history.Config         `mapstructure:"History"`
	Cache          CacheConfig            `mapstructure:"Cache"`
	EthNetworks    chains.AllChainsConfig `mapstructure:"Ethereum"`
}

func infuraRPC(chain string, key string) string {
	return fmt.Sprintf("https://%s.infura.io/v3/%s", chain, key)
}

// Load reads the embedded defaults, then merges the first config file found in the search
// paths (or the explicit file), then DRT_* environment variables.
func Load(explicit string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(EmbeddedConfigYAML)); err != nil {
		return nil, errors.Wrap(err, "embedded config")
	}

	if explicit != "" {
		v.SetConfigFile(explicit)
		if err := v.MergeInConfig(); err != nil {
			return nil, errors.Wrapf(err, "config file %s", explicit)
		}
	} else {
		v.SetConfigName("config")
		for _, p := range searchPaths() {
			v.AddConfigPath(p)
		}
		if err := v.MergeInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errors.Wrap(err, "config file")
			}
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	cfg.EthNetworks.Normalize()

	if key := strings.TrimSpace(os.Getenv("INFURA_API_KEY")); key != "" {
		if err := cfg.InjectInfuraKey(key); err != nil {
			return nil, err
		}
	}
	if err := cfg.NormalizeContracts(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func searchPaths() []string {
	paths := []string{"."}
	if dir, err := configDir(); err == nil {
		paths = append([]string{dir}, paths...)
	}
	return paths
}

// configDir returns the directory for the user's config file.
//
// Priority:
//  1. SNAP_REAL_HOME (snap installs)
//  2. HOME (normal installs)
//  3. os.UserConfigDir() fallback
func configDir() (string, error) {
	if realHome := os.Getenv("SNAP_REAL_HOME"); realHome != "" {
		return filepath.Join(realHome, ".config", constants.AppName), nil
	}
	if home := os.Getenv("HOME"); home != "" {
		return filepath.Join(home, ".config", constants.AppName), nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("UserConfigDir: %w", err)
	}
	return filepath.Join(dir, constants.AppName), nil
}

// InjectInfuraKey fills every RPC entry named "Infura" that has no URL yet.
func (c *Config) InjectInfuraKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("infura api key is empty")
	}

	for netName, net := range c.EthNetworks.Networks {
		for i := range net.RPCs {
			if !strings.EqualFold(net.RPCs[i].Name, "Infura") || net.RPCs[i].URL != "" {
				continue
			}
			net.RPCs[i].URL = infuraRPC(netName, key)
		}
		// write back (map value copy)
		c.EthNetworks.Networks[netName] = net
	}
	return nil
}

// NormalizeContracts validates configured contract addresses and stores them checksummed.
// RPC entries without a URL are dropped. A network may leave its addresses empty until
// the contracts are deployed there.
func (c *Config) NormalizeContracts() error {
	if len(c.EthNetworks.Networks) == 0 {
		return errors.New("Ethereum.networks is empty")
	}

	for netName, net := range c.EthNetworks.Networks {
		var err error
		if net.Registry, err = canonicalAddress(netName, "registry", net.Registry); err != nil {
			return err
		}
		if net.Token, err = canonicalAddress(netName, "token", net.Token); err != nil {
			return err
		}

		rpcs := net.RPCs[:0]
		for _, rpc := range net.RPCs {
			if strings.TrimSpace(rpc.URL) != "" {
				rpcs = append(rpcs, rpc)
			}
		}
		net.RPCs = rpcs
		c.EthNetworks.Networks[netName] = net
	}
	return nil
}

func canonicalAddress(netName, field, raw string) (string, error) {
	a := strings.TrimSpace(raw)
	if a == "" {
		return "", nil
	}
	if !strings.HasPrefix(a, "0x") && !strings.HasPrefix(a, "0X") {
		a = "0x" + a
	}
	if !common.IsHexAddress(a) {
		return "", fmt.Errorf("Ethereum.networks[%q].%s invalid address: %q", netName, field, raw)
	}
	return common.HexToAddress(a).Hex(), nil
}
