package chains

type AllChainsConfig struct {
	Networks       map[string]NetworkConfig `json:"networks" yaml:"networks" mapstructure:"networks"`
	DefaultNetwork string                   `json:"defaultNetwork" yaml:"defaultNetwork" mapstructure:"defaultNetwork"`
	PreferredRPC   string                   `json:"preferredRPC" yaml:"preferredRPC" mapstructure:"preferredRPC"`
}

// NetworkConfig describes a network, where the relief contracts live on it, and its RPC
// endpoints.
type NetworkConfig struct {
	Name        string `json:"name" yaml:"name" mapstructure:"name"`
	ChainID     uint64 `json:"chainId" yaml:"chainId" mapstructure:"chainId"`
	Registry    string `json:"registry" yaml:"registry" mapstructure:"registry"`
	Token       string `json:"token" yaml:"token" mapstructure:"token"`
	DeployBlock uint64 `json:"deployBlock" yaml:"deployBlock" mapstructure:"deployBlock"`
	Explorer    string `json:"explorer" yaml:"explorer" mapstructure:"explorer"`
	RPCs        []RPC  `json:"rpcs" yaml:"rpcs" mapstructure:"rpcs"`
}

type RPC struct {
	Name string `json:"name" yaml:"name" mapstructure:"name"`
	URL  string `json:"url" yaml:"url" mapstructure:"url"`
	WSS  string `json:"wss" yaml:"wss" mapstructure:"wss"`
}

func (mc *AllChainsConfig) Normalize() {
	if mc == nil {
		return
	}
	for name, n := range mc.Networks {
		n.Name = name
		mc.Networks[name] = n
	}
}
