package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gradosphera/gonka/chain"
	"github.com/gradosphera/gonka/cluster"
	"github.com/gradosphera/gonka/devnet"
	"github.com/gradosphera/gonka/gov"
	"github.com/gradosphera/gonka/upgrade"
	"github.com/spf13/viper"
)

const (
	DefaultLogLevel = "info"
	DefaultChainID  = "gonka-testnet"
)

type NodeConfig struct {
	Name string `mapstructure:"name"`
	// Role is genesis or join.
	Role string `mapstructure:"role"`
	RPC  string `mapstructure:"rpc"`
	// KeyFile is a priv_validator_key.json, relative to the home directory.
	KeyFile string `mapstructure:"key_file"`
	// RestartURL is the node supervisor's restart endpoint; empty means
	// the node cannot be restarted by the harness.
	RestartURL string `mapstructure:"restart_url"`
	// Mock makes the node a simulated one.
	Mock *cluster.MockConfig `mapstructure:"mock"`
}

func (n NodeConfig) role() (cluster.Role, error) {
	switch n.Role {
	case "genesis":
		return cluster.RoleGenesis, nil
	case "join", "":
		return cluster.RoleJoin, nil
	}
	return 0, fmt.Errorf("node %s: unknown role %q", n.Name, n.Role)
}

type PollConfig struct {
	Interval         time.Duration `mapstructure:"interval"`
	BlockTimeout     time.Duration `mapstructure:"block_timeout"`
	BootstrapTimeout time.Duration `mapstructure:"bootstrap_timeout"`
}

type JournalConfig struct {
	// Path is the sqlite file, relative to the home directory.
	Path       string `mapstructure:"path"`
	ListenAddr string `mapstructure:"listen_addr"`
}

type Config struct {
	Home     string `mapstructure:"-"`
	LogLevel string `mapstructure:"log_level"`
	ChainID  string `mapstructure:"chain_id"`

	Poll    PollConfig     `mapstructure:"poll"`
	Codes   chain.Codes    `mapstructure:"codes"`
	Gov     gov.Config     `mapstructure:"gov"`
	Upgrade upgrade.Config `mapstructure:"upgrade"`
	Journal JournalConfig  `mapstructure:"journal"`
	Devnet  devnet.Config  `mapstructure:"devnet"`
	Nodes   []NodeConfig   `mapstructure:"nodes"`
}

func DefaultNodes() []NodeConfig {
	return []NodeConfig{
		{Name: "genesis", Role: "genesis", RPC: "http://genesis-node:26657", KeyFile: "keys/genesis.json"},
		{Name: "join1", Role: "join", RPC: "http://join1-node:26657", KeyFile: "keys/join1.json"},
		{Name: "join2", Role: "join", RPC: "http://join2-node:26657", KeyFile: "keys/join2.json"},
	}
}

func DefaultConfig(home string) *Config {
	if len(home) == 0 {
		home = os.ExpandEnv("$HOME/.testermint")
	}
	return &Config{
		Home:     home,
		LogLevel: DefaultLogLevel,
		ChainID:  DefaultChainID,
		Poll: PollConfig{
			Interval:         time.Second,
			BlockTimeout:     time.Minute,
			BootstrapTimeout: 2 * time.Minute,
		},
		Codes:   chain.DefaultCodes(),
		Gov:     gov.DefaultConfig(),
		Upgrade: upgrade.DefaultConfig(),
		Journal: JournalConfig{Path: "data/journal.db", ListenAddr: ":8080"},
		Devnet:  devnet.DefaultConfig(),
		Nodes:   DefaultNodes(),
	}
}

func ConfigFile(home string) string {
	return filepath.Join(home, "config", "config.toml")
}

// Load reads <home>/config/config.toml over the defaults.
func Load(home string) (*Config, error) {
	cfg := DefaultConfig(home)
	// Mock segments such as /v3.1.0 contain dots.
	v := viper.NewWithOptions(viper.KeyDelimiter("::"))
	v.SetConfigFile(ConfigFile(cfg.Home))
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if v.IsSet("nodes") {
		cfg.Nodes = nil
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.Devnet.Codes = cfg.Codes
	if err := cfg.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("invalid configuration data: %w", err)
	}
	return cfg, nil
}

// Path resolves p against the home directory.
func (cfg *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(cfg.Home, p)
}

func (cfg *Config) ValidateBasic() error {
	if cfg.ChainID == "" {
		return fmt.Errorf("chain_id must be set")
	}
	if cfg.Poll.Interval <= 0 {
		return fmt.Errorf("poll.interval must be positive")
	}
	if cfg.Poll.BlockTimeout < cfg.Poll.Interval || cfg.Poll.BootstrapTimeout < cfg.Poll.Interval {
		return fmt.Errorf("poll timeouts must be at least poll.interval %v", cfg.Poll.Interval)
	}
	if err := cfg.Codes.ValidateBasic(); err != nil {
		return fmt.Errorf("codes: %w", err)
	}
	if err := cfg.Gov.ValidateBasic(); err != nil {
		return err
	}
	if err := cfg.Upgrade.ValidateBasic(); err != nil {
		return err
	}
	if cfg.Devnet.BlockTime <= 0 {
		return fmt.Errorf("devnet.block_time must be positive")
	}

	genesis := 0
	names := make(map[string]bool, len(cfg.Nodes))
	for _, n := range cfg.Nodes {
		if n.Name == "" {
			return fmt.Errorf("node name must be set")
		}
		if names[n.Name] {
			return fmt.Errorf("duplicate node %s", n.Name)
		}
		names[n.Name] = true
		role, err := n.role()
		if err != nil {
			return err
		}
		if role == cluster.RoleGenesis {
			genesis++
		}
	}
	if genesis != 1 {
		return fmt.Errorf("need exactly one genesis node, have %d", genesis)
	}
	return nil
}
