package config

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds the overall configuration for the application.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Network   NetworkConfig   `yaml:"network"`
	Provider  ProviderConfig  `yaml:"provider"`
	Etherscan EtherscanConfig `yaml:"etherscan"`
	History   HistoryConfig   `yaml:"history"`
	Assets    AssetsConfig    `yaml:"assets"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Port         string `yaml:"port"`
	ReadTimeout  int    `yaml:"readTimeout"`
	WriteTimeout int    `yaml:"writeTimeout"`
	IdleTimeout  int    `yaml:"idleTimeout"`
}

// NetworkConfig describes the single network the wallet provider is attached to.
type NetworkConfig struct {
	Name             string `yaml:"name"`
	ChainID          int64  `yaml:"chainID"`
	RPCURL           string `yaml:"rpcURL"`
	BlockExplorerURL string `yaml:"blockExplorerUrl"`
}

// ProviderConfig tunes the wallet provider adapter.
type ProviderConfig struct {
	ConnectTimeoutMs       int64 `yaml:"connectTimeoutMs"`
	RPCCallTimeoutMs       int64 `yaml:"rpcCallTimeoutMs"`
	ConfirmationPollMs     int64 `yaml:"confirmationPollMs"`
	ChangePollMs           int64 `yaml:"changePollMs"`
	RateLimit              int   `yaml:"rateLimit"`
	BurstLimit             int   `yaml:"burstLimit"`
	ConfirmationTimeoutSec int64 `yaml:"confirmationTimeoutSec"`
}

// EtherscanConfig holds the configuration for the transaction-history service.
// The API key is injected here (or via the ETHERSCAN_API_KEY environment
// variable), never compiled in.
type EtherscanConfig struct {
	BaseURL              string `yaml:"baseURL"`
	APIKey               string `yaml:"apiKey"`
	RequestTimeoutMillis int64  `yaml:"requestTimeoutMillis"`
}

// HistoryConfig tunes the history fetcher.
type HistoryConfig struct {
	MaxEntries       int `yaml:"maxEntries"`
	CacheTTLSeconds  int `yaml:"cacheTTLSeconds"`
	CacheCleanupMins int `yaml:"cacheCleanupMinutes"`
}

// AssetsConfig points at an optional JSON catalog of extra fungible tokens.
type AssetsConfig struct {
	File string `yaml:"file"`
}

// LoggingConfig holds the configuration for logging.
type LoggingConfig struct {
	Level string `yaml:"level"` // e.g., "debug", "info", "warn", "error"
	File  string `yaml:"file"`
}

// LoadConfig loads configuration from a YAML file and applies defaults.
func LoadConfig(path string) (*Config, error) {
	logrus.Infof("Loading configuration from path: %s", path)
	data, err := os.ReadFile(path)
	if err != nil {
		logrus.Errorf("Failed to read config file %s: %v", path, err)
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		logrus.Errorf("Failed to unmarshal config data from %s: %v", path, err)
		return nil, fmt.Errorf("failed to unmarshal config data from %s: %w", path, err)
	}

	applyDefaults(&cfg)

	if cfg.Network.RPCURL == "" {
		return nil, fmt.Errorf("network.rpcURL is required")
	}
	if cfg.Etherscan.APIKey == "" {
		logrus.Warn("etherscan.apiKey not set; transaction history will be unavailable")
	}

	logrus.Info("Configuration loaded successfully.")
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 15
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = 60
	}

	if cfg.Provider.ConnectTimeoutMs == 0 {
		cfg.Provider.ConnectTimeoutMs = 10000
	}
	if cfg.Provider.RPCCallTimeoutMs == 0 {
		cfg.Provider.RPCCallTimeoutMs = 10000
	}
	if cfg.Provider.ConfirmationPollMs == 0 {
		cfg.Provider.ConfirmationPollMs = 2000
	}
	if cfg.Provider.ChangePollMs == 0 {
		cfg.Provider.ChangePollMs = 4000
	}
	if cfg.Provider.RateLimit == 0 {
		cfg.Provider.RateLimit = 20
	}
	if cfg.Provider.BurstLimit == 0 {
		cfg.Provider.BurstLimit = 10
	}
	if cfg.Provider.ConfirmationTimeoutSec == 0 {
		cfg.Provider.ConfirmationTimeoutSec = 300
	}

	if cfg.Etherscan.BaseURL == "" {
		cfg.Etherscan.BaseURL = "https://api-goerli.etherscan.io"
		logrus.Infof("Etherscan.BaseURL not set, defaulting to %s", cfg.Etherscan.BaseURL)
	}
	if cfg.Etherscan.RequestTimeoutMillis == 0 {
		cfg.Etherscan.RequestTimeoutMillis = 10000
	}
	if cfg.Etherscan.APIKey == "" {
		cfg.Etherscan.APIKey = os.Getenv("ETHERSCAN_API_KEY")
	}

	if cfg.History.MaxEntries == 0 {
		cfg.History.MaxEntries = 5
	}
	if cfg.History.CacheTTLSeconds == 0 {
		cfg.History.CacheTTLSeconds = 30
	}
	if cfg.History.CacheCleanupMins == 0 {
		cfg.History.CacheCleanupMins = 5
	}

	if cfg.Network.Name == "" {
		cfg.Network.Name = "goerli"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}
