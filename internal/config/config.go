// Package config loads txflow settings from the config file, TXFLOW_*
// environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/yolodolo42/txflow/internal/chain"
	"github.com/yolodolo42/txflow/internal/client"
	"github.com/yolodolo42/txflow/internal/receipt"
	"github.com/yolodolo42/txflow/internal/wallet"
)

// EnvPrefix is prepended to every environment variable
const EnvPrefix = "TXFLOW"

// Keys
const (
	KeyClientID       = "client_id"
	KeySecretKey      = "secret_key"
	KeyChain          = "chain"
	KeyRPC            = "rpc"
	KeyDataDir        = "data_dir"
	KeyLogLevel       = "log_level"
	KeyLogFormat      = "log_format"
	KeyPollInterval   = "poll_interval"
	KeyReceiptTimeout = "receipt_timeout"
	KeyMaxAttempts    = "max_attempts"
	KeyIPFSGateway    = "ipfs_gateway"
	KeyBundlerURL     = "bundler_url"
	KeyChainAPIBase   = "chain_api_base"
	KeyMetricsAddr    = "metrics_addr"
	KeyInAppBase      = "inapp_base"
)

// Config is the resolved configuration
type Config struct {
	ClientID  string
	SecretKey string

	Chain string
	RPC   string

	DataDir   string
	LogLevel  string
	LogFormat string

	PollInterval   time.Duration
	ReceiptTimeout time.Duration
	MaxAttempts    int

	IPFSGateway  string
	BundlerURL   string
	ChainAPIBase string
	MetricsAddr  string
	InAppBase    string
}

// DefaultDataDir is $HOME/.txflow
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".txflow"
	}
	return filepath.Join(home, ".txflow")
}

// SetDefaults registers defaults and environment binding on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyChain, "ethereum")
	v.SetDefault(KeyDataDir, DefaultDataDir())
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")
	v.SetDefault(KeyPollInterval, receipt.DefaultInterval)
	v.SetDefault(KeyReceiptTimeout, 2*time.Minute)
	v.SetDefault(KeyMaxAttempts, 0)
	v.SetDefault(KeyChainAPIBase, chain.DefaultAPIBase)
	v.SetDefault(KeyInAppBase, wallet.DefaultInAppBase)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
}

// Load reads a Config out of v. v should have had SetDefaults applied.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		ClientID:       v.GetString(KeyClientID),
		SecretKey:      v.GetString(KeySecretKey),
		Chain:          v.GetString(KeyChain),
		RPC:            v.GetString(KeyRPC),
		DataDir:        v.GetString(KeyDataDir),
		LogLevel:       v.GetString(KeyLogLevel),
		LogFormat:      v.GetString(KeyLogFormat),
		PollInterval:   v.GetDuration(KeyPollInterval),
		ReceiptTimeout: v.GetDuration(KeyReceiptTimeout),
		MaxAttempts:    v.GetInt(KeyMaxAttempts),
		IPFSGateway:    v.GetString(KeyIPFSGateway),
		BundlerURL:     v.GetString(KeyBundlerURL),
		ChainAPIBase:   v.GetString(KeyChainAPIBase),
		MetricsAddr:    v.GetString(KeyMetricsAddr),
		InAppBase:      v.GetString(KeyInAppBase),
	}
	if strings.HasPrefix(cfg.DataDir, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.DataDir = filepath.Join(home, cfg.DataDir[2:])
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later and less clearly.
// Credentials are not required here; commands that need a client call
// NewClient.
func (c *Config) Validate() error {
	var errs []error
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyPollInterval))
	}
	if c.ReceiptTimeout < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", KeyReceiptTimeout))
	}
	if c.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", KeyMaxAttempts))
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("%s must be console or json, got %q", KeyLogFormat, c.LogFormat))
	}
	if c.DataDir == "" {
		errs = append(errs, fmt.Errorf("%s must be set", KeyDataDir))
	}
	return errors.Join(errs...)
}

// NewClient builds the client from the configured credentials
func (c *Config) NewClient() (*client.Client, error) {
	return client.New(client.Options{
		ClientID:  c.ClientID,
		SecretKey: c.SecretKey,
		Storage:   client.StorageConfig{Gateway: c.IPFSGateway},
	})
}

// ResolveChain looks up the configured chain by preset name or ID
func (c *Config) ResolveChain() (chain.Chain, error) {
	return chain.Lookup(c.Chain, c.RPC)
}
