package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yolodolo42/txflow/internal/chain"
	"github.com/yolodolo42/txflow/internal/client"
	"github.com/yolodolo42/txflow/internal/config"
	"github.com/yolodolo42/txflow/internal/logging"
	"github.com/yolodolo42/txflow/internal/metrics"
	"github.com/yolodolo42/txflow/internal/receipt"
	"github.com/yolodolo42/txflow/internal/wallet"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "txflow",
		Short: "Prepare, send and track EVM transactions",
		Long: `txflow builds contract calls, sends them from a local, injected,
embedded or smart-account wallet and waits for their receipts.

Configuration is read from $HOME/.txflow/config.yaml, TXFLOW_* environment
variables and flags, in increasing order of precedence.`,
		SilenceUsage:       true,
		PersistentPreRunE:  setupApp,
		PersistentPostRunE: teardownApp,
	}

	current *app
)

// app holds what commands share for one invocation
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	metrics  metrics.Metrics
	registry *chain.Registry

	metricsSrv *http.Server

	storeOnce sync.Once
	store     *receipt.Store
	storeErr  error
}

func Execute() error {
	return ExecuteContext(context.Background())
}

func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.txflow/config.yaml)")
	flags.String("chain", "ethereum", "Chain name or ID")
	flags.String("rpc", "", "RPC URL overriding the chain default")
	flags.String("client-id", "", "Client ID for first-party services")
	flags.String("secret-key", "", "Secret key for first-party services (server use)")
	flags.String("data-dir", "", "Data directory (default is $HOME/.txflow)")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("log-format", "console", "Log format (console or json)")
	flags.String("metrics-addr", "", "Serve prometheus metrics on this address, e.g. :9090")

	bind := map[string]string{
		config.KeyChain:       "chain",
		config.KeyRPC:         "rpc",
		config.KeyClientID:    "client-id",
		config.KeySecretKey:   "secret-key",
		config.KeyDataDir:     "data-dir",
		config.KeyLogLevel:    "log-level",
		config.KeyLogFormat:   "log-format",
		config.KeyMetricsAddr: "metrics-addr",
	}
	for key, flag := range bind {
		_ = viper.BindPFlag(key, flags.Lookup(flag))
	}
}

func initConfig() {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		configDir := config.DefaultDataDir()
		if err := os.MkdirAll(configDir, 0700); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not create config directory: %v\n", err)
		}

		viper.AddConfigPath(configDir)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Silently ignore missing config file - it's optional
	_ = viper.ReadInConfig()
}

func setupApp(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(logging.Config{Level: cfg.LogLevel, Format: logging.Format(cfg.LogFormat)})
	if err != nil {
		return err
	}

	a := &app{cfg: cfg, logger: logger, metrics: metrics.NewNopMetrics()}
	if cfg.MetricsAddr != "" {
		prom := metrics.NewPrometheusMetrics("txflow")
		a.metrics = prom
		if err := a.serveMetrics(prom); err != nil {
			return err
		}
	}

	a.registry = chain.NewRegistry(
		chain.WithAPIBase(cfg.ChainAPIBase),
		chain.WithClient(a.optionalClient()),
		chain.WithLogger(logger),
		chain.WithMetrics(a.metrics),
	)
	current = a
	return nil
}

func teardownApp(cmd *cobra.Command, args []string) error {
	a := current
	if a == nil {
		return nil
	}
	current = nil

	a.registry.Close()
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.metricsSrv.Shutdown(ctx)
	}
	return nil
}

func (a *app) serveMetrics(prom *metrics.PrometheusMetrics) error {
	ln, err := net.Listen("tcp", a.cfg.MetricsAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.cfg.MetricsAddr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", prom.Handler())
	a.metricsSrv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := a.metricsSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error().Err(err).Msg("metrics server stopped")
		}
	}()
	a.logger.Info().Str("addr", ln.Addr().String()).Msg("serving metrics")
	return nil
}

func (a *app) client() (*client.Client, error) {
	cl, err := a.cfg.NewClient()
	if err != nil {
		return nil, fmt.Errorf("%w (set --client-id, TXFLOW_CLIENT_ID or client_id in the config file)", err)
	}
	return cl, nil
}

// optionalClient returns nil when no credentials are configured. Chains
// with an explicit RPC URL work without one.
func (a *app) optionalClient() *client.Client {
	cl, err := a.cfg.NewClient()
	if err != nil {
		return nil
	}
	return cl
}

func (a *app) chain() (chain.Chain, error) {
	return a.cfg.ResolveChain()
}

func (a *app) keystore() (*wallet.KeystoreManager, error) {
	km, err := wallet.NewKeystoreManager(a.cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize keystore: %w", err)
	}
	return km, nil
}

func (a *app) receiptStore() (*receipt.Store, error) {
	a.storeOnce.Do(func() {
		if err := os.MkdirAll(a.cfg.DataDir, 0700); err != nil {
			a.storeErr = fmt.Errorf("failed to create data directory: %w", err)
			return
		}
		a.store, a.storeErr = receipt.OpenStore(a.cfg.DataDir)
	})
	return a.store, a.storeErr
}

func (a *app) poller(cl *client.Client) *receipt.Poller {
	opts := []receipt.Option{
		receipt.WithInterval(a.cfg.PollInterval),
		receipt.WithMaxAttempts(a.cfg.MaxAttempts),
		receipt.WithMetrics(a.metrics),
		receipt.WithLogger(a.logger),
	}
	if store, err := a.receiptStore(); err == nil {
		opts = append(opts, receipt.WithStore(store))
	} else {
		a.logger.Warn().Err(err).Msg("receipt store unavailable, receipts will not be persisted")
	}
	return receipt.NewPoller(a.registry, cl, opts...)
}

func (a *app) walletManager() (*wallet.Manager, error) {
	storage, err := wallet.NewFileStorage(a.cfg.DataDir)
	if err != nil {
		return nil, err
	}
	return wallet.NewManager(storage, a.logger), nil
}
