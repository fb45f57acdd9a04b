package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/yolodolo42/txflow/internal/client"
	"github.com/yolodolo42/txflow/internal/logging"
	"github.com/yolodolo42/txflow/internal/metrics"
)

const (
	// DefaultAPIBase serves chain metadata at {base}/v1/chains/{id}
	DefaultAPIBase = "https://api.thirdweb.com"
	// DefaultMetadataTTL is how long a fetched chain record stays cached
	DefaultMetadataTTL = 5 * time.Minute

	// FallbackSymbol and FallbackDecimals are used when metadata is unavailable
	FallbackSymbol   = "ETH"
	FallbackDecimals = 18

	metadataCacheSize = 256
)

// Metadata is the subset of the remote chain record the pipeline uses
type Metadata struct {
	Name           string         `json:"name"`
	Chain          string         `json:"chain"`
	ChainID        uint64         `json:"chainId"`
	NativeCurrency NativeCurrency `json:"nativeCurrency"`
	Testnet        bool           `json:"testnet"`
}

type metadataResponse struct {
	Data  *Metadata       `json:"data"`
	Error json.RawMessage `json:"error,omitempty"`
}

// Registry resolves chain endpoints and metadata. It caches metadata per
// chain ID and node connections per RPC URL, and is safe for concurrent use.
type Registry struct {
	apiBase    string
	httpClient *http.Client
	logger     zerolog.Logger
	metrics    metrics.Metrics

	metadata *expirable.LRU[string, *Metadata]
	group    singleflight.Group

	mu      sync.Mutex
	clients map[string]*ethclient.Client
	dials   singleflight.Group
}

// Option configures a Registry
type Option func(*Registry)

// WithAPIBase overrides the metadata API base URL
func WithAPIBase(base string) Option {
	return func(r *Registry) {
		r.apiBase = strings.TrimRight(base, "/")
	}
}

// WithHTTPClient sets the HTTP client used for metadata lookups
func WithHTTPClient(hc *http.Client) Option {
	return func(r *Registry) {
		r.httpClient = hc
	}
}

// WithClient sends metadata lookups through cl so first-party requests carry
// its auth headers. A nil client is ignored.
func WithClient(cl *client.Client) Option {
	return func(r *Registry) {
		if cl != nil {
			r.httpClient = cl.HTTPClient()
		}
	}
}

// WithLogger sets the registry logger
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Registry) {
		r.logger = logging.Component(logger, "chain")
	}
}

// WithMetrics sets the metrics sink
func WithMetrics(m metrics.Metrics) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

// WithMetadataTTL overrides the metadata cache lifetime
func WithMetadataTTL(ttl time.Duration) Option {
	return func(r *Registry) {
		r.metadata = expirable.NewLRU[string, *Metadata](metadataCacheSize, nil, ttl)
	}
}

// NewRegistry creates a registry
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		apiBase:    DefaultAPIBase,
		httpClient: &http.Client{Timeout: client.DefaultRequestTimeout},
		logger:     logging.Nop(),
		metrics:    metrics.NewNopMetrics(),
		metadata:   expirable.NewLRU[string, *Metadata](metadataCacheSize, nil, DefaultMetadataTTL),
		clients:    make(map[string]*ethclient.Client),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ChainID returns the chain's ID. It never touches the network.
func (r *Registry) ChainID(c Chain) uint64 {
	return c.ID()
}

// Metadata returns the remote chain record, cached for the registry's TTL
// under "chain:{id}". Concurrent lookups for the same chain share one request,
// which is not tied to any one caller's context. Failures are not cached.
func (r *Registry) Metadata(ctx context.Context, chainID uint64) (*Metadata, error) {
	key := fmt.Sprintf("chain:%d", chainID)
	if md, ok := r.metadata.Get(key); ok {
		return md, nil
	}

	shared := context.WithoutCancel(ctx)
	ch := r.group.DoChan(key, func() (any, error) {
		if md, ok := r.metadata.Get(key); ok {
			return md, nil
		}
		fetchCtx, cancel := context.WithTimeout(shared, client.DefaultRequestTimeout)
		defer cancel()
		md, err := r.fetchMetadata(fetchCtx, chainID)
		if err != nil {
			return nil, err
		}
		r.metadata.Add(key, md)
		return md, nil
	})
	select {
	case <-ctx.Done():
		return nil, &MetadataFetchError{ChainID: chainID, Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Metadata), nil
	}
}

func (r *Registry) fetchMetadata(ctx context.Context, chainID uint64) (*Metadata, error) {
	url := fmt.Sprintf("%s/v1/chains/%d", r.apiBase, chainID)

	var resp metadataResponse
	if err := client.FetchJSON(ctx, r.httpClient, http.MethodGet, url, nil, nil, &resp); err != nil {
		return nil, &MetadataFetchError{ChainID: chainID, Err: err}
	}
	if len(resp.Error) > 0 && string(resp.Error) != "null" {
		return nil, &MetadataFetchError{ChainID: chainID, Err: fmt.Errorf("api error: %s", resp.Error)}
	}
	if resp.Data == nil {
		return nil, &MetadataFetchError{ChainID: chainID, Err: errors.New("empty response")}
	}
	return resp.Data, nil
}

// NativeSymbol returns the native currency symbol. An embedded symbol is used
// as-is; otherwise metadata is fetched and any failure yields "ETH".
func (r *Registry) NativeSymbol(ctx context.Context, c Chain) string {
	if nc, ok := c.NativeCurrency(); ok && nc.Symbol != "" {
		return nc.Symbol
	}
	md, err := r.Metadata(ctx, c.ID())
	if err != nil || md.NativeCurrency.Symbol == "" {
		r.fallback(c, "symbol", err)
		return FallbackSymbol
	}
	return md.NativeCurrency.Symbol
}

// NativeDecimals returns the native currency decimals. Embedded decimals of
// zero count as missing; metadata failures yield 18.
func (r *Registry) NativeDecimals(ctx context.Context, c Chain) uint8 {
	if nc, ok := c.NativeCurrency(); ok && nc.Decimals != 0 {
		return nc.Decimals
	}
	md, err := r.Metadata(ctx, c.ID())
	if err != nil || md.NativeCurrency.Decimals == 0 {
		r.fallback(c, "decimals", err)
		return FallbackDecimals
	}
	return md.NativeCurrency.Decimals
}

// NativeCurrency resolves symbol and decimals concurrently
func (r *Registry) NativeCurrency(ctx context.Context, c Chain) NativeCurrency {
	var nc NativeCurrency
	if embedded, ok := c.NativeCurrency(); ok {
		nc.Name = embedded.Name
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		nc.Symbol = r.NativeSymbol(gctx, c)
		return nil
	})
	g.Go(func() error {
		nc.Decimals = r.NativeDecimals(gctx, c)
		return nil
	})
	_ = g.Wait()
	return nc
}

func (r *Registry) fallback(c Chain, field string, err error) {
	r.metrics.IncMetadataFallbacks()
	event := r.logger.Debug().Uint64("chain_id", c.ID()).Str("field", field)
	if err != nil {
		event = event.Err(err)
	}
	event.Msg("chain metadata unavailable, using default")
}

// Dial returns a node connection for the chain, reusing one per RPC URL.
// Requests go through cl's HTTP client so first-party endpoints are
// authenticated. Chains with an explicit RPC URL are checked against the
// node's reported chain ID. Dials to different URLs run concurrently;
// concurrent dials to one URL share a single attempt.
func (r *Registry) Dial(ctx context.Context, c Chain, cl *client.Client) (*ethclient.Client, error) {
	url := RPCURL(c, cl)
	if ec, ok := r.cached(url); ok {
		return ec, nil
	}

	hc := r.httpClient
	if cl != nil {
		hc = cl.HTTPClient()
	}

	shared := context.WithoutCancel(ctx)
	ch := r.dials.DoChan(url, func() (any, error) {
		if ec, ok := r.cached(url); ok {
			return ec, nil
		}
		ec, err := r.dial(shared, c, url, hc)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		if existing, ok := r.clients[url]; ok {
			ec.Close()
			return existing, nil
		}
		r.clients[url] = ec
		return ec, nil
	})
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("failed to connect to chain %d: %w", c.ID(), ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*ethclient.Client), nil
	}
}

func (r *Registry) cached(url string) (*ethclient.Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ec, ok := r.clients[url]
	return ec, ok
}

func (r *Registry) dial(ctx context.Context, c Chain, url string, hc *http.Client) (*ethclient.Client, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	rc, err := rpc.DialOptions(dialCtx, url, rpc.WithHTTPClient(hc))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to chain %d: %w", c.ID(), err)
	}
	ec := ethclient.NewClient(rc)

	if !c.IsBare() && c.RPC() != "" {
		got, err := ec.ChainID(dialCtx)
		if err != nil {
			ec.Close()
			return nil, fmt.Errorf("failed to connect to chain %d: %w", c.ID(), err)
		}
		if got.Cmp(new(big.Int).SetUint64(c.ID())) != 0 {
			ec.Close()
			return nil, fmt.Errorf("chain ID mismatch: expected %d, got %s", c.ID(), got.String())
		}
	}

	r.logger.Debug().Uint64("chain_id", c.ID()).Msg("connected to node")
	return ec, nil
}

// Close closes all node connections
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ec := range r.clients {
		ec.Close()
	}
	r.clients = make(map[string]*ethclient.Client)
}
