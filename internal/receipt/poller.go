// Package receipt waits for transactions to be included and remembers the
// receipts it has seen.
package receipt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/yolodolo42/txflow/internal/chain"
	"github.com/yolodolo42/txflow/internal/client"
	"github.com/yolodolo42/txflow/internal/logging"
	"github.com/yolodolo42/txflow/internal/metrics"
)

const (
	// DefaultInterval is the pause between two receipt lookups
	DefaultInterval = time.Second

	cacheSize = 1024
)

// FetchFunc performs one lookup. It returns ethereum.NotFound while the
// transaction is pending.
type FetchFunc func(ctx context.Context) (*types.Receipt, error)

// Request identifies the transaction to wait for
type Request struct {
	Chain           chain.Chain
	TransactionHash common.Hash
	// Timeout bounds the wait. Zero waits until the context is done or the
	// attempt budget runs out.
	Timeout time.Duration
	// Client overrides the poller's client for this request
	Client *client.Client
	// Fetch replaces the eth_getTransactionReceipt lookup, e.g. for user
	// operation receipts. TransactionHash is still the cache key.
	Fetch FetchFunc
}

// Poller waits for receipts. It is safe for concurrent use; concurrent waits
// for the same transaction share one poll loop. The loop stops once it
// resolves, exhausts the attempt budget or loses its last waiter. Timeouts
// and cancellation apply to each Wait call on its own.
type Poller struct {
	registry    *chain.Registry
	client      *client.Client
	interval    time.Duration
	maxAttempts int
	store       *Store
	metrics     metrics.Metrics
	logger      zerolog.Logger

	cache *lru.Cache[string, *types.Receipt]

	mu      sync.Mutex
	flights map[string]*flight
}

// flight is one shared poll loop
type flight struct {
	done    chan struct{}
	cancel  context.CancelFunc
	waiters int

	mu       sync.Mutex
	attempts int
	lastErr  error

	receipt *types.Receipt
	err     error
}

func (f *flight) progress(attempts int, lastErr error) {
	f.mu.Lock()
	f.attempts = attempts
	if lastErr != nil {
		f.lastErr = lastErr
	}
	f.mu.Unlock()
}

func (f *flight) timeout(hash common.Hash) *TimeoutError {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &TimeoutError{Hash: hash, Attempts: f.attempts, LastErr: f.lastErr}
}

// Option configures a Poller
type Option func(*Poller)

// WithInterval sets the pause between lookups
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithMaxAttempts caps the number of lookups per wait. Zero means no cap.
func WithMaxAttempts(n int) Option {
	return func(p *Poller) {
		p.maxAttempts = n
	}
}

// WithStore persists resolved receipts
func WithStore(s *Store) Option {
	return func(p *Poller) {
		p.store = s
	}
}

func WithMetrics(m metrics.Metrics) Option {
	return func(p *Poller) {
		p.metrics = m
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(p *Poller) {
		p.logger = logging.Component(logger, "receipt")
	}
}

// NewPoller creates a poller that reaches nodes through reg using cl
func NewPoller(reg *chain.Registry, cl *client.Client, opts ...Option) *Poller {
	cache, _ := lru.New[string, *types.Receipt](cacheSize)
	p := &Poller{
		registry: reg,
		client:   cl,
		interval: DefaultInterval,
		metrics:  metrics.NewNopMetrics(),
		logger:   logging.Nop(),
		cache:    cache,
		flights:  make(map[string]*flight),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func cacheKey(chainID uint64, hash common.Hash) string {
	return fmt.Sprintf("%d:%s", chainID, hash.Hex())
}

// Wait blocks until the transaction is included and returns its receipt.
// A reverted transaction is returned without error; use Reverted to tell.
// Receipts already seen are returned without touching the network.
func (p *Poller) Wait(ctx context.Context, req Request) (*types.Receipt, error) {
	chainID := req.Chain.ID()
	key := cacheKey(chainID, req.TransactionHash)

	if r, ok := p.Cached(chainID, req.TransactionHash); ok {
		return r, nil
	}
	if p.store != nil {
		if r, err := p.store.Get(ctx, chainID, req.TransactionHash); err == nil {
			p.cache.Add(key, r)
			return r, nil
		}
	}

	f := p.join(ctx, key, req)
	defer p.leave(key, f)

	var expired <-chan time.Time
	if req.Timeout > 0 {
		timer := time.NewTimer(req.Timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-f.done:
		if f.err != nil {
			return nil, f.err
		}
		return f.receipt, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-expired:
		p.metrics.IncReceiptTimeouts()
		return nil, f.timeout(req.TransactionHash)
	}
}

// join attaches the caller to the loop for key, starting one if needed. The
// loop does not inherit ctx's deadline or cancellation.
func (p *Poller) join(ctx context.Context, key string, req Request) *flight {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, ok := p.flights[key]
	if !ok {
		loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{done: make(chan struct{}), cancel: cancel}
		p.flights[key] = f
		go p.run(loopCtx, key, f, req)
	}
	f.waiters++
	return f
}

// leave detaches a caller and stops the loop when nobody is waiting on it
func (p *Poller) leave(key string, f *flight) {
	p.mu.Lock()
	defer p.mu.Unlock()

	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if p.flights[key] == f {
		delete(p.flights, key)
	}
}

func (p *Poller) run(ctx context.Context, key string, f *flight, req Request) {
	f.receipt, f.err = p.poll(ctx, req, f)

	p.mu.Lock()
	if p.flights[key] == f {
		delete(p.flights, key)
	}
	p.mu.Unlock()

	f.cancel()
	close(f.done)
}

// Cached returns a receipt resolved earlier by this poller
func (p *Poller) Cached(chainID uint64, hash common.Hash) (*types.Receipt, bool) {
	return p.cache.Get(cacheKey(chainID, hash))
}

func (p *Poller) poll(ctx context.Context, req Request, f *flight) (*types.Receipt, error) {
	fetch := req.Fetch
	if fetch == nil {
		cl := req.Client
		if cl == nil {
			cl = p.client
		}
		ec, err := p.registry.Dial(ctx, req.Chain, cl)
		if err != nil {
			return nil, err
		}
		fetch = func(ctx context.Context) (*types.Receipt, error) {
			return ec.TransactionReceipt(ctx, req.TransactionHash)
		}
	}

	chainID := req.Chain.ID()
	log := p.logger.With().Uint64("chain_id", chainID).Str("tx_hash", req.TransactionHash.Hex()).Logger()
	start := time.Now()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var (
		attempts int
		lastErr  error
	)
	for {
		attempts++
		p.metrics.IncReceiptPolls(chainID)

		r, err := fetch(ctx)
		switch {
		case err == nil && r != nil:
			p.record(ctx, chainID, req.TransactionHash, r, time.Since(start))
			log.Debug().Int("attempts", attempts).Uint64("status", r.Status).Msg("receipt resolved")
			return r, nil
		case err == nil, errors.Is(err, ethereum.NotFound):
			// pending
		case ctx.Err() != nil:
			// handled below
		default:
			lastErr = err
			log.Debug().Err(err).Int("attempt", attempts).Msg("receipt lookup failed")
		}

		f.progress(attempts, lastErr)

		if p.maxAttempts > 0 && attempts >= p.maxAttempts {
			p.metrics.IncReceiptTimeouts()
			return nil, &TimeoutError{Hash: req.TransactionHash, Attempts: attempts, LastErr: lastErr}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Poller) record(ctx context.Context, chainID uint64, hash common.Hash, r *types.Receipt, took time.Duration) {
	p.cache.Add(cacheKey(chainID, hash), r)

	status := "success"
	if Reverted(r) {
		status = "reverted"
	}
	p.metrics.IncReceipts(status)
	p.metrics.ObserveReceiptWait(took)

	if p.store != nil {
		if err := p.store.Put(context.WithoutCancel(ctx), chainID, r); err != nil {
			p.logger.Warn().Err(err).Str("tx_hash", hash.Hex()).Msg("failed to persist receipt")
		}
	}
}

// Reverted reports whether the receipt records a failed execution
func Reverted(r *types.Receipt) bool {
	return r != nil && r.Status == types.ReceiptStatusFailed
}
