package wallet

import (
	"context"
	"net/http"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/yolodolo42/txflow/internal/chain"
	"github.com/yolodolo42/txflow/internal/client"
	"github.com/yolodolo42/txflow/internal/logging"
	"github.com/yolodolo42/txflow/internal/receipt"
)

// ReceiptWaiter resolves a submitted transaction to its receipt
type ReceiptWaiter interface {
	Wait(ctx context.Context, req receipt.Request) (*types.Receipt, error)
}

type settings struct {
	id       string
	registry *chain.Registry
	waiter   ReceiptWaiter
	logger   zerolog.Logger

	// injected
	fallback    Provider
	fallbackURL string

	// inapp
	inAppBase   string
	ecosystemID string
	partnerID   string
	httpClient  *http.Client

	// smart
	factory        common.Address
	entrypoint     common.Address
	bundlerURL     string
	accountAddress common.Address
	gasless        bool
	paymaster      PaymasterFunc
}

// Option configures a wallet
type Option func(*settings)

// WithID fixes the wallet ID instead of generating one
func WithID(id string) Option {
	return func(s *settings) { s.id = id }
}

// WithRegistry sets the registry used to reach nodes
func WithRegistry(reg *chain.Registry) Option {
	return func(s *settings) { s.registry = reg }
}

// WithReceiptWaiter sets what Submission.Wait polls through
func WithReceiptWaiter(w ReceiptWaiter) Option {
	return func(s *settings) { s.waiter = w }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

func newSettings(kind Kind, opts []Option) settings {
	s := settings{
		logger:     logging.Nop(),
		entrypoint: DefaultEntrypoint,
		inAppBase:  DefaultInAppBase,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	if s.registry == nil {
		s.registry = chain.NewRegistry()
	}
	s.logger = logging.Component(s.logger, "wallet").With().
		Str("wallet", string(kind)).
		Str("wallet_id", s.id).
		Logger()
	return s
}

// base holds what every adapter tracks once connected
type base struct {
	settings
	kind Kind

	mu      sync.RWMutex
	address common.Address
	chain   chain.Chain
	client  *client.Client
}

func newBase(kind Kind, opts []Option) base {
	return base{settings: newSettings(kind, opts), kind: kind}
}

func (b *base) ID() string {
	return b.id
}

func (b *base) Kind() Kind {
	return b.kind
}

func (b *base) Address() common.Address {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.address
}

func (b *base) bind(addr common.Address, opts ConnectOptions) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.address = addr
	b.chain = opts.Chain
	b.client = opts.Client
}

func (b *base) unbind() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.address = common.Address{}
}

// sender returns the bound address or ErrNoAddress
func (b *base) sender() (common.Address, error) {
	addr := b.Address()
	if addr == (common.Address{}) {
		return common.Address{}, ErrNoAddress
	}
	return addr, nil
}

// clientFor prefers the client carried by the transaction
func (b *base) clientFor(cl *client.Client) *client.Client {
	if cl != nil {
		return cl
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.client
}

func (b *base) waiterFor(cl *client.Client) ReceiptWaiter {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.waiter == nil {
		if cl == nil {
			cl = b.client
		}
		b.waiter = receipt.NewPoller(b.registry, cl, receipt.WithLogger(b.logger))
	}
	return b.waiter
}
