// Package executor drives a prepared transaction through resolution,
// signing and broadcast against a wallet adapter.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/yolodolo42/txflow/internal/chain"
	"github.com/yolodolo42/txflow/internal/logging"
	"github.com/yolodolo42/txflow/internal/metrics"
	"github.com/yolodolo42/txflow/internal/receipt"
	"github.com/yolodolo42/txflow/internal/tx"
	"github.com/yolodolo42/txflow/internal/wallet"
)

// broadcastTimeout bounds a single broadcast to the node
const broadcastTimeout = 20 * time.Second

// State is a step in the life of one execution
type State int

const (
	StateBuilt State = iota
	StateResolving
	StateSigning
	StateBroadcasting
	StateSubmitted
)

func (s State) String() string {
	switch s {
	case StateBuilt:
		return "built"
	case StateResolving:
		return "resolving"
	case StateSigning:
		return "signing"
	case StateBroadcasting:
		return "broadcasting"
	case StateSubmitted:
		return "submitted"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// NoWalletError is returned when there is no connected wallet to send with
type NoWalletError struct {
	Reason string
}

func (e *NoWalletError) Error() string {
	return "no wallet: " + e.Reason
}

// StateFunc observes state transitions
type StateFunc func(State)

// Executor submits transactions. It does not retry: a rejected signature or
// failed broadcast is returned to the caller as is.
type Executor struct {
	registry *chain.Registry
	waiter   wallet.ReceiptWaiter
	policy   *tx.Policy
	metrics  metrics.Metrics
	logger   zerolog.Logger
	onState  StateFunc
}

// Option configures an Executor
type Option func(*Executor)

// WithPolicy rejects resolved transactions that violate p
func WithPolicy(p *tx.Policy) Option {
	return func(e *Executor) { e.policy = p }
}

// WithReceiptWaiter sets the waiter for transactions the executor
// broadcasts itself
func WithReceiptWaiter(w wallet.ReceiptWaiter) Option {
	return func(e *Executor) { e.waiter = w }
}

func WithMetrics(m metrics.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

// WithStateHook calls fn on every state transition
func WithStateHook(fn StateFunc) Option {
	return func(e *Executor) { e.onState = fn }
}

func New(reg *chain.Registry, opts ...Option) *Executor {
	e := &Executor{
		registry: reg,
		metrics:  metrics.NewNopMetrics(),
		logger:   logging.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.registry == nil {
		e.registry = chain.NewRegistry()
	}
	e.logger = logging.Component(e.logger, "executor")
	if e.waiter == nil {
		e.waiter = receipt.NewPoller(e.registry, nil,
			receipt.WithMetrics(e.metrics),
			receipt.WithLogger(e.logger))
	}
	return e
}

func (e *Executor) enter(s State) {
	if e.onState != nil {
		e.onState(s)
	}
}

// Execute resolves d and sends it from adapter. The descriptor is consumed
// even when a later step fails.
func (e *Executor) Execute(ctx context.Context, d *tx.Descriptor, adapter wallet.Adapter) (*wallet.Submission, error) {
	e.enter(StateBuilt)
	if err := checkWallet(adapter); err != nil {
		return nil, err
	}
	if err := d.Consume(); err != nil {
		return nil, err
	}

	e.enter(StateResolving)
	r, err := d.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	return e.send(ctx, r, adapter)
}

// Submit sends an already resolved transaction, such as a native transfer
func (e *Executor) Submit(ctx context.Context, r *tx.Resolved, adapter wallet.Adapter) (*wallet.Submission, error) {
	e.enter(StateBuilt)
	if err := checkWallet(adapter); err != nil {
		return nil, err
	}
	e.enter(StateResolving)
	return e.send(ctx, r, adapter)
}

func checkWallet(adapter wallet.Adapter) error {
	if adapter == nil {
		return &NoWalletError{Reason: "no wallet adapter given"}
	}
	if adapter.Address() == (common.Address{}) {
		return &NoWalletError{Reason: fmt.Sprintf("%s wallet %s is not connected", adapter.Kind(), adapter.ID())}
	}
	return nil
}

func (e *Executor) send(ctx context.Context, resolved *tx.Resolved, adapter wallet.Adapter) (*wallet.Submission, error) {
	// the descriptor memoizes its result, so fill gas on a copy
	copied := *resolved
	r := &copied

	log := e.logger.With().
		Str("wallet", string(adapter.Kind())).
		Uint64("chain_id", r.ChainID).
		Str("to", r.To.Hex()).
		Str("method", r.Method).
		Logger()

	if err := e.policy.Validate(r); err != nil {
		e.metrics.IncSubmissions(string(adapter.Kind()), "policy")
		return nil, err
	}

	if r.Gas == 0 {
		gas, err := e.estimateGas(ctx, r, adapter)
		if err != nil {
			e.metrics.IncSubmissions(string(adapter.Kind()), "reverted")
			return nil, err
		}
		r.Gas = gas
	}

	sub, err := e.signAndBroadcast(ctx, r, adapter)
	if err != nil {
		result := "error"
		var rejected *wallet.UserRejectedError
		if errors.As(err, &rejected) {
			result = "rejected"
		}
		e.metrics.IncSubmissions(string(adapter.Kind()), result)
		log.Debug().Err(err).Msg("submission failed")
		return nil, err
	}

	e.enter(StateSubmitted)
	e.metrics.IncSubmissions(string(adapter.Kind()), "success")
	ev := log.Info().Uint64("gas", r.Gas)
	if sub.UserOpHash != (common.Hash{}) {
		ev = ev.Str("user_op_hash", sub.UserOpHash.Hex())
	} else {
		ev = ev.Str("tx_hash", sub.TransactionHash.Hex())
	}
	ev.Msg("transaction submitted")
	return sub, nil
}

// estimateGas asks the adapter for a limit. A revert is an error; anything
// else falls back to tx.DefaultGasCeiling.
func (e *Executor) estimateGas(ctx context.Context, r *tx.Resolved, adapter wallet.Adapter) (uint64, error) {
	gas, err := adapter.EstimateGas(ctx, r)
	if err == nil && gas > 0 {
		return gas, nil
	}
	var callErr *tx.ContractCallError
	if errors.As(err, &callErr) {
		return 0, err
	}
	e.logger.Warn().Err(err).Uint64("gas", tx.DefaultGasCeiling).Msg("gas estimation failed, using default ceiling")
	return tx.DefaultGasCeiling, nil
}

// signAndBroadcast signs locally when the adapter can sign without sending,
// and otherwise hands both steps to the adapter
func (e *Executor) signAndBroadcast(ctx context.Context, r *tx.Resolved, adapter wallet.Adapter) (*wallet.Submission, error) {
	signer, ok := adapter.(wallet.TransactionSigner)
	if !ok {
		e.enter(StateSigning)
		e.enter(StateBroadcasting)
		return adapter.SendTransaction(ctx, r)
	}

	e.enter(StateSigning)
	signed, err := signer.SignTransaction(ctx, r)
	if err != nil {
		return nil, err
	}

	e.enter(StateBroadcasting)
	ec, err := e.registry.Dial(ctx, r.Chain, r.Client)
	if err != nil {
		return nil, err
	}
	sendCtx, cancel := context.WithTimeout(ctx, broadcastTimeout)
	defer cancel()
	if err := ec.SendTransaction(sendCtx, signed); err != nil {
		return nil, fmt.Errorf("failed to broadcast transaction: %w", err)
	}
	return wallet.NewSubmission(signed.Hash(), r.Chain, r.Client, e.waiter), nil
}
