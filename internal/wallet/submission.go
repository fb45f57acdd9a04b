package wallet

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/yolodolo42/txflow/internal/chain"
	"github.com/yolodolo42/txflow/internal/client"
	"github.com/yolodolo42/txflow/internal/receipt"
)

// Submission is returned as soon as a transaction is broadcast. For user
// operations TransactionHash is zero until the bundler includes it; the
// receipt carries the final hash.
type Submission struct {
	TransactionHash common.Hash
	UserOpHash      common.Hash
	Chain           chain.Chain

	waiter  ReceiptWaiter
	request receipt.Request

	mu      sync.Mutex
	receipt *types.Receipt
}

// NewSubmission returns a handle whose Wait polls for hash through w
func NewSubmission(hash common.Hash, c chain.Chain, cl *client.Client, w ReceiptWaiter) *Submission {
	return &Submission{
		TransactionHash: hash,
		Chain:           c,
		waiter:          w,
		request:         receipt.Request{Chain: c, TransactionHash: hash, Client: cl},
	}
}

func newUserOpSubmission(userOpHash common.Hash, c chain.Chain, cl *client.Client, w ReceiptWaiter, fetch receipt.FetchFunc) *Submission {
	return &Submission{
		UserOpHash: userOpHash,
		Chain:      c,
		waiter:     w,
		request:    receipt.Request{Chain: c, TransactionHash: userOpHash, Client: cl, Fetch: fetch},
	}
}

// Wait returns the receipt, polling on first use. It can be called any
// number of times; once resolved the same receipt is returned without
// network access.
func (s *Submission) Wait(ctx context.Context) (*types.Receipt, error) {
	return s.WaitTimeout(ctx, 0)
}

// WaitTimeout is Wait bounded by timeout when it is positive
func (s *Submission) WaitTimeout(ctx context.Context, timeout time.Duration) (*types.Receipt, error) {
	s.mu.Lock()
	if s.receipt != nil {
		r := s.receipt
		s.mu.Unlock()
		return r, nil
	}
	s.mu.Unlock()

	req := s.request
	req.Timeout = timeout
	r, err := s.waiter.Wait(ctx, req)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.receipt == nil {
		s.receipt = r
	}
	return s.receipt, nil
}
