package tx

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ErrPolicyViolation is wrapped by every policy rejection
var ErrPolicyViolation = errors.New("policy violation")

// Policy enforces safety constraints before sending.
type Policy struct {
	MaxPerTxWei *big.Int
	AllowTo     []common.Address
	DenyTo      []common.Address
}

// Validate applies simple allow/deny and spend limits.
func (p *Policy) Validate(r *Resolved) error {
	if p == nil {
		return nil
	}
	if r.Value == nil {
		return fmt.Errorf("%w: value missing", ErrPolicyViolation)
	}

	for _, a := range p.DenyTo {
		if a == r.To {
			return fmt.Errorf("%w: destination %s denied", ErrPolicyViolation, r.To.Hex())
		}
	}
	if len(p.AllowTo) > 0 {
		allowed := false
		for _, a := range p.AllowTo {
			if a == r.To {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("%w: destination %s not in allowlist", ErrPolicyViolation, r.To.Hex())
		}
	}
	if p.MaxPerTxWei != nil && r.Value.Cmp(p.MaxPerTxWei) > 0 {
		return fmt.Errorf("%w: value %s exceeds max per tx limit %s", ErrPolicyViolation, r.Value, p.MaxPerTxWei)
	}
	return nil
}
