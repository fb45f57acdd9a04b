package tx

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// ContractCallError reports calldata the node rejected or a call that
// reverted during estimation or a read. ABI mismatches found while resolving
// a descriptor are reported the same way.
type ContractCallError struct {
	Contract common.Address
	Method   string
	Reason   string
	Err      error
}

func (e *ContractCallError) Error() string {
	msg := fmt.Sprintf("contract call %s on %s failed", e.Method, e.Contract.Hex())
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ContractCallError) Unwrap() error {
	return e.Err
}

// CallError wraps err as a ContractCallError when the node reports a revert.
// Any other error is returned as is.
func CallError(r *Resolved, err error) error {
	if err == nil {
		return nil
	}
	var existing *ContractCallError
	if errors.As(err, &existing) {
		return err
	}

	reason, reverted := revertReason(err)
	if !reverted {
		return err
	}
	cce := &ContractCallError{Reason: reason, Err: err}
	if r != nil {
		cce.Contract = r.To
		cce.Method = r.Method
	}
	return cce
}

func revertReason(err error) (string, bool) {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if s, ok := dataErr.ErrorData().(string); ok {
			if raw, decErr := hexutil.Decode(s); decErr == nil {
				if reason, unpackErr := abi.UnpackRevert(raw); unpackErr == nil {
					return reason, true
				}
			}
		}
		return "", true
	}
	if strings.Contains(strings.ToLower(err.Error()), "execution reverted") {
		return "", true
	}
	return "", false
}
