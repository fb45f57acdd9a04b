package receipt

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// TimeoutError is returned when a receipt did not appear within the
// request's timeout or the poller's attempt budget
type TimeoutError struct {
	Hash     common.Hash
	Attempts int
	LastErr  error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("timed out waiting for receipt of %s after %d attempts", e.Hash.Hex(), e.Attempts)
	if e.LastErr != nil {
		msg += fmt.Sprintf(" (last error: %v)", e.LastErr)
	}
	return msg
}

func (e *TimeoutError) Unwrap() error {
	return e.LastErr
}
