package wallet

import (
	"errors"
	"fmt"
)

var (
	// ErrNoAddress is returned when a wallet is used before Connect
	ErrNoAddress       = errors.New("wallet has no address, connect it first")
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountLocked   = errors.New("account is locked")
	ErrInvalidKey      = errors.New("invalid private key")
	ErrNoProvider      = errors.New("no wallet provider available")
	ErrCodeRequired    = errors.New("verification code required")
	ErrWalletNotFound  = errors.New("wallet not connected")
)

// ConnectionError reports a failed connect, whether the provider was
// missing, the user declined or authentication failed
type ConnectionError struct {
	Wallet Kind
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect %s wallet: %v", e.Wallet, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// UserRejectedError reports an explicit decline in the wallet UI
type UserRejectedError struct {
	Method  string
	Message string
}

func (e *UserRejectedError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("user rejected %s: %s", e.Method, e.Message)
	}
	return fmt.Sprintf("user rejected %s", e.Method)
}
