package chain

import "fmt"

// MetadataFetchError reports a failed chain metadata lookup. Lookups that
// feed symbol or decimals swallow it and fall back to defaults.
type MetadataFetchError struct {
	ChainID uint64
	Err     error
}

func (e *MetadataFetchError) Error() string {
	return fmt.Sprintf("failed to fetch chain data for chainId %d: %v", e.ChainID, e.Err)
}

func (e *MetadataFetchError) Unwrap() error {
	return e.Err
}

// UnknownChainError is returned when a name is neither a preset nor a number
type UnknownChainError struct {
	Name string
}

func (e *UnknownChainError) Error() string {
	return fmt.Sprintf("unknown chain: %s", e.Name)
}
