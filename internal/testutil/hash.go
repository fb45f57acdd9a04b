package testutil

import (
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// RawTxHash returns the hash of a hex-encoded signed transaction, or "" when
// it cannot be decoded
func RawTxHash(raw string) string {
	b, err := hexutil.Decode(raw)
	if err != nil {
		return ""
	}
	var tx types.Transaction
	if err := tx.UnmarshalBinary(b); err != nil {
		return ""
	}
	return tx.Hash().Hex()
}
