package receipt

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	_ "modernc.org/sqlite"
)

// ErrNotStored is returned by Store.Get for unknown receipts
var ErrNotStored = errors.New("receipt not stored")

// Store persists transaction receipts for later retrieval.
// It is intentionally minimal: one row per (chain ID, tx hash).
type Store struct {
	db *sql.DB
}

// StoredReceipt is a row of the receipts table
type StoredReceipt struct {
	ChainID     uint64
	TxHash      string
	Status      uint64
	GasUsed     uint64
	BlockNumber uint64
	RawJSON     string
	CreatedAt   time.Time
}

// OpenStore opens (or creates) the receipt DB under dataDir/receipts.db.
func OpenStore(dataDir string) (*Store, error) {
	return OpenStoreDSN(filepath.Join(dataDir, "receipts.db"))
}

// OpenStoreDSN opens (or creates) a receipt DB using the given sqlite DSN/path.
// Tests may pass ":memory:" to avoid touching disk.
func OpenStoreDSN(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open receipts db: %w", err)
	}
	// A :memory: database is per connection.
	db.SetMaxOpenConns(1)

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS receipts (
	chain_id INTEGER NOT NULL,
	tx_hash TEXT NOT NULL,
	status INTEGER,
	gas_used INTEGER,
	block_number INTEGER,
	raw_json TEXT,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (chain_id, tx_hash)
);
`)
	if err != nil {
		return fmt.Errorf("create receipts table: %w", err)
	}
	return nil
}

// Close closes the underlying DB.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Put inserts or replaces the receipt for (chainID, receipt.TxHash)
func (s *Store) Put(ctx context.Context, chainID uint64, receipt *types.Receipt) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("receipt store not initialized")
	}
	if receipt == nil {
		return fmt.Errorf("receipt is required")
	}

	r := *receipt
	if r.Logs == nil {
		r.Logs = []*types.Log{}
	}
	raw, err := json.Marshal(&r)
	if err != nil {
		return fmt.Errorf("marshal receipt: %w", err)
	}

	var block uint64
	if r.BlockNumber != nil {
		block = r.BlockNumber.Uint64()
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO receipts (chain_id, tx_hash, status, gas_used, block_number, raw_json)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(chain_id, tx_hash) DO UPDATE SET
	status=excluded.status,
	gas_used=excluded.gas_used,
	block_number=excluded.block_number,
	raw_json=excluded.raw_json
`, int64(chainID), r.TxHash.Hex(), r.Status, r.GasUsed, block, string(raw))
	if err != nil {
		return fmt.Errorf("persist receipt: %w", err)
	}
	return nil
}

// Row returns the stored row for (chainID, hash)
func (s *Store) Row(ctx context.Context, chainID uint64, hash common.Hash) (*StoredReceipt, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("receipt store not initialized")
	}

	var out StoredReceipt
	var chainIDCol int64
	var created string
	row := s.db.QueryRowContext(ctx,
		`SELECT chain_id, tx_hash, COALESCE(status, 0), COALESCE(gas_used, 0), COALESCE(block_number, 0), COALESCE(raw_json, ''), created_at
		 FROM receipts WHERE chain_id = ? AND tx_hash = ?`,
		int64(chainID), hash.Hex(),
	)
	if err := row.Scan(&chainIDCol, &out.TxHash, &out.Status, &out.GasUsed, &out.BlockNumber, &out.RawJSON, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotStored
		}
		return nil, fmt.Errorf("read receipt: %w", err)
	}
	out.ChainID = uint64(chainIDCol)
	if ts, err := time.Parse("2006-01-02 15:04:05", created); err == nil {
		out.CreatedAt = ts
	}
	return &out, nil
}

// Get returns the stored receipt for (chainID, hash)
func (s *Store) Get(ctx context.Context, chainID uint64, hash common.Hash) (*types.Receipt, error) {
	row, err := s.Row(ctx, chainID, hash)
	if err != nil {
		return nil, err
	}
	var r types.Receipt
	if err := json.Unmarshal([]byte(row.RawJSON), &r); err != nil {
		return nil, fmt.Errorf("decode stored receipt: %w", err)
	}
	return &r, nil
}
