// Package erc721 prepares and reads the common ERC-721 calls.
package erc721

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/yolodolo42/txflow/internal/chain"
	"github.com/yolodolo42/txflow/internal/contract"
	"github.com/yolodolo42/txflow/internal/tx"
)

// DefaultCount is how many tokens GetNFTs returns when no count is given
const DefaultCount = 100

const (
	sigTokenURI          = "function tokenURI(uint256 tokenId) view returns (string)"
	sigOwnerOf           = "function ownerOf(uint256 tokenId) view returns (address)"
	sigTransferFrom      = "function transferFrom(address from, address to, uint256 tokenId)"
	sigStartTokenID      = "function startTokenId() view returns (uint256)"
	sigNextTokenIDToMint = "function nextTokenIdToMint() view returns (uint256)"
	sigTotalSupply       = "function totalSupply() view returns (uint256)"

	readConcurrency = 8
)

// ErrSupplyUnknown is returned by GetNFTs for contracts exposing neither
// nextTokenIdToMint nor totalSupply
var ErrSupplyUnknown = errors.New("contract exposes neither nextTokenIdToMint nor totalSupply")

// NFT is one token of a collection. Owner is nil unless requested.
type NFT struct {
	ID       *big.Int        `json:"id"`
	TokenURI string          `json:"token_uri"`
	Owner    *common.Address `json:"owner,omitempty"`
}

// PrepareTokenURI prepares tokenURI(tokenId)
func PrepareTokenURI(c *contract.Contract, tokenID *big.Int) *tx.Descriptor {
	return tx.Prepare(c, sigTokenURI, tx.Literal(tokenID))
}

// PrepareOwnerOf prepares ownerOf(tokenId)
func PrepareOwnerOf(c *contract.Contract, tokenID *big.Int) *tx.Descriptor {
	return tx.Prepare(c, sigOwnerOf, tx.Literal(tokenID))
}

// TransferFrom prepares transferFrom(from, to, tokenId)
func TransferFrom(c *contract.Contract, from, to common.Address, tokenID *big.Int, opts ...tx.Option) *tx.Descriptor {
	return tx.Prepare(c, sigTransferFrom, tx.Literal(from, to, tokenID), opts...)
}

// TokenURI reads the metadata URI of a token
func TokenURI(ctx context.Context, reg *chain.Registry, c *contract.Contract, tokenID *big.Int) (string, error) {
	return tx.ReadOne[string](ctx, reg, PrepareTokenURI(c, tokenID))
}

// OwnerOf reads the current owner of a token
func OwnerOf(ctx context.Context, reg *chain.Registry, c *contract.Contract, tokenID *big.Int) (common.Address, error) {
	return tx.ReadOne[common.Address](ctx, reg, PrepareOwnerOf(c, tokenID))
}

// GetNFT reads one token, with its owner when includeOwner is set
func GetNFT(ctx context.Context, reg *chain.Registry, c *contract.Contract, tokenID *big.Int, includeOwner bool) (*NFT, error) {
	nft := &NFT{ID: new(big.Int).Set(tokenID)}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		uri, err := TokenURI(gctx, reg, c, tokenID)
		if err != nil {
			return fmt.Errorf("token %s: %w", tokenID, err)
		}
		nft.TokenURI = uri
		return nil
	})
	if includeOwner {
		g.Go(func() error {
			owner, err := OwnerOf(gctx, reg, c, tokenID)
			if err != nil {
				return fmt.Errorf("owner of token %s: %w", tokenID, err)
			}
			nft.Owner = &owner
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return nft, nil
}

// Query selects a page of tokens. Start is relative to the collection's first
// token ID; Count defaults to DefaultCount.
type Query struct {
	Start         int64
	Count         int64
	IncludeOwners bool
}

// GetNFTs reads a page of tokens in ID order. The collection size comes from
// nextTokenIdToMint, or totalSupply when that is missing; startTokenId
// defaults to zero.
func GetNFTs(ctx context.Context, reg *chain.Registry, c *contract.Contract, q Query) ([]*NFT, error) {
	first, supply, err := bounds(ctx, reg, c)
	if err != nil {
		return nil, err
	}

	count := q.Count
	if count <= 0 {
		count = DefaultCount
	}
	start := new(big.Int).Add(big.NewInt(q.Start), first)
	end := new(big.Int).Add(start, big.NewInt(count))
	if last := new(big.Int).Add(supply, first); last.Cmp(end) < 0 {
		end = last
	}
	if start.Cmp(end) >= 0 {
		return []*NFT{}, nil
	}

	n := new(big.Int).Sub(end, start).Int64()
	nfts := make([]*NFT, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(readConcurrency)
	for i := int64(0); i < n; i++ {
		id := new(big.Int).Add(start, big.NewInt(i))
		g.Go(func() error {
			nft, err := GetNFT(gctx, reg, c, id, q.IncludeOwners)
			if err != nil {
				return err
			}
			nfts[i] = nft
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return nfts, nil
}

// bounds returns the first token ID and the number of tokens minted
func bounds(ctx context.Context, reg *chain.Registry, c *contract.Contract) (first, supply *big.Int, err error) {
	var next, total *big.Int
	var nextErr, totalErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := tx.ReadOne[*big.Int](gctx, reg, tx.Prepare(c, sigStartTokenID, tx.Literal()))
		if err != nil {
			v = new(big.Int)
		}
		first = v
		return nil
	})
	g.Go(func() error {
		next, nextErr = tx.ReadOne[*big.Int](gctx, reg, tx.Prepare(c, sigNextTokenIDToMint, tx.Literal()))
		return nil
	})
	g.Go(func() error {
		total, totalErr = tx.ReadOne[*big.Int](gctx, reg, tx.Prepare(c, sigTotalSupply, tx.Literal()))
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	switch {
	case nextErr == nil:
		supply = new(big.Int).Sub(next, first)
	case totalErr == nil:
		supply = total
	default:
		return nil, nil, ErrSupplyUnknown
	}
	if supply.Sign() < 0 {
		supply = new(big.Int)
	}
	return first, supply, nil
}
