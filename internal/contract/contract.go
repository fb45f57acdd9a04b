// Package contract binds a client, a chain and an address into a handle that
// transaction descriptors are prepared against.
package contract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/yolodolo42/txflow/internal/chain"
	"github.com/yolodolo42/txflow/internal/client"
)

var (
	ErrInvalidAddress = errors.New("invalid contract address")
	ErrInvalidABI     = errors.New("invalid contract abi")
)

// Contract is an immutable (client, chain, address) triple with an optional ABI
type Contract struct {
	client  *client.Client
	chain   chain.Chain
	address common.Address
	abi     *abi.ABI
}

// New validates address and returns a contract handle. At most one ABI JSON
// document may be given; methods can then be referenced by name.
func New(cl *client.Client, c chain.Chain, address string, abiJSON ...string) (*Contract, error) {
	if !common.IsHexAddress(address) || !strings.HasPrefix(strings.ToLower(address), "0x") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}

	ct := &Contract{
		client:  cl,
		chain:   c,
		address: common.HexToAddress(address),
	}

	if len(abiJSON) > 0 && strings.TrimSpace(abiJSON[0]) != "" {
		parsed, err := abi.JSON(strings.NewReader(abiJSON[0]))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidABI, err)
		}
		ct.abi = &parsed
	}

	return ct, nil
}

// MustNew is New for addresses known at compile time
func MustNew(cl *client.Client, c chain.Chain, address string, abiJSON ...string) *Contract {
	ct, err := New(cl, c, address, abiJSON...)
	if err != nil {
		panic(err)
	}
	return ct
}

func (c *Contract) Client() *client.Client {
	return c.client
}

func (c *Contract) Chain() chain.Chain {
	return c.chain
}

// Address returns the contract address; its Hex form is EIP-55 checksummed
func (c *Contract) Address() common.Address {
	return c.address
}

// ABI returns the contract ABI, nil when none was supplied
func (c *Contract) ABI() *abi.ABI {
	return c.abi
}

func (c *Contract) String() string {
	return fmt.Sprintf("%s@%d", c.address.Hex(), c.chain.ID())
}
