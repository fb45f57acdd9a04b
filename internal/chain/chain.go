package chain

import (
	"fmt"

	"github.com/yolodolo42/txflow/internal/client"
)

// NativeCurrency describes a chain's gas token. Zero fields mean "unknown".
type NativeCurrency struct {
	Name     string `json:"name" yaml:"name"`
	Symbol   string `json:"symbol" yaml:"symbol"`
	Decimals uint8  `json:"decimals" yaml:"decimals"`
}

// Definition is the structured form of a chain
type Definition struct {
	ID             uint64
	RPC            string
	NativeCurrency *NativeCurrency
}

// Chain is either a bare numeric chain ID or a structured definition. It is a
// value type and never changes after construction.
type Chain struct {
	id     uint64
	rpc    string
	native *NativeCurrency
	bare   bool
}

// FromID returns the bare form of a chain
func FromID(id uint64) Chain {
	return Chain{id: id, bare: true}
}

// Define returns the structured form of a chain
func Define(d Definition) Chain {
	c := Chain{id: d.ID, rpc: d.RPC}
	if d.NativeCurrency != nil {
		nc := *d.NativeCurrency
		c.native = &nc
	}
	return c
}

// ID returns the chain ID
func (c Chain) ID() uint64 {
	return c.id
}

// IsBare reports whether the chain was built from an ID alone
func (c Chain) IsBare() bool {
	return c.bare
}

// RPC returns the explicit RPC URL, "" when none was given
func (c Chain) RPC() string {
	return c.rpc
}

// NativeCurrency returns the embedded currency, if any
func (c Chain) NativeCurrency() (NativeCurrency, bool) {
	if c.native == nil {
		return NativeCurrency{}, false
	}
	return *c.native, true
}

func (c Chain) String() string {
	if c.bare || c.rpc == "" {
		return fmt.Sprintf("chain(%d)", c.id)
	}
	return fmt.Sprintf("chain(%d, %s)", c.id, c.rpc)
}

// RPCURL resolves the RPC endpoint for a chain. Bare chains and structured
// chains without an RPC URL use the thirdweb RPC template; an explicit URL
// always wins.
func RPCURL(c Chain, cl *client.Client) string {
	if !c.bare && c.rpc != "" {
		return c.rpc
	}
	clientID := ""
	if cl != nil {
		clientID = cl.ClientID()
	}
	return fmt.Sprintf("https://%d.rpc.thirdweb.com/%s", c.id, clientID)
}
