package chain

import (
	"sort"
	"strconv"
	"strings"
)

// Preset is a well-known chain with display metadata. Presets carry no RPC
// URL so they resolve through the thirdweb RPC template unless overridden.
type Preset struct {
	Key            string
	Name           string
	ChainID        uint64
	ExplorerURL    string
	NativeCurrency NativeCurrency
	IsTestnet      bool
}

// Chain returns the structured chain for the preset, optionally pinned to rpc
func (p Preset) Chain(rpc string) Chain {
	nc := p.NativeCurrency
	return Define(Definition{ID: p.ChainID, RPC: rpc, NativeCurrency: &nc})
}

var ether = NativeCurrency{Name: "Ether", Symbol: "ETH", Decimals: 18}

// Presets returns the built-in chains keyed by short name
func Presets() map[string]Preset {
	return map[string]Preset{
		"ethereum": {
			Key:            "ethereum",
			Name:           "Ethereum Mainnet",
			ChainID:        1,
			ExplorerURL:    "https://etherscan.io",
			NativeCurrency: ether,
		},
		"base": {
			Key:            "base",
			Name:           "Base",
			ChainID:        8453,
			ExplorerURL:    "https://basescan.org",
			NativeCurrency: ether,
		},
		"arbitrum": {
			Key:            "arbitrum",
			Name:           "Arbitrum One",
			ChainID:        42161,
			ExplorerURL:    "https://arbiscan.io",
			NativeCurrency: ether,
		},
		"optimism": {
			Key:            "optimism",
			Name:           "Optimism",
			ChainID:        10,
			ExplorerURL:    "https://optimistic.etherscan.io",
			NativeCurrency: ether,
		},
		"polygon": {
			Key:            "polygon",
			Name:           "Polygon",
			ChainID:        137,
			ExplorerURL:    "https://polygonscan.com",
			NativeCurrency: NativeCurrency{Name: "POL", Symbol: "POL", Decimals: 18},
		},
		"sepolia": {
			Key:            "sepolia",
			Name:           "Sepolia Testnet",
			ChainID:        11155111,
			ExplorerURL:    "https://sepolia.etherscan.io",
			NativeCurrency: NativeCurrency{Name: "Sepolia Ether", Symbol: "ETH", Decimals: 18},
			IsTestnet:      true,
		},
		"base-sepolia": {
			Key:            "base-sepolia",
			Name:           "Base Sepolia Testnet",
			ChainID:        84532,
			ExplorerURL:    "https://sepolia.basescan.org",
			NativeCurrency: NativeCurrency{Name: "Sepolia Ether", Symbol: "ETH", Decimals: 18},
			IsTestnet:      true,
		},
	}
}

// PresetNames returns preset keys in a stable order
func PresetNames() []string {
	presets := Presets()
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup resolves a preset name or a decimal chain ID. Numeric input that
// matches a preset returns the preset's structured chain; any other number
// returns a bare chain. rpc, when set, pins the endpoint.
func Lookup(nameOrID, rpc string) (Chain, error) {
	key := strings.ToLower(strings.TrimSpace(nameOrID))
	presets := Presets()

	if p, ok := presets[key]; ok {
		return p.Chain(rpc), nil
	}

	id, err := strconv.ParseUint(key, 10, 64)
	if err != nil || id == 0 {
		return Chain{}, &UnknownChainError{Name: nameOrID}
	}
	for _, p := range presets {
		if p.ChainID == id {
			return p.Chain(rpc), nil
		}
	}
	if rpc != "" {
		return Define(Definition{ID: id, RPC: rpc}), nil
	}
	return FromID(id), nil
}
