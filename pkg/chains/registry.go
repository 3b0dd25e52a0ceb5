// Package chains holds the static network and connector registry plus the
// per-network router address table.
package chains

import (
	"fmt"
	"sort"
	"strings"
)

// Well-known chain identifiers used by the default registry.
const (
	EthereumMainnet uint64 = 1
	BSCMainnet      uint64 = 56
	PolygonMainnet  uint64 = 137
	ArbitrumOne     uint64 = 42161
)

// Connector kinds a registry may enable.
const (
	ConnectorPrivateKey = "private-key"
	ConnectorKeystore   = "keystore"
)

// Network describes one EVM network the demo can switch to.
type Network struct {
	// ChainID is the EIP-155 chain identifier
	ChainID uint64 `json:"chainId"`

	// Name is the display name shown in the network selector
	Name string `json:"name"`

	// RPCURL is the HTTP(S) endpoint used for the chain transport
	RPCURL string `json:"-"`

	// Explorer is the base URL for transaction links, e.g. https://etherscan.io
	Explorer string `json:"explorer,omitempty"`

	// NativeCurrency is the gas token symbol
	NativeCurrency string `json:"nativeCurrency,omitempty"`
}

// TxURL returns an explorer link for the given transaction hash, or an empty
// string when the network has no explorer configured.
func (n Network) TxURL(hash string) string {
	if n.Explorer == "" || hash == "" {
		return ""
	}
	return strings.TrimRight(n.Explorer, "/") + "/tx/" + hash
}

// DefaultNetworks returns the preconfigured networks. RPC URLs point at public
// endpoints and are expected to be overridden in real deployments.
func DefaultNetworks() []Network {
	return []Network{
		{
			ChainID:        EthereumMainnet,
			Name:           "Ethereum",
			RPCURL:         "https://eth.llamarpc.com",
			Explorer:       "https://etherscan.io",
			NativeCurrency: "ETH",
		},
		{
			ChainID:        ArbitrumOne,
			Name:           "Arbitrum One",
			RPCURL:         "https://arb1.arbitrum.io/rpc",
			Explorer:       "https://arbiscan.io",
			NativeCurrency: "ETH",
		},
		{
			ChainID:        PolygonMainnet,
			Name:           "Polygon",
			RPCURL:         "https://polygon-rpc.com",
			Explorer:       "https://polygonscan.com",
			NativeCurrency: "POL",
		},
		{
			ChainID:        BSCMainnet,
			Name:           "BNB Smart Chain",
			RPCURL:         "https://bsc-dataseed.bnbchain.org",
			Explorer:       "https://bscscan.com",
			NativeCurrency: "BNB",
		},
	}
}

// DefaultConnectors returns the connector kinds enabled out of the box.
func DefaultConnectors() []string {
	return []string{ConnectorPrivateKey, ConnectorKeystore}
}

// Registry is the immutable table of networks and enabled connectors.
type Registry struct {
	networks   map[uint64]Network
	order      []uint64
	connectors []string
}

// NewRegistry validates the given networks and connectors and builds a Registry.
// Networks keep the order they were given in.
func NewRegistry(networks []Network, connectors []string) (*Registry, error) {
	if len(networks) == 0 {
		return nil, fmt.Errorf("at least one network is required")
	}

	r := &Registry{
		networks: make(map[uint64]Network, len(networks)),
		order:    make([]uint64, 0, len(networks)),
	}

	for _, n := range networks {
		if n.ChainID == 0 {
			return nil, fmt.Errorf("network %q: chain id is required", n.Name)
		}
		if strings.TrimSpace(n.Name) == "" {
			return nil, fmt.Errorf("network %d: name is required", n.ChainID)
		}
		if strings.TrimSpace(n.RPCURL) == "" {
			return nil, fmt.Errorf("network %d: rpc url is required", n.ChainID)
		}
		if _, exists := r.networks[n.ChainID]; exists {
			return nil, fmt.Errorf("duplicate network for chain id %d", n.ChainID)
		}
		r.networks[n.ChainID] = n
		r.order = append(r.order, n.ChainID)
	}

	seen := make(map[string]bool, len(connectors))
	for _, c := range connectors {
		switch c {
		case ConnectorPrivateKey, ConnectorKeystore:
		default:
			return nil, fmt.Errorf("unknown connector %q", c)
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		r.connectors = append(r.connectors, c)
	}

	return r, nil
}

// Network looks up a network by chain id.
func (r *Registry) Network(chainID uint64) (Network, bool) {
	n, ok := r.networks[chainID]
	return n, ok
}

// Supports reports whether the chain id is part of the registry.
func (r *Registry) Supports(chainID uint64) bool {
	_, ok := r.networks[chainID]
	return ok
}

// Networks returns all networks in registration order.
func (r *Registry) Networks() []Network {
	out := make([]Network, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.networks[id])
	}
	return out
}

// ChainIDs returns the supported chain ids in ascending order.
func (r *Registry) ChainIDs() []uint64 {
	ids := append([]uint64(nil), r.order...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Connectors returns the enabled connector kinds.
func (r *Registry) Connectors() []string {
	return append([]string(nil), r.connectors...)
}

// ConnectorEnabled reports whether a connector kind is enabled.
func (r *Registry) ConnectorEnabled(kind string) bool {
	for _, c := range r.connectors {
		if c == kind {
			return true
		}
	}
	return false
}

// WithRPCOverrides returns a copy of networks with RPC URLs replaced by the
// entries in overrides. Unknown chain ids are ignored.
func WithRPCOverrides(networks []Network, overrides map[uint64]string) []Network {
	out := make([]Network, len(networks))
	copy(out, networks)
	for i := range out {
		if url, ok := overrides[out[i].ChainID]; ok && strings.TrimSpace(url) != "" {
			out[i].RPCURL = strings.TrimSpace(url)
		}
	}
	return out
}
