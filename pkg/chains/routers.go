package chains

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// UniswapSwapRouter02 is deployed at the same address on every default network
// that has a router entry.
const UniswapSwapRouter02 = "0x68b3465833fb72A70ecDF485E0e4C7bD8665Fc45"

// DefaultRouterAddresses returns the raw router table keyed by chain id.
// BSC is intentionally absent: approvals there have no target contract.
func DefaultRouterAddresses() map[uint64]string {
	return map[uint64]string{
		EthereumMainnet: UniswapSwapRouter02,
		ArbitrumOne:     UniswapSwapRouter02,
		PolygonMainnet:  UniswapSwapRouter02,
	}
}

// RouterTable maps chain ids to the contract that receives the allowance.
type RouterTable struct {
	routers map[uint64]common.Address
}

// NewRouterTable parses and validates a raw router table. Every entry must be a
// non-zero hex address; mixed-case entries must carry a valid EIP-55 checksum.
func NewRouterTable(raw map[uint64]string) (*RouterTable, error) {
	t := &RouterTable{routers: make(map[uint64]common.Address, len(raw))}
	for chainID, addr := range raw {
		parsed, err := parseRouterAddress(addr)
		if err != nil {
			return nil, fmt.Errorf("router for chain %d: %w", chainID, err)
		}
		t.routers[chainID] = parsed
	}
	return t, nil
}

// Lookup returns the router for a chain. The second value is false when no
// router is configured for that chain.
func (t *RouterTable) Lookup(chainID uint64) (common.Address, bool) {
	addr, ok := t.routers[chainID]
	return addr, ok
}

// Len returns the number of configured routers.
func (t *RouterTable) Len() int {
	return len(t.routers)
}

func parseRouterAddress(addr string) (common.Address, error) {
	addr = strings.TrimSpace(addr)
	if !common.IsHexAddress(addr) || !strings.HasPrefix(addr, "0x") {
		return common.Address{}, fmt.Errorf("invalid address %q", addr)
	}

	parsed := common.HexToAddress(addr)
	if parsed == (common.Address{}) {
		return common.Address{}, fmt.Errorf("zero address")
	}

	lower := strings.ToLower(addr)
	if addr != lower && addr != "0x"+strings.ToUpper(lower[2:]) && addr != parsed.Hex() {
		return common.Address{}, fmt.Errorf("invalid checksum for %q", addr)
	}

	return parsed, nil
}
