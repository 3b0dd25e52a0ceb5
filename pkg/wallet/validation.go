package wallet

import (
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// addressRegex checks for a "0x" prefix followed by exactly 40 hex characters.
	addressRegex = regexp.MustCompile("^0x[0-9a-fA-F]{40}$")
)

// ParseAddress validates an address entered by the user and returns it parsed.
// All-lowercase and all-uppercase input is accepted as is; mixed-case input
// must match its EIP-55 checksum.
//
// Example:
//
//	addr, err := ParseAddress("0x742d35Cc6634C0532925a3b844Bc454e4438f44e")
//	if err != nil {
//	    log.Fatal(err)
//	}
func ParseAddress(address string) (common.Address, error) {
	address = strings.TrimSpace(address)

	if !addressRegex.MatchString(address) {
		return common.Address{}, NewWalletError(ErrCodeInvalidAddress, "invalid address format", nil, 0)
	}

	parsed := common.HexToAddress(address)
	body := address[2:]
	if body != strings.ToLower(body) && body != strings.ToUpper(body) && address != parsed.Hex() {
		return common.Address{}, NewWalletError(ErrCodeInvalidAddress, "invalid address checksum", nil, 0)
	}

	return parsed, nil
}
