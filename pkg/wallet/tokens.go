package wallet

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// erc20ABI is the minimal ERC-20 surface used here: approve, allowance and balanceOf.
const erc20ABI = `[
	{
		"constant": false,
		"inputs": [
			{"name": "_spender", "type": "address"},
			{"name": "_value", "type": "uint256"}
		],
		"name": "approve",
		"outputs": [{"name": "", "type": "bool"}],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [
			{"name": "_owner", "type": "address"},
			{"name": "_spender", "type": "address"}
		],
		"name": "allowance",
		"outputs": [{"name": "remaining", "type": "uint256"}],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [{"name": "_owner", "type": "address"}],
		"name": "balanceOf",
		"outputs": [{"name": "balance", "type": "uint256"}],
		"type": "function"
	}
]`

// ApproveSignature is the canonical signature of the ERC-20 approve function.
const ApproveSignature = "approve(address,uint256)"

var parsedERC20ABI = mustParseABI(erc20ABI)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("wallet: invalid built-in ABI: %v", err))
	}
	return parsed
}

// MaxAllowance returns 2^256 - 1, the largest uint256, as a fresh value.
func MaxAllowance() *big.Int {
	one := big.NewInt(1)
	return new(big.Int).Sub(new(big.Int).Lsh(one, 256), one)
}

// ContractCall describes a single contract write: target, function and
// arguments, plus the ABI-packed calldata.
type ContractCall struct {
	To        common.Address
	Method    string
	Signature string
	Args      []interface{}
	Data      []byte
}

// BuildApproveCall builds the call granting spender amount of token.
func BuildApproveCall(token, spender common.Address, amount *big.Int) (ContractCall, error) {
	if amount == nil || amount.Sign() < 0 || amount.Cmp(MaxAllowance()) > 0 {
		return ContractCall{}, NewWalletError(ErrCodeInvalidAmount, "approve amount must be a uint256", nil, 0)
	}

	data, err := parsedERC20ABI.Pack("approve", spender, amount)
	if err != nil {
		return ContractCall{}, NewWalletError(ErrCodeInvalidABI, "failed to encode approve call", err, 0)
	}

	return ContractCall{
		To:        token,
		Method:    "approve",
		Signature: ApproveSignature,
		Args:      []interface{}{spender, amount},
		Data:      data,
	}, nil
}

// CallMsg returns the read-only simulation message for the call sent from from.
func (c ContractCall) CallMsg(from common.Address) ethereum.CallMsg {
	to := c.To
	return ethereum.CallMsg{
		From:  from,
		To:    &to,
		Value: big.NewInt(0),
		Data:  c.Data,
	}
}

// Allowance reads how much of token spender may move on behalf of owner.
//
// Example:
//
//	remaining, err := Allowance(ctx, transport, tokenAddr, owner, router)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Allowance: %s\n", remaining.String())
func Allowance(ctx context.Context, transport Transport, token, owner, spender common.Address) (*big.Int, error) {
	data, err := parsedERC20ABI.Pack("allowance", owner, spender)
	if err != nil {
		return nil, NewWalletError(ErrCodeInvalidABI, "failed to encode allowance call", err, 0)
	}

	out, err := transport.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, NewWalletError(ErrCodeContractError, "failed to read allowance", err, 0)
	}

	values, err := parsedERC20ABI.Unpack("allowance", out)
	if err != nil {
		return nil, NewWalletError(ErrCodeContractError, "failed to decode allowance", err, 0)
	}
	if len(values) == 0 {
		return nil, NewWalletError(ErrCodeContractError, "no allowance returned", nil, 0)
	}

	remaining, ok := values[0].(*big.Int)
	if !ok {
		return nil, NewWalletError(ErrCodeContractError, "failed to convert allowance to *big.Int", nil, 0)
	}

	return remaining, nil
}
