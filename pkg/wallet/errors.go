// Package wallet provides the wallet connector, chain transports, gas pricing and
// transaction submission used by the approval flow.
package wallet

import (
	"errors"
	"fmt"
)

// Error codes for wallet operations
const (
	// ErrCodeNotConnected indicates no account is connected
	ErrCodeNotConnected = "NOT_CONNECTED"
	// ErrCodeTransportUnavailable indicates no chain transport exists for the active chain
	ErrCodeTransportUnavailable = "TRANSPORT_UNAVAILABLE"
	// ErrCodeRouterUnresolved indicates the active chain has no router address
	ErrCodeRouterUnresolved = "ROUTER_UNRESOLVED"
	// ErrCodeTokenRequired indicates the token address is empty
	ErrCodeTokenRequired = "TOKEN_REQUIRED"
	// ErrCodeInvalidAddress indicates an invalid blockchain address format
	ErrCodeInvalidAddress = "INVALID_ADDRESS"
	// ErrCodeSignerUnavailable indicates no signing client is available
	ErrCodeSignerUnavailable = "SIGNER_UNAVAILABLE"
	// ErrCodeGasEstimationFailed indicates gas estimation failed
	ErrCodeGasEstimationFailed = "GAS_ESTIMATION_FAILED"
	// ErrCodeGasPricingFailed indicates neither fee-market nor legacy pricing succeeded
	ErrCodeGasPricingFailed = "GAS_PRICING_FAILED"
	// ErrCodeTransactionFailed indicates a transaction failed to sign or broadcast
	ErrCodeTransactionFailed = "TRANSACTION_FAILED"
	// ErrCodeUnsupportedChain indicates the chain is not part of the registry
	ErrCodeUnsupportedChain = "UNSUPPORTED_CHAIN"
	// ErrCodeInvalidPrivateKey indicates an invalid or malformed private key
	ErrCodeInvalidPrivateKey = "INVALID_PRIVATE_KEY"
	// ErrCodeRPCError indicates an RPC connection or call failed
	ErrCodeRPCError = "RPC_ERROR"
	// ErrCodeTimeout indicates operation timed out
	ErrCodeTimeout = "TIMEOUT"
	// ErrCodeInvalidABI indicates invalid or malformed contract ABI
	ErrCodeInvalidABI = "INVALID_ABI"
	// ErrCodeContractError indicates contract interaction failed
	ErrCodeContractError = "CONTRACT_ERROR"
	// ErrCodeInvalidAmount indicates a token amount outside the uint256 range
	ErrCodeInvalidAmount = "INVALID_AMOUNT"
	// ErrCodeChainBusy indicates the active chain is pinned by a running transaction
	ErrCodeChainBusy = "CHAIN_BUSY"
)

// WalletError represents a wallet-specific error with additional context
// about the error type, message, underlying error and chain.
type WalletError struct {
	Code    string // Error code identifying the type of error
	Message string // Human readable error message
	Err     error  // Underlying error if any
	ChainID uint64 // Chain where the error occurred, zero if unknown
}

// Error implements the error interface for WalletError.
func (e *WalletError) Error() string {
	if e.ChainID != 0 {
		return fmt.Sprintf("[%s] %s on chain %d: %v", e.Code, e.Message, e.ChainID, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
}

// Unwrap returns the underlying error.
func (e *WalletError) Unwrap() error {
	return e.Err
}

// UserMessage returns the text shown to the user, without the error code.
func (e *WalletError) UserMessage() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// NewWalletError creates a new WalletError with the given parameters.
func NewWalletError(code string, message string, err error, chainID uint64) *WalletError {
	return &WalletError{
		Code:    code,
		Message: message,
		Err:     err,
		ChainID: chainID,
	}
}

// IsWalletError checks if an error chain contains a WalletError with the given code.
func IsWalletError(err error, code string) bool {
	var e *WalletError
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// UserMessage converts any error into the single line shown in the UI.
// Errors with no text map to fallback.
func UserMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var e *WalletError
	if errors.As(err, &e) {
		if msg := e.UserMessage(); msg != "" {
			return msg
		}
		return fallback
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallback
}
