package wallet

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
)

// TransactionStatus represents the status of a transaction on the blockchain.
type TransactionStatus struct {
	// Hash is the unique transaction identifier
	Hash common.Hash `json:"hash"`

	// Status indicates transaction success (1) or failure (0)
	Status uint64 `json:"status"`

	// BlockNumber is the block height where transaction was mined
	BlockNumber *big.Int `json:"blockNumber"`

	// GasUsed is the actual amount of gas consumed
	GasUsed uint64 `json:"gasUsed"`

	// EffectiveGasPrice is the actual gas price paid
	EffectiveGasPrice *big.Int `json:"effectiveGasPrice"`

	// Confirmations is the number of block confirmations
	Confirmations uint64 `json:"confirmations"`

	// Timestamp when the status was last updated
	Timestamp time.Time `json:"timestamp"`
}

const (
	// defaultReceiptTimeout is how long to wait for a receipt
	defaultReceiptTimeout = 5 * time.Minute

	// defaultPollInterval is how often to check for receipt
	defaultPollInterval = 5 * time.Second

	// minConfirmations is minimum blocks needed to consider tx confirmed
	minConfirmations = 1
)

// ReceiptOptions controls WaitForReceipt polling.
type ReceiptOptions struct {
	PollInterval     time.Duration
	Timeout          time.Duration
	MinConfirmations uint64
}

// DefaultReceiptOptions polls every 5 seconds for up to 5 minutes and needs one
// confirmation.
func DefaultReceiptOptions() ReceiptOptions {
	return ReceiptOptions{
		PollInterval:     defaultPollInterval,
		Timeout:          defaultReceiptTimeout,
		MinConfirmations: minConfirmations,
	}
}

// WaitForReceipt polls transport until hash is mined with enough confirmations,
// the timeout passes, or ctx is done.
//
// Example:
//
//	status, err := WaitForReceipt(ctx, transport, chainID, txHash, DefaultReceiptOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Transaction confirmed in block %s\n", status.BlockNumber)
func WaitForReceipt(ctx context.Context, transport Transport, chainID uint64, hash common.Hash, opts ReceiptOptions) (*TransactionStatus, error) {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultReceiptTimeout
	}

	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()

	timeout := time.After(opts.Timeout)

	for {
		select {
		case <-ctx.Done():
			return nil, NewWalletError(ErrCodeTimeout, "context cancelled while waiting for receipt", ctx.Err(), chainID)
		case <-timeout:
			return nil, NewWalletError(ErrCodeTimeout, "timeout waiting for receipt", nil, chainID)
		case <-ticker.C:
			receipt, err := transport.TransactionReceipt(ctx, hash)
			if err != nil {
				if errors.Is(err, ethereum.NotFound) {
					continue
				}
				return nil, NewWalletError(ErrCodeRPCError, "failed to get receipt", err, chainID)
			}

			currentBlock, err := transport.BlockNumber(ctx)
			if err != nil {
				return nil, NewWalletError(ErrCodeRPCError, "failed to get current block number", err, chainID)
			}

			var confirmations uint64
			if mined := receipt.BlockNumber.Uint64(); currentBlock >= mined {
				confirmations = currentBlock - mined + 1
			}
			if confirmations < opts.MinConfirmations {
				continue
			}

			return &TransactionStatus{
				Hash:              hash,
				Status:            receipt.Status,
				BlockNumber:       receipt.BlockNumber,
				GasUsed:           receipt.GasUsed,
				EffectiveGasPrice: receipt.EffectiveGasPrice,
				Confirmations:     confirmations,
				Timestamp:         time.Now(),
			}, nil
		}
	}
}

// WriteRequest is everything needed to submit a contract write.
type WriteRequest struct {
	Call ContractCall
	Fees GasQuote
	Gas  uint64
}

// Writer submits signed contract writes.
type Writer interface {
	WriteContract(ctx context.Context, req WriteRequest) (common.Hash, error)
}

// WriteClient signs and broadcasts transactions for one chain and account.
type WriteClient struct {
	transport Transport
	signer    Signer
	chainID   uint64
	nonces    *NonceManager
	log       *logrus.Logger
}

// NewWriteClient creates a write client. A nil nonce manager gets a fresh one.
func NewWriteClient(transport Transport, signer Signer, chainID uint64, nonces *NonceManager, log *logrus.Logger) *WriteClient {
	if nonces == nil {
		nonces = NewNonceManager()
	}
	if log == nil {
		log = logrus.New()
	}
	return &WriteClient{
		transport: transport,
		signer:    signer,
		chainID:   chainID,
		nonces:    nonces,
		log:       log,
	}
}

// WriteContract builds a dynamic-fee or legacy transaction from req, signs it
// and broadcasts it. It returns the transaction hash once the node accepts it.
func (w *WriteClient) WriteContract(ctx context.Context, req WriteRequest) (common.Hash, error) {
	from := w.signer.Address()

	nonce, err := w.nonces.Next(ctx, w.transport, w.chainID, from)
	if err != nil {
		return common.Hash{}, err
	}
	defer w.nonces.Release(w.chainID, from, nonce)

	tx := buildTransaction(w.chainID, nonce, req)

	signedTx, err := w.signer.SignTx(tx, new(big.Int).SetUint64(w.chainID))
	if err != nil {
		return common.Hash{}, NewWalletError(ErrCodeTransactionFailed, "failed to sign transaction", err, w.chainID)
	}

	if err := w.transport.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, NewWalletError(ErrCodeTransactionFailed, "failed to send transaction", err, w.chainID)
	}

	w.log.WithFields(logrus.Fields{
		"chain_id": w.chainID,
		"tx_hash":  signedTx.Hash().Hex(),
		"nonce":    nonce,
		"gas":      req.Gas,
		"is1559":   req.Fees.Is1559,
	}).Info("Transaction broadcast")

	return signedTx.Hash(), nil
}

func buildTransaction(chainID, nonce uint64, req WriteRequest) *types.Transaction {
	to := req.Call.To
	if req.Fees.Is1559 {
		return types.NewTx(&types.DynamicFeeTx{
			ChainID:   new(big.Int).SetUint64(chainID),
			Nonce:     nonce,
			GasTipCap: req.Fees.MaxPriorityFeePerGas,
			GasFeeCap: req.Fees.MaxFeePerGas,
			Gas:       req.Gas,
			To:        &to,
			Value:     big.NewInt(0),
			Data:      req.Call.Data,
		})
	}
	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: req.Fees.GasPrice,
		Gas:      req.Gas,
		To:       &to,
		Value:    big.NewInt(0),
		Data:     req.Call.Data,
	})
}
