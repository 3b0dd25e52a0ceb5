package wallet

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"

	"github.com/lisanmuaddib/allowance-go/pkg/chains"
)

// FeeEstimator is the part of a chain transport the gas resolver needs.
type FeeEstimator interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// Transport is an RPC connection to a single chain. *ethclient.Client
// satisfies it.
type Transport interface {
	FeeEstimator
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
	Close()
}

// DialFunc opens a transport for a network.
type DialFunc func(ctx context.Context, network chains.Network) (Transport, error)

// NewEthDialer returns a DialFunc backed by ethclient with retries.
func NewEthDialer(log *logrus.Logger, cfg DialConfig) DialFunc {
	return func(ctx context.Context, network chains.Network) (Transport, error) {
		client, err := dialWithRetry(ctx, log, cfg, network)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

// dialWithRetry attempts to connect to the network, retrying failed attempts
// according to cfg.
func dialWithRetry(ctx context.Context, log *logrus.Logger, cfg DialConfig, network chains.Network) (*ethclient.Client, error) {
	var client *ethclient.Client
	var err error

	for i := 0; i <= cfg.MaxRetries; i++ {
		client, err = ethclient.DialContext(ctx, network.RPCURL)
		if err == nil {
			return client, nil
		}

		if i < cfg.MaxRetries {
			log.WithFields(logrus.Fields{
				"chain_id": network.ChainID,
				"attempt":  i + 1,
				"error":    err,
			}).Debug("Retrying network connection")

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(cfg.RetryDelay):
			}
		}
	}

	return nil, fmt.Errorf("failed to connect after %d attempts: %w", cfg.MaxRetries+1, err)
}
