package approval

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/lisanmuaddib/allowance-go/pkg/wallet"
)

// ErrFlowInProgress is returned when Approve is called while a run is in flight.
var ErrFlowInProgress = errors.New("approval already in progress")

// defaultErrorMessage is shown when a failure carries no text of its own.
const defaultErrorMessage = "Transaction failed"

// Wallet is the part of the wallet connector the flow reads. A run works on
// one session from validation to broadcast and releases it when done.
type Wallet interface {
	Acquire() wallet.Session
}

// RouterResolver maps a chain id to the spender contract.
type RouterResolver interface {
	Lookup(chainID uint64) (common.Address, bool)
}

// GasQuoter prices a transaction for the chain behind the estimator.
type GasQuoter interface {
	Resolve(ctx context.Context, est wallet.FeeEstimator) (wallet.GasQuote, error)
}

// Observer receives a snapshot on every state transition. It is called
// synchronously and must not block.
type Observer func(Snapshot)

// Config holds the collaborators of a Flow.
type Config struct {
	Wallet  Wallet
	Routers RouterResolver
	Gas     GasQuoter
	Logger  *logrus.Logger
}

func validateConfig(config Config) error {
	if config.Wallet == nil {
		return errors.New("wallet is required")
	}
	if config.Routers == nil {
		return errors.New("router resolver is required")
	}
	if config.Gas == nil {
		return errors.New("gas quoter is required")
	}
	if config.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}
