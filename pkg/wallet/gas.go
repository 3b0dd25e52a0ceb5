package wallet

import (
	"context"
	"errors"
	"math"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"
)

// ErrFeeMarketUnsupported is returned by fee-market estimation when the latest
// block carries no base fee.
var ErrFeeMarketUnsupported = errors.New("chain does not support EIP-1559 fees")

// methodNotFoundCode is the JSON-RPC code for an unknown method, returned by
// nodes that do not implement eth_maxPriorityFeePerGas.
const methodNotFoundCode = -32601

// GasStrategy holds the knobs for fee-market estimation.
type GasStrategy struct {
	// BaseFeeMultiplier is applied to the latest base fee before the priority
	// fee is added. 1.2 leaves room for one block of base fee growth.
	BaseFeeMultiplier float64
}

// DefaultGasStrategy returns a strategy with a 1.2 base fee multiplier.
func DefaultGasStrategy() *GasStrategy {
	return &GasStrategy{
		BaseFeeMultiplier: 1.2,
	}
}

// GasQuote is the pricing attached to a transaction. Exactly one pricing mode
// is populated, selected by Is1559.
type GasQuote struct {
	MaxFeePerGas         *big.Int `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas *big.Int `json:"maxPriorityFeePerGas,omitempty"`
	GasPrice             *big.Int `json:"gasPrice,omitempty"`
	Is1559               bool     `json:"is1559"`
}

// FeesPerGas is the raw result of fee-market estimation.
type FeesPerGas struct {
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// GasResolver decides between fee-market and legacy pricing for a chain.
type GasResolver struct {
	strategy *GasStrategy
	log      *logrus.Logger
}

// NewGasResolver creates a resolver. A nil strategy uses DefaultGasStrategy.
func NewGasResolver(strategy *GasStrategy, log *logrus.Logger) *GasResolver {
	if strategy == nil {
		strategy = DefaultGasStrategy()
	}
	if log == nil {
		log = logrus.New()
	}
	return &GasResolver{strategy: strategy, log: log}
}

// Resolve returns a gas quote for the chain behind est. Fee-market pricing is
// tried first; legacy pricing is used only when the chain has no fee market.
// Any other estimation failure is returned unchanged.
func (r *GasResolver) Resolve(ctx context.Context, est FeeEstimator) (GasQuote, error) {
	fees, err := r.EstimateFeesPerGas(ctx, est)
	if err != nil {
		if !IsFeeMarketUnsupported(err) {
			return GasQuote{}, err
		}
		r.log.WithError(err).Debug("Fee market unsupported, falling back to legacy gas price")
		return r.legacyQuote(ctx, est)
	}

	if fees.MaxFeePerGas == nil {
		r.log.Debug("Fee estimate has no max fee, falling back to legacy gas price")
		return r.legacyQuote(ctx, est)
	}

	return GasQuote{
		MaxFeePerGas:         fees.MaxFeePerGas,
		MaxPriorityFeePerGas: fees.MaxPriorityFeePerGas,
		Is1559:               true,
	}, nil
}

// EstimateFeesPerGas computes fee-market parameters from the latest header and
// the node's suggested priority fee.
func (r *GasResolver) EstimateFeesPerGas(ctx context.Context, est FeeEstimator) (*FeesPerGas, error) {
	header, err := est.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, err
	}
	if header.BaseFee == nil {
		return nil, ErrFeeMarketUnsupported
	}

	tip, err := est.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, err
	}

	maxFee := scaleBaseFee(header.BaseFee, r.strategy.BaseFeeMultiplier)
	maxFee.Add(maxFee, tip)

	return &FeesPerGas{
		MaxFeePerGas:         maxFee,
		MaxPriorityFeePerGas: tip,
	}, nil
}

func (r *GasResolver) legacyQuote(ctx context.Context, est FeeEstimator) (GasQuote, error) {
	gasPrice, err := est.SuggestGasPrice(ctx)
	if err != nil {
		return GasQuote{}, err
	}
	return GasQuote{GasPrice: gasPrice, Is1559: false}, nil
}

// IsFeeMarketUnsupported classifies an estimation error as "chain has no fee
// market". Typed errors are checked first; the "1559" text match covers nodes
// that only report it in the message.
func IsFeeMarketUnsupported(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrFeeMarketUnsupported) {
		return true
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == methodNotFoundCode {
		return true
	}
	return strings.Contains(err.Error(), "1559")
}

// scaleBaseFee multiplies baseFee by multiplier rounded to whole percent, so
// 1.2 yields exactly baseFee*120/100.
func scaleBaseFee(baseFee *big.Int, multiplier float64) *big.Int {
	percent := int64(math.Round(multiplier * 100))
	if percent <= 0 {
		percent = 100
	}
	out := new(big.Int).Mul(baseFee, big.NewInt(percent))
	return out.Div(out, big.NewInt(100))
}
