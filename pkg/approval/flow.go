package approval

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/lisanmuaddib/allowance-go/pkg/wallet"
)

// Flow runs approvals one at a time and keeps the snapshot of the latest run.
type Flow struct {
	wallet  Wallet
	routers RouterResolver
	gas     GasQuoter
	logger  *logrus.Logger

	running atomic.Bool

	mu          sync.RWMutex
	snapshot    Snapshot
	observers   map[int]Observer
	nextObserve int
}

// New creates a new Flow in the Idle state.
func New(config Config) (*Flow, error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return &Flow{
		wallet:    config.Wallet,
		routers:   config.Routers,
		gas:       config.Gas,
		logger:    config.Logger,
		snapshot:  Snapshot{State: StateIdle, UpdatedAt: time.Now()},
		observers: make(map[int]Observer),
	}, nil
}

// Snapshot returns the state of the latest run.
func (f *Flow) Snapshot() Snapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.snapshot
}

// Running reports whether a run is in flight.
func (f *Flow) Running() bool {
	return f.running.Load()
}

// Subscribe registers an observer for state transitions. The returned function
// removes it.
func (f *Flow) Subscribe(o Observer) func() {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextObserve
	f.nextObserve++
	f.observers[id] = o

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.observers, id)
	}
}

// Approve submits an approve(router, 2^256-1) call for token on the active
// chain. Every failure ends in the Failed state with a user message, and the
// final snapshot is returned. The only error is ErrFlowInProgress, which leaves
// the current snapshot untouched.
func (f *Flow) Approve(ctx context.Context, token string) (Snapshot, error) {
	if !f.running.CompareAndSwap(false, true) {
		return f.Snapshot(), ErrFlowInProgress
	}
	defer f.running.Store(false)

	id := uuid.NewString()
	token = strings.TrimSpace(token)
	logger := f.logger.WithFields(logrus.Fields{
		"flow_id": id,
		"token":   token,
	})

	f.update(func(s *Snapshot) {
		*s = Snapshot{ID: id, State: StateValidating, Token: token}
	})

	hash, err := f.run(ctx, token, logger)
	if err != nil {
		msg := wallet.UserMessage(err, defaultErrorMessage)
		logger.WithError(err).Warn("Approval failed")
		return f.update(func(s *Snapshot) {
			s.State = StateFailed
			s.TxHash = ""
			s.Error = msg
		}), nil
	}

	logger.WithField("tx_hash", hash).Info("Approval submitted")
	return f.update(func(s *Snapshot) {
		s.State = StateSucceeded
		s.Error = ""
		s.TxHash = hash
	}), nil
}

func (f *Flow) run(ctx context.Context, token string, logger *logrus.Entry) (string, error) {
	session := f.wallet.Acquire()
	defer session.Release()

	req, err := f.validate(session, token)
	if err != nil {
		return "", err
	}

	logger = logger.WithFields(logrus.Fields{
		"chain_id": req.ChainID,
		"router":   req.Spender.Hex(),
	})

	call, err := wallet.BuildApproveCall(req.Token, req.Spender, req.Amount)
	if err != nil {
		return "", err
	}

	logger.WithField("state", StateEstimatingGas.String()).Debug("Approval state changed")
	f.update(func(s *Snapshot) {
		s.State = StateEstimatingGas
		s.ChainID = req.ChainID
		s.Account = req.Owner.Hex()
	})
	gas, err := session.Transport.EstimateGas(ctx, call.CallMsg(req.Owner))
	if err != nil {
		return "", wallet.NewWalletError(wallet.ErrCodeGasEstimationFailed, "Gas estimation failed", err, req.ChainID)
	}

	writer := session.Writer
	if writer == nil {
		return "", wallet.NewWalletError(wallet.ErrCodeSignerUnavailable, "wallet client not available", nil, req.ChainID)
	}

	f.transition(StateQuotingGas, logger)
	fees, err := f.gas.Resolve(ctx, session.Transport)
	if err != nil {
		return "", wallet.NewWalletError(wallet.ErrCodeGasPricingFailed, "Gas pricing failed", err, req.ChainID)
	}
	logger.WithFields(logrus.Fields{
		"gas":    gas,
		"is1559": fees.Is1559,
	}).Debug("Gas quoted")

	f.transition(StateSubmitting, logger)
	hash, err := writer.WriteContract(ctx, wallet.WriteRequest{
		Call: call,
		Fees: fees,
		Gas:  gas,
	})
	if err != nil {
		return "", err
	}

	return hash.Hex(), nil
}

// validate checks the preconditions in order without touching the network.
func (f *Flow) validate(session wallet.Session, token string) (Request, error) {
	if !session.Connected {
		return Request{}, wallet.NewWalletError(wallet.ErrCodeNotConnected, "Wallet not Connected", nil, 0)
	}

	chainID := session.ChainID
	if session.Transport == nil {
		return Request{}, wallet.NewWalletError(wallet.ErrCodeTransportUnavailable, "Chain client not available", nil, chainID)
	}

	spender, ok := f.routers.Lookup(chainID)
	if !ok {
		return Request{}, wallet.NewWalletError(wallet.ErrCodeRouterUnresolved, "Target contract is required", nil, chainID)
	}

	if token == "" {
		return Request{}, wallet.NewWalletError(wallet.ErrCodeTokenRequired, "Token is required", nil, chainID)
	}
	tokenAddr, err := wallet.ParseAddress(token)
	if err != nil {
		return Request{}, wallet.NewWalletError(wallet.ErrCodeInvalidAddress, "Invalid token address", nil, chainID)
	}

	return Request{
		Owner:   session.Account,
		Spender: spender,
		Token:   tokenAddr,
		Amount:  wallet.MaxAllowance(),
		ChainID: chainID,
	}, nil
}

func (f *Flow) transition(state State, logger *logrus.Entry) {
	logger.WithField("state", state.String()).Debug("Approval state changed")
	f.update(func(s *Snapshot) {
		s.State = state
	})
}

// update applies fn to the snapshot and notifies observers outside the lock.
func (f *Flow) update(fn func(s *Snapshot)) Snapshot {
	f.mu.Lock()
	fn(&f.snapshot)
	f.snapshot.UpdatedAt = time.Now()
	snap := f.snapshot
	observers := make([]Observer, 0, len(f.observers))
	for _, o := range f.observers {
		observers = append(observers, o)
	}
	f.mu.Unlock()

	for _, o := range observers {
		o(snap)
	}
	return snap
}
