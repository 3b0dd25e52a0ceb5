package wallet

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type nonceKey struct {
	chainID uint64
	account common.Address
}

// NonceManager hands out transaction nonces per chain and account. It tracks
// nonces that are in use so two submissions never share one. It is safe for
// concurrent use.
type NonceManager struct {
	pendingNonces map[nonceKey]map[uint64]time.Time // Nonces in use and when they were issued
	mu            sync.Mutex
}

// NewNonceManager creates an empty nonce manager.
func NewNonceManager() *NonceManager {
	return &NonceManager{
		pendingNonces: make(map[nonceKey]map[uint64]time.Time),
	}
}

// Next returns the next available nonce for account on chainID. It queries the
// pending nonce from the transport and skips nonces that are still in use.
func (nm *NonceManager) Next(ctx context.Context, transport Transport, chainID uint64, account common.Address) (uint64, error) {
	nm.mu.Lock()
	defer nm.mu.Unlock()

	nonce, err := transport.PendingNonceAt(ctx, account)
	if err != nil {
		return 0, NewWalletError(ErrCodeRPCError, "failed to get nonce", err, chainID)
	}

	key := nonceKey{chainID: chainID, account: account}
	if nm.pendingNonces[key] == nil {
		nm.pendingNonces[key] = make(map[uint64]time.Time)
	}

	for {
		if _, isPending := nm.pendingNonces[key][nonce]; !isPending {
			nm.pendingNonces[key][nonce] = time.Now()
			return nonce, nil
		}
		nonce++
	}
}

// Release frees a nonce once its transaction was broadcast or abandoned.
func (nm *NonceManager) Release(chainID uint64, account common.Address, nonce uint64) {
	nm.mu.Lock()
	defer nm.mu.Unlock()

	key := nonceKey{chainID: chainID, account: account}
	if nm.pendingNonces[key] != nil {
		delete(nm.pendingNonces[key], nonce)
	}
}

// InUse reports how many nonces are currently handed out for account on chainID.
func (nm *NonceManager) InUse(chainID uint64, account common.Address) int {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	return len(nm.pendingNonces[nonceKey{chainID: chainID, account: account}])
}
