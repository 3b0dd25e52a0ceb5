// Package approval runs the "approve maximum allowance" submission: it checks
// the preconditions, estimates gas, quotes fees and submits the write, moving
// through an explicit state machine that observers can follow.
package approval

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// State is a step of an approval run.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateEstimatingGas
	StateQuotingGas
	StateSubmitting
	StateSucceeded
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:          "idle",
	StateValidating:    "validating",
	StateEstimatingGas: "estimating_gas",
	StateQuotingGas:    "quoting_gas",
	StateSubmitting:    "submitting",
	StateSucceeded:     "succeeded",
	StateFailed:        "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether a run has finished in s.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Busy reports whether a run is between start and finish in s.
func (s State) Busy() bool {
	return s != StateIdle && !s.Terminal()
}

// Request is a validated approval: owner lets spender move the full amount of token.
type Request struct {
	Owner   common.Address
	Spender common.Address
	Token   common.Address
	Amount  *big.Int
	ChainID uint64
}

// Snapshot is what the UI shows about the latest run. At most one of TxHash
// and Error is set.
type Snapshot struct {
	ID        string    `json:"id,omitempty"`
	State     State     `json:"state"`
	TxHash    string    `json:"txHash,omitempty"`
	Error     string    `json:"error,omitempty"`
	ChainID   uint64    `json:"chainId,omitempty"`
	Token     string    `json:"token,omitempty"`
	Account   string    `json:"account,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}
