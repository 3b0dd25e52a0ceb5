package wallet

import (
	"time"
)

// DialConfig controls how chain transports are established.
type DialConfig struct {
	// MaxRetries specifies how many times to retry a failed dial
	MaxRetries int

	// RetryDelay is the duration to wait between dial attempts
	RetryDelay time.Duration
}

// DefaultDialConfig returns conservative dial settings: 3 retries, 1 second apart.
//
// Example usage:
//
//	cfg := DefaultDialConfig()
//	cfg.MaxRetries = 0 // fail fast in tests
func DefaultDialConfig() DialConfig {
	return DialConfig{
		MaxRetries: 3,
		RetryDelay: time.Second,
	}
}
