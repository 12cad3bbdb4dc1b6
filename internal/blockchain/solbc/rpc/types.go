// internal/blockchain/solbc/rpc/types.go
package rpc

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	MaxRetries = 3
	RetryDelay = 200 * time.Millisecond
	// NodeCooldown is how long a node that failed at transport level sits out.
	NodeCooldown = 30 * time.Second
)

// Observer receives one call per RPC attempt.
type Observer interface {
	ObserveRPC(method string, latency time.Duration, err error)
}

// Pool rotates calls over the configured nodes, skipping those cooling down.
type Pool struct {
	Clients    []*NodeClient
	Logger     *zap.Logger
	Observer   Observer
	RetryDelay time.Duration

	mu   sync.Mutex
	next int
}
