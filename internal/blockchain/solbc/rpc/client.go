// internal/blockchain/solbc/rpc/client.go
package rpc

import (
	"sync"
	"time"

	solanarpc "github.com/gagliardetto/solana-go/rpc"
)

// NodeClient is one RPC endpoint of the pool together with its health.
type NodeClient struct {
	Client *solanarpc.Client
	URL    string

	mu            sync.Mutex
	inactiveUntil time.Time
	successes     uint64
	failures      uint64
	avgLatency    time.Duration
}

// NodeStats is a point-in-time view of a node.
type NodeStats struct {
	URL        string
	Successes  uint64
	Failures   uint64
	AvgLatency time.Duration
	Active     bool
}

func NewClient(url string) *NodeClient {
	return &NodeClient{
		Client: solanarpc.New(url),
		URL:    url,
	}
}

// Suspend takes the node out of rotation until d has passed.
func (c *NodeClient) Suspend(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inactiveUntil = time.Now().Add(d)
}

// IsActive возвращает текущий статус активности узла
func (c *NodeClient) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Now().After(c.inactiveUntil)
}

// record keeps a running average latency, halving the weight of history.
func (c *NodeClient) record(ok bool, latency time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ok {
		c.successes++
	} else {
		c.failures++
	}
	if c.avgLatency == 0 {
		c.avgLatency = latency
		return
	}
	c.avgLatency = (c.avgLatency + latency) / 2
}

func (c *NodeClient) Stats() NodeStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return NodeStats{
		URL:        c.URL,
		Successes:  c.successes,
		Failures:   c.failures,
		AvgLatency: c.avgLatency,
		Active:     time.Now().After(c.inactiveUntil),
	}
}
