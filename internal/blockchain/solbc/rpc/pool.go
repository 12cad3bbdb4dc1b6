// internal/blockchain/solbc/rpc/pool.go
package rpc

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// NewPool создает пул клиентов для списка URL
func NewPool(urls []string, logger *zap.Logger) *Pool {
	clients := make([]*NodeClient, 0, len(urls))
	for _, url := range urls {
		clients = append(clients, NewClient(url))
	}
	return &Pool{
		Clients:    clients,
		Logger:     logger.Named("rpc-pool"),
		RetryDelay: RetryDelay,
	}
}

// GetNextClient возвращает следующий активный клиент из пула. When every node
// is cooling down the next one in order is returned anyway.
func (p *Pool) GetNextClient() *NodeClient {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.Clients)
	if n == 0 {
		return nil
	}
	start := p.next
	for i := 0; i < n; i++ {
		client := p.Clients[(start+i)%n]
		if client.IsActive() {
			p.next = (start + i + 1) % n
			return client
		}
	}
	p.next = (start + 1) % n
	return p.Clients[start%n]
}

// Stats snapshots every node in pool order.
func (p *Pool) Stats() []NodeStats {
	out := make([]NodeStats, 0, len(p.Clients))
	for _, c := range p.Clients {
		out = append(out, c.Stats())
	}
	return out
}

// ExecuteWithRetry выполняет операцию с повторными попытками на разных узлах.
// Only node failures are retried; a JSON-RPC error from a node ends the loop.
func (p *Pool) ExecuteWithRetry(ctx context.Context, method string, operation func(*NodeClient) error) error {
	if len(p.Clients) == 0 {
		return ErrNoActiveClients
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = p.RetryDelay
	policy.MaxInterval = p.RetryDelay * 10

	attempt := func() (struct{}, error) {
		client := p.GetNextClient()

		start := time.Now()
		err := operation(client)
		latency := time.Since(start)
		client.record(err == nil, latency)
		if p.Observer != nil {
			p.Observer.ObserveRPC(method, latency, err)
		}

		if err == nil {
			return struct{}{}, nil
		}

		wrapped := NewError(err, client.URL, method)
		if !IsNodeFailure(err) {
			return struct{}{}, backoff.Permanent(wrapped)
		}
		client.Suspend(NodeCooldown)
		return struct{}{}, wrapped
	}

	notify := func(err error, next time.Duration) {
		p.Logger.Warn("🔄 RPC call failed, switching node",
			zap.String("method", method),
			zap.Duration("backoff", next),
			zap.Error(err))
	}

	_, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(MaxRetries),
		backoff.WithNotify(notify))

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Unwrap()
	}
	return err
}
