// internal/session/session.go
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// DefaultTTL is how long an idle redis session survives.
const DefaultTTL = time.Hour

// State is the transient per-user conversation state.
type State struct {
	// CurrentToken is the mint the user last looked up or picked for selling.
	CurrentToken string `json:"current_token,omitempty"`
	// AwaitingCustomAmount is set after the "custom amount" button until a
	// valid number arrives.
	AwaitingCustomAmount bool `json:"awaiting_custom_amount,omitempty"`
}

// Store keeps State per telegram user. Get on an unknown user returns a
// zero State and no error.
type Store interface {
	Get(ctx context.Context, telegramID int64) (State, error)
	Save(ctx context.Context, telegramID int64, state State) error
	Clear(ctx context.Context, telegramID int64) error
	Close() error
}

// MemoryStore держит сессии в памяти процесса
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[int64]State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[int64]State)}
}

func (m *MemoryStore) Get(_ context.Context, telegramID int64) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[telegramID], nil
}

func (m *MemoryStore) Save(_ context.Context, telegramID int64, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[telegramID] = state
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, telegramID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, telegramID)
	return nil
}

func (m *MemoryStore) Close() error { return nil }

// Open returns a redis store when redisURL is set, memory otherwise.
func Open(ctx context.Context, redisURL string) (Store, error) {
	if strings.TrimSpace(redisURL) == "" {
		return NewMemoryStore(), nil
	}
	store, err := NewRedisStoreFromURL(ctx, redisURL, DefaultTTL)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	return store, nil
}
