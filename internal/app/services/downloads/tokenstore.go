package downloads

import (
	"context"
	"sync"
	"time"
)

// TokenStore tracks issued download token ids so each link is redeemable
// exactly once.
type TokenStore interface {
	// Register records a token id valid for ttl.
	Register(ctx context.Context, tokenID string, ttl time.Duration) error
	// Consume atomically redeems a token id. It returns false when the id is
	// unknown, expired or already redeemed.
	Consume(ctx context.Context, tokenID string) (bool, error)
}

// MemoryTokenStore keeps token ids in process memory.
type MemoryTokenStore struct {
	mu     sync.Mutex
	tokens map[string]time.Time
}

var _ TokenStore = (*MemoryTokenStore)(nil)

// NewMemoryTokenStore creates an empty store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: make(map[string]time.Time)}
}

func (s *MemoryTokenStore) Register(_ context.Context, tokenID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[tokenID] = time.Now().Add(ttl)
	return nil
}

func (s *MemoryTokenStore) Consume(_ context.Context, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, ok := s.tokens[tokenID]
	if !ok {
		return false, nil
	}
	delete(s.tokens, tokenID)
	return time.Now().Before(expiry), nil
}

// Sweep drops expired entries. Called periodically by the sweeper service.
func (s *MemoryTokenStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for id, expiry := range s.tokens {
		if now.After(expiry) {
			delete(s.tokens, id)
			removed++
		}
	}
	return removed
}
