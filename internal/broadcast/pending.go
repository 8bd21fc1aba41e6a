package broadcast

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultPendingTTL bounds how long a broadcast waits for the admin to press
// confirm before the payload is discarded.
const DefaultPendingTTL = 10 * time.Minute

// Pending is a broadcast awaiting confirmation.
type Pending struct {
	Token     string
	AdminID   int64
	Text      string
	CreatedAt time.Time
}

// PendingStore holds broadcast payloads between the /gong text message and
// the confirm button press, keyed by an opaque token carried in the callback
// data. Entries expire after the TTL.
type PendingStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	items map[string]Pending
}

// NewPendingStore builds a store with the given TTL; zero means
// DefaultPendingTTL.
func NewPendingStore(ttl time.Duration) *PendingStore {
	if ttl <= 0 {
		ttl = DefaultPendingTTL
	}
	return &PendingStore{
		ttl:   ttl,
		now:   time.Now,
		items: make(map[string]Pending),
	}
}

// Put stores a payload and returns its confirmation token.
func (s *PendingStore) Put(adminID int64, text string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked()

	token := uuid.NewString()
	s.items[token] = Pending{
		Token:     token,
		AdminID:   adminID,
		Text:      text,
		CreatedAt: s.now(),
	}
	return token
}

// Take consumes the payload for token. It reports false for unknown, already
// consumed, or expired tokens.
func (s *PendingStore) Take(token string) (Pending, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, ok := s.items[token]
	if !ok {
		return Pending{}, false
	}
	delete(s.items, token)

	if s.now().Sub(pending.CreatedAt) > s.ttl {
		return Pending{}, false
	}
	return pending, true
}

// Discard drops the payload for token, if any.
func (s *PendingStore) Discard(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, token)
}

func (s *PendingStore) pruneLocked() {
	cutoff := s.now().Add(-s.ttl)
	for token, pending := range s.items {
		if pending.CreatedAt.Before(cutoff) {
			delete(s.items, token)
		}
	}
}
