package service

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"dmv-service/internal/domain/dmv"
	"dmv-service/internal/ledger"
)

// Session is one user's working state: a company, a fleet ledger and the
// tax period. A session is exclusively owned by the holder of its token;
// every operation takes the session lock, so no two operations interleave
// against the same ledger.
type Session struct {
	ID        string
	ExpiresAt time.Time

	mu      sync.Mutex
	company dmv.Company
	fleet   *ledger.Ledger
	taxYear int
}

func (s *Session) lock()   { s.mu.Lock() }
func (s *Session) unlock() { s.mu.Unlock() }

// TaxYear returns the tax period the session was opened with.
func (s *Session) TaxYear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.taxYear
}

// SessionStore keeps live sessions in memory, keyed by session id.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &SessionStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
	}
}

func (st *SessionStore) Create(taxYear int) *Session {
	s := &Session{
		ID:        uuid.NewString(),
		ExpiresAt: time.Now().Add(st.ttl),
		fleet:     ledger.New(),
		taxYear:   taxYear,
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	st.pruneLocked()
	st.sessions[s.ID] = s
	return s
}

func (st *SessionStore) Get(id string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[id]
	if !ok || time.Now().After(s.ExpiresAt) {
		return nil, false
	}
	return s, true
}

func (st *SessionStore) pruneLocked() {
	now := time.Now()
	for id, s := range st.sessions {
		if now.After(s.ExpiresAt) {
			delete(st.sessions, id)
		}
	}
}
