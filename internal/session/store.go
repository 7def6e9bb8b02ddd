// Package session holds per-account login snapshots. A session binds an
// account profile to the transaction history read at login time; records
// created after login are invisible until the next login. Sessions live for
// the process lifetime and are never persisted.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/parithi/bankassist/internal/storage"
)

// ErrNotFound is returned when no session exists for an account.
var ErrNotFound = errors.New("session not found")

// ErrEmpty is returned by MostRecent when nobody has logged in yet.
var ErrEmpty = errors.New("no active sessions")

// Session is the ephemeral binding of an account to its snapshot of
// transactions plus the login timestamp.
type Session struct {
	Account      storage.Account
	Transactions []storage.Transaction
	LoginAt      time.Time
}

// Store is an in-process session store keyed by account number. One session
// exists per account; a new login overwrites the prior one. There is no
// eviction: accounts are few and long-lived, so unbounded growth is accepted.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]Session
	// seq orders writes so MostRecent survives identical login timestamps.
	seq     map[string]uint64
	lastSeq uint64
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]Session),
		seq:      make(map[string]uint64),
	}
}

// Put stores the login snapshot for an account, replacing any prior session.
func (s *Store) Put(accountNumber string, account storage.Account, transactions []storage.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastSeq++
	s.seq[accountNumber] = s.lastSeq
	s.sessions[accountNumber] = Session{
		Account:      account,
		Transactions: transactions,
		LoginAt:      time.Now().UTC(),
	}
}

// Get returns the session for an account, or ErrNotFound.
func (s *Store) Get(accountNumber string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[accountNumber]
	if !ok {
		return Session{}, ErrNotFound
	}
	return sess, nil
}

// MostRecent returns the session most recently written (last-login-wins).
// This identifies the last caller to log in, not the current caller; it is
// a single-tenant shortcut, not an authentication mechanism.
func (s *Store) MostRecent() (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		best    Session
		bestSeq uint64
		found   bool
	)
	for number, seq := range s.seq {
		if seq > bestSeq {
			bestSeq = seq
			best = s.sessions[number]
			found = true
		}
	}
	if !found {
		return Session{}, ErrEmpty
	}
	return best, nil
}

// Len reports how many accounts currently hold a session.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
