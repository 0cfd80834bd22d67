package service

import (
	"crypto/subtle"
	"sync"
	"time"

	"github.com/cardfile/cardfile/pkg/cryptox"
)

const (
	resetCodeLength = 6
	resetCodeTTL    = time.Hour

	resetSweepInterval = 10 * time.Minute
)

type resetEntry struct {
	code      string
	expiresAt time.Time
}

// ResetCodeStore issues and redeems short-lived password reset codes. Codes
// live in process memory only: a restart invalidates outstanding codes, which
// is acceptable because the user can simply request a new one.
type ResetCodeStore struct {
	mu      sync.Mutex
	entries map[string]resetEntry
	ttl     time.Duration
	done    chan struct{}
	once    sync.Once
}

func NewResetCodeStore() *ResetCodeStore {
	s := &ResetCodeStore{
		entries: make(map[string]resetEntry),
		ttl:     resetCodeTTL,
		done:    make(chan struct{}),
	}
	go s.sweep()
	return s
}

// Issue generates a fresh 6-digit code for email, replacing any outstanding
// one. Only the most recently issued code is redeemable.
func (s *ResetCodeStore) Issue(email string) (string, error) {
	code, err := cryptox.GenerateNumericCode(resetCodeLength)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.entries[email] = resetEntry{code: code, expiresAt: time.Now().Add(s.ttl)}
	s.mu.Unlock()

	return code, nil
}

// Redeem checks code against the outstanding entry for email. The code is
// single-use: a successful redeem deletes it. Absent, expired or mismatched
// codes all report false; the comparison is constant-time so redeem attempts
// don't leak code prefixes.
func (s *ResetCodeStore) Redeem(email, code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[email]
	if !ok {
		return false
	}
	if time.Now().After(e.expiresAt) {
		delete(s.entries, email)
		return false
	}
	if subtle.ConstantTimeCompare([]byte(e.code), []byte(code)) != 1 {
		return false
	}

	delete(s.entries, email)
	return true
}

// Close stops the background sweeper.
func (s *ResetCodeStore) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *ResetCodeStore) sweep() {
	ticker := time.NewTicker(resetSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			s.mu.Lock()
			for email, e := range s.entries {
				if now.After(e.expiresAt) {
					delete(s.entries, email)
				}
			}
			s.mu.Unlock()
		}
	}
}
