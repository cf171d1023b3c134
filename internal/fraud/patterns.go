package fraud

import (
	"sync"
	"time"

	"coin-ledger/internal/domain"
)

// PatternCache holds learned fraud patterns for the lifetime of the
// process. State is process-local; a horizontally scaled deployment
// needs each instance to learn independently or an external store.
type PatternCache struct {
	mu       sync.RWMutex
	patterns map[string]*domain.FraudPattern // keyed by signature
}

func NewPatternCache() *PatternCache {
	return &PatternCache{patterns: make(map[string]*domain.FraudPattern)}
}

// Add stores a pattern, keeping the higher weight when the signature is
// already known.
func (c *PatternCache) Add(p *domain.FraudPattern) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.patterns[p.Signature]; ok {
		if p.Weight > existing.Weight {
			existing.Weight = p.Weight
		}
		existing.CreatedAt = p.CreatedAt
		return
	}
	cp := *p
	c.patterns[p.Signature] = &cp
}

// Get returns the stored pattern for a signature, or nil.
func (c *PatternCache) Get(signature string) *domain.FraudPattern {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.patterns[signature]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

func (c *PatternCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.patterns)
}

// PurgeOlderThan drops patterns learned before the cutoff and returns
// how many were removed.
func (c *PatternCache) PurgeOlderThan(cutoff time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for sig, p := range c.patterns {
		if p.CreatedAt.Before(cutoff) {
			delete(c.patterns, sig)
			removed++
		}
	}
	return removed
}

// SuspiciousSet is the process-local set of accounts with elevated
// standing risk. The background monitor rebuilds it from persisted risk
// profiles; the processor adds to it on high-score transactions.
type SuspiciousSet struct {
	mu    sync.RWMutex
	users map[string]struct{}
}

func NewSuspiciousSet() *SuspiciousSet {
	return &SuspiciousSet{users: make(map[string]struct{})}
}

func (s *SuspiciousSet) Add(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = struct{}{}
}

func (s *SuspiciousSet) Contains(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[userID]
	return ok
}

// Replace swaps the whole set for a freshly loaded one.
func (s *SuspiciousSet) Replace(userIDs []string) {
	users := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		users[id] = struct{}{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = users
}

func (s *SuspiciousSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}
