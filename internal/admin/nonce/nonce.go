// Package nonce issues one-time anti-replay tokens for administrative
// actions. Every destructive admin request must present a token issued for
// that exact action; verification consumes the token.
package nonce

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultTTL = 15 * time.Minute

// Service stores outstanding tokens in memory. Tokens are bound to an
// action name so a token issued for "refresh" cannot replay "delete".
type Service struct {
	mu     sync.Mutex
	tokens map[string]entry
	ttl    time.Duration
	now    func() time.Time
}

type entry struct {
	action  string
	expires time.Time
}

// Option configures the Service.
type Option func(*Service)

// WithTTL overrides the token lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) { s.ttl = ttl }
}

// WithClock overrides time.Now for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(opts ...Option) *Service {
	s := &Service{
		tokens: make(map[string]entry),
		ttl:    defaultTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue returns a fresh token for the given action.
func (s *Service) Issue(action string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()
	token := uuid.NewString()
	s.tokens[token] = entry{action: action, expires: s.now().Add(s.ttl)}
	return token
}

// Verify consumes the token. It fails when the token is unknown, expired,
// or was issued for a different action; a consumed token never verifies
// twice.
func (s *Service) Verify(action, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.tokens[token]
	if !ok {
		return fmt.Errorf("unknown nonce")
	}
	delete(s.tokens, token)
	if e.action != action {
		return fmt.Errorf("nonce issued for action %q", e.action)
	}
	if s.now().After(e.expires) {
		return fmt.Errorf("nonce expired")
	}
	return nil
}

func (s *Service) pruneLocked() {
	now := s.now()
	for token, e := range s.tokens {
		if now.After(e.expires) {
			delete(s.tokens, token)
		}
	}
}
