package token

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Sritheeagle/FNBxAI-sub001/internal/metrics"
)

// maxGenerateAttempts bounds the collision-avoidance loop in Create. With a
// 9000-code space and uniqueness required only among live tokens this is
// effectively unreachable.
const maxGenerateAttempts = 100

// ErrCodeSpaceExhausted is returned when Create cannot find a code distinct
// from every currently live one.
var ErrCodeSpaceExhausted = fmt.Errorf("no free code after %d attempts", maxGenerateAttempts)

// Service owns the active-token state. At most one live token per scope;
// expiry is computed lazily on read against the injected clock, so no
// background sweep is needed for correctness.
type Service struct {
	mu         sync.Mutex
	clock      clockwork.Clock
	generate   Generator
	defaultTTL time.Duration

	byCode  map[string]Token
	byScope map[Scope]string
}

// Option configures a Service.
type Option func(*Service)

// WithGenerator overrides the code generator. Used by tests.
func WithGenerator(gen Generator) Option {
	return func(s *Service) { s.generate = gen }
}

// NewService creates the token service. defaultTTL applies when Create is
// called with a non-positive TTL.
func NewService(clock clockwork.Clock, defaultTTL time.Duration, opts ...Option) *Service {
	s := &Service{
		clock:      clock,
		generate:   NumericCode,
		defaultTTL: defaultTTL,
		byCode:     make(map[string]Token),
		byScope:    make(map[Scope]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create issues a new token for the scope. An existing live token for an
// equal scope is superseded immediately: its code stops resolving even though
// its wall-clock TTL has not elapsed. Returns the issued token and the code
// it superseded, if any.
func (s *Service) Create(scope Scope, ttl time.Duration) (Token, string, error) {
	scope = scope.Normalize()
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	s.pruneExpiredLocked(now)

	code, err := s.freeCodeLocked()
	if err != nil {
		return Token{}, "", err
	}

	superseded := ""
	if oldCode, ok := s.byScope[scope]; ok {
		delete(s.byCode, oldCode)
		superseded = oldCode
		metrics.TokensSupersededTotal.Inc()
		slog.Info("Token superseded", "old_code", oldCode, "subject", scope.Subject)
	}

	tok := Token{
		Code:      code,
		Scope:     scope,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		TTL:       ttl,
	}
	s.byCode[code] = tok
	s.byScope[scope] = code

	metrics.TokensCreatedTotal.Inc()
	slog.Info("Token created", "session_code", code, "subject", scope.Subject, "ttl", ttl)
	return tok, superseded, nil
}

// Status reports whether the code is redeemable right now. A code is valid
// iff it exists, has not been superseded, and now < expiresAt. Expired
// entries observed here are removed opportunistically.
func (s *Service) Status(code string) Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, ok := s.byCode[code]
	if !ok {
		return Status{}
	}

	now := s.clock.Now()
	if !now.Before(tok.ExpiresAt) {
		s.dropLocked(tok)
		return Status{}
	}

	return Status{Valid: true, Scope: tok.Scope, Remaining: tok.ExpiresAt.Sub(now)}
}

// ActiveCount returns the number of live tokens. Expired-but-unswept entries
// are not counted.
func (s *Service) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	now := s.clock.Now()
	for _, tok := range s.byCode {
		if now.Before(tok.ExpiresAt) {
			count++
		}
	}
	return count
}

// EvictExpired removes all expired tokens and returns the count removed.
// Purely a memory-hygiene operation; Status and Create are correct without it.
func (s *Service) EvictExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pruneExpiredLocked(s.clock.Now())
}

// StartEviction runs EvictExpired on the given interval until the returned
// stop function is called.
func (s *Service) StartEviction(interval time.Duration) (stop func()) {
	done := make(chan struct{})
	go func() {
		ticker := s.clock.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.Chan():
				if evicted := s.EvictExpired(); evicted > 0 {
					metrics.TokensEvictedTotal.Add(float64(evicted))
					slog.Debug("Evicted expired tokens", "count", evicted)
				}
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

func (s *Service) pruneExpiredLocked(now time.Time) int {
	pruned := 0
	for _, tok := range s.byCode {
		if !now.Before(tok.ExpiresAt) {
			s.dropLocked(tok)
			pruned++
		}
	}
	return pruned
}

func (s *Service) dropLocked(tok Token) {
	delete(s.byCode, tok.Code)
	// Only clear the scope index if it still points at this code; a
	// superseding token may have claimed the scope already.
	if current, ok := s.byScope[tok.Scope]; ok && current == tok.Code {
		delete(s.byScope, tok.Scope)
	}
}

func (s *Service) freeCodeLocked() (string, error) {
	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		code, err := s.generate()
		if err != nil {
			return "", err
		}
		if _, taken := s.byCode[code]; !taken {
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}
