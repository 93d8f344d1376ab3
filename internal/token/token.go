package token

import (
	"regexp"
	"strings"
	"time"
)

// Scope identifies one attendance-verification window: which class, which
// subject, which period, opened by which faculty member. Comparable so it can
// key the active-token map directly.
type Scope struct {
	Issuer  string `json:"issuer"`
	Year    string `json:"year"`
	Section string `json:"section"`
	Branch  string `json:"branch"`
	Subject string `json:"subject"`
	Period  int    `json:"period"`
}

var nonDigits = regexp.MustCompile(`[^0-9]`)

// Normalize canonicalizes the free-form fields faculty dashboards submit:
// "2nd Year" and "2" must map to the same scope, as must "Section A" and "a".
func (s Scope) Normalize() Scope {
	s.Year = nonDigits.ReplaceAllString(s.Year, "")
	section := strings.TrimSpace(s.Section)
	if rest, ok := cutPrefixFold(section, "section"); ok {
		section = strings.TrimSpace(rest)
	}
	s.Section = strings.ToUpper(section)
	s.Branch = strings.ToUpper(strings.TrimSpace(s.Branch))
	s.Subject = strings.TrimSpace(s.Subject)
	if s.Period <= 0 {
		s.Period = 1
	}
	return s
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return s[len(prefix):], true
	}
	return s, false
}

// Token is one open attendance window. Immutable once issued; a token is
// invalidated either by wall-clock expiry or by a newer token for its scope.
type Token struct {
	Code      string        `json:"code"`
	Scope     Scope         `json:"scope"`
	CreatedAt time.Time     `json:"createdAt"`
	ExpiresAt time.Time     `json:"expiresAt"`
	TTL       time.Duration `json:"-"`
}

// Remaining returns how much validity is left at the given instant.
// Never negative.
func (t Token) Remaining(now time.Time) time.Duration {
	if remaining := t.ExpiresAt.Sub(now); remaining > 0 {
		return remaining
	}
	return 0
}

// Status is the authoritative answer to "is this code redeemable right now".
// Client countdowns are advisory; this is what redemption trusts.
type Status struct {
	Valid     bool
	Scope     Scope
	Remaining time.Duration
}
