package attendance

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Sritheeagle/FNBxAI-sub001/internal/token"
)

// Redemption records one successful code use by one student. Written once,
// never mutated or deleted.
type Redemption struct {
	ID         uuid.UUID   `json:"id"`
	Code       string      `json:"code"`
	StudentID  string      `json:"studentId"`
	Scope      token.Scope `json:"scope"`
	RedeemedAt time.Time   `json:"redeemedAt"`
}

// Repository persists redemptions. Implementations must enforce the
// (code, student) uniqueness invariant themselves; Record on a duplicate
// returns ErrDuplicate.
type Repository interface {
	Record(ctx context.Context, r Redemption) error
	Exists(ctx context.Context, code, studentID string) (bool, error)
	ListByCode(ctx context.Context, code string) ([]Redemption, error)
	CountByCode(ctx context.Context, code string) (int, error)
	Ping(ctx context.Context) error
}

// Reason explains a rejected redemption.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonExpiredOrUnknown Reason = "expired_or_unknown"
	ReasonAlreadyRedeemed  Reason = "already_redeemed"
)

// Result is the outcome of one redemption attempt.
type Result struct {
	Accepted  bool   `json:"accepted"`
	Reason    Reason `json:"reason,omitempty"`
	Subject   string `json:"subject,omitempty"`
	JoinCount int    `json:"joinCount,omitempty"`
}

// WindowStatus combines authoritative token validity with the live join
// count, for the issuing dashboard's countdown ring.
type WindowStatus struct {
	Valid            bool        `json:"valid"`
	Scope            token.Scope `json:"scope,omitempty"`
	RemainingSeconds int         `json:"remainingSeconds,omitempty"`
	JoinCount        int         `json:"joinCount"`
}
