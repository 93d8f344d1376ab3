package attendance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/Sritheeagle/FNBxAI-sub001/internal/event"
	"github.com/Sritheeagle/FNBxAI-sub001/internal/logging"
	"github.com/Sritheeagle/FNBxAI-sub001/internal/metrics"
	"github.com/Sritheeagle/FNBxAI-sub001/internal/token"
)

// ErrDuplicate is returned by Repository.Record when the (code, student)
// pair already exists.
var ErrDuplicate = errors.New("redemption already recorded")

// Publisher is the slice of the hub the service needs. Publish never fails
// from the caller's point of view.
type Publisher interface {
	Publish(ev event.Event)
}

// Service runs the redemption path. Check-then-write is serialized under one
// mutex: within a single process, concurrent duplicate submissions cannot
// both pass.
type Service struct {
	mu     sync.Mutex
	tokens *token.Service
	repo   Repository
	pub    Publisher
	clock  clockwork.Clock

	// joins counts accepted redemptions per live code; superseding a scope
	// issues a fresh code, so a new window naturally starts at zero.
	joins map[string]int
}

func NewService(tokens *token.Service, repo Repository, pub Publisher, clock clockwork.Clock) *Service {
	return &Service{
		tokens: tokens,
		repo:   repo,
		pub:    pub,
		clock:  clock,
		joins:  make(map[string]int),
	}
}

// OpenWindow issues a session token for the scope and retires the counter of
// any code it superseded.
func (s *Service) OpenWindow(scope token.Scope, ttl time.Duration) (token.Token, error) {
	tok, superseded, err := s.tokens.Create(scope, ttl)
	if err != nil {
		return token.Token{}, fmt.Errorf("create token: %w", err)
	}

	s.mu.Lock()
	if superseded != "" {
		delete(s.joins, superseded)
	}
	s.joins[tok.Code] = 0
	s.mu.Unlock()

	return tok, nil
}

// Redeem validates the code, records the redemption exactly once per
// (code, student) pair, and emits the join event. Rejections come back as
// Results; only repository failures surface as errors.
func (s *Service) Redeem(ctx context.Context, code, studentID string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := s.tokens.Status(code)
	if !status.Valid {
		delete(s.joins, code)
		metrics.RedemptionsTotal.WithLabelValues(string(ReasonExpiredOrUnknown)).Inc()
		logging.WithCode(code).Info("Redemption rejected: code not live", "student_id", studentID)
		return Result{Reason: ReasonExpiredOrUnknown}, nil
	}

	exists, err := s.repo.Exists(ctx, code, studentID)
	if err != nil {
		metrics.RedemptionsTotal.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("check redemption: %w", err)
	}
	if exists {
		metrics.RedemptionsTotal.WithLabelValues(string(ReasonAlreadyRedeemed)).Inc()
		return Result{Reason: ReasonAlreadyRedeemed, Subject: status.Scope.Subject}, nil
	}

	now := s.clock.Now()
	redemption := Redemption{
		ID:         uuid.New(),
		Code:       code,
		StudentID:  studentID,
		Scope:      status.Scope,
		RedeemedAt: now,
	}
	if err := s.repo.Record(ctx, redemption); err != nil {
		// A concurrent writer beat us to the unique index; same outcome as
		// the Exists check, idempotent rather than an error.
		if errors.Is(err, ErrDuplicate) {
			metrics.RedemptionsTotal.WithLabelValues(string(ReasonAlreadyRedeemed)).Inc()
			return Result{Reason: ReasonAlreadyRedeemed, Subject: status.Scope.Subject}, nil
		}
		metrics.RedemptionsTotal.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("record redemption: %w", err)
	}

	s.joins[code]++
	joinCount := s.joins[code]

	ev, err := event.AttendanceJoin(studentID, status.Scope, now)
	if err != nil {
		logging.WithCode(code).Error("Failed to build join event", "error", err)
	} else {
		s.pub.Publish(ev)
	}

	metrics.RedemptionsTotal.WithLabelValues("accepted").Inc()
	logging.WithCode(code).Info("Redemption accepted",
		"student_id", studentID,
		"subject", status.Scope.Subject,
		"join_count", joinCount,
	)
	return Result{Accepted: true, Subject: status.Scope.Subject, JoinCount: joinCount}, nil
}

// Status reports the authoritative window state for the issuing dashboard.
// The client's countdown is advisory; this answer wins.
func (s *Service) Status(code string) WindowStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := s.tokens.Status(code)
	if !status.Valid {
		delete(s.joins, code)
		return WindowStatus{}
	}

	return WindowStatus{
		Valid:            true,
		Scope:            status.Scope,
		RemainingSeconds: int(math.Ceil(status.Remaining.Seconds())),
		JoinCount:        s.joins[code],
	}
}

// JoinCount returns the live counter for a code, zero for dead codes.
func (s *Service) JoinCount(code string) int {
	return s.Status(code).JoinCount
}
