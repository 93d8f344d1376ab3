package observer

import (
	"encoding/json"
	"time"

	"github.com/Sritheeagle/FNBxAI-sub001/internal/token"
)

// securityLogCap bounds the live log shown on the issuing dashboard.
const securityLogCap = 50

// LogEntry is one line of the faculty view's live security log.
type LogEntry struct {
	StudentID string    `json:"studentId"`
	Subject   string    `json:"subject"`
	At        time.Time `json:"at"`
}

// State is the client-held cache a dashboard renders from. Treated as an
// immutable value: Reduce returns a new State and never mutates its input.
type State struct {
	// Items holds the cached documents per tracked resource, keyed by id.
	// Only resources present here are reconciled; events for others are
	// ignored.
	Items map[string]map[string]json.RawMessage

	// PendingRefetch flags resources whose cache can no longer be patched
	// locally and must be re-fetched in full.
	PendingRefetch map[string]bool

	// Stale is set while the stream is disconnected; the view shows a
	// reconnecting indicator but stays interactive.
	Stale bool

	// Watch is the attendance scope whose joins this dashboard counts.
	Watch       token.Scope
	JoinCount   int
	SecurityLog []LogEntry
}

// NewState builds the empty baseline for the given tracked resources.
func NewState(watch token.Scope, resources ...string) State {
	items := make(map[string]map[string]json.RawMessage, len(resources))
	for _, r := range resources {
		items[r] = make(map[string]json.RawMessage)
	}
	return State{
		Items:          items,
		PendingRefetch: make(map[string]bool),
		Watch:          watch.Normalize(),
	}
}

// Tracks reports whether the state reconciles the given resource.
func (s State) Tracks(resource string) bool {
	_, ok := s.Items[resource]
	return ok
}

func (s State) withItems(resource string, items map[string]json.RawMessage) State {
	next := make(map[string]map[string]json.RawMessage, len(s.Items))
	for r, m := range s.Items {
		next[r] = m
	}
	next[resource] = items
	s.Items = next
	return s
}

func (s State) withRefetch(resource string, pending bool) State {
	next := make(map[string]bool, len(s.PendingRefetch)+1)
	for r, p := range s.PendingRefetch {
		next[r] = p
	}
	if pending {
		next[resource] = true
	} else {
		delete(next, resource)
	}
	s.PendingRefetch = next
	return s
}

func (s State) cloneResource(resource string) map[string]json.RawMessage {
	clone := make(map[string]json.RawMessage, len(s.Items[resource])+1)
	for id, doc := range s.Items[resource] {
		clone[id] = doc
	}
	return clone
}
