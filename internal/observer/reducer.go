package observer

import (
	"github.com/Sritheeagle/FNBxAI-sub001/internal/event"
)

// Reduce applies one event to the state. Total and pure: every event maps to
// a new state, unknown shapes degrade to a full re-fetch flag rather than an
// error, and the input state is never mutated.
func Reduce(s State, ev event.Event) State {
	if ev.Resource == event.ResourceAttendance {
		return reduceJoin(s, ev)
	}

	if !s.Tracks(ev.Resource) {
		return s
	}

	switch {
	case ev.Action == event.ActionDelete && ev.ID != "":
		items := s.cloneResource(ev.Resource)
		delete(items, ev.ID)
		return s.withItems(ev.Resource, items)

	case (ev.Action == event.ActionCreate || ev.Action == event.ActionUpdate) && ev.ID != "" && len(ev.Data) > 0:
		items := s.cloneResource(ev.Resource)
		items[ev.ID] = ev.Data
		return s.withItems(ev.Resource, items)

	default:
		// Bulk or ambiguous change: the local cache cannot be patched.
		return s.withRefetch(ev.Resource, true)
	}
}

// reduceJoin handles live attendance updates. Matching joins bump the
// counter and the log directly so the faculty view stays responsive under
// high event frequency; no re-fetch is scheduled.
func reduceJoin(s State, ev event.Event) State {
	payload, ok := event.ParseJoin(ev)
	if !ok {
		return s
	}
	if payload.Scope.Normalize() != s.Watch {
		return s
	}

	s.JoinCount++

	log := make([]LogEntry, 0, len(s.SecurityLog)+1)
	log = append(log, s.SecurityLog...)
	log = append(log, LogEntry{StudentID: payload.StudentID, Subject: payload.Subject, At: payload.At})
	if len(log) > securityLogCap {
		log = log[len(log)-securityLogCap:]
	}
	s.SecurityLog = log
	return s
}
