package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Sritheeagle/FNBxAI-sub001/internal/token"
)

// Action describes what happened to the resource.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionCustom Action = "custom"
)

// ResourceAttendance is the resource name of live join events.
const ResourceAttendance = "attendance_update"

// Event is the wire envelope broadcast to every open connection. Events are
// immutable and never persisted; a connection not open at publish time never
// sees one.
type Event struct {
	Resource string          `json:"resource"`
	Action   Action          `json:"action"`
	ID       string          `json:"id,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// Marshal renders the single wire representation of the event. The hub calls
// this once per publish regardless of connection count.
func (e Event) Marshal() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return data, nil
}

// ResourceChanged builds a record-store mutation event. A non-nil data payload
// signals that consumers may apply it as a point patch; nil data means they
// must re-fetch the resource.
func ResourceChanged(resource string, action Action, id string, data any) (Event, error) {
	ev := Event{Resource: resource, Action: action, ID: id}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Event{}, fmt.Errorf("marshal %s payload: %w", resource, err)
		}
		ev.Data = raw
	}
	return ev, nil
}

// Custom builds a forward-compatibility event for resources the known
// constructors do not cover.
func Custom(resource string, data any) (Event, error) {
	return ResourceChanged(resource, ActionCustom, "", data)
}

// JoinPayload is the body of an attendance join event, mirroring what the
// faculty dashboard's live view consumes.
type JoinPayload struct {
	StudentID string      `json:"studentId"`
	Status    string      `json:"status"`
	Subject   string      `json:"subject"`
	Scope     token.Scope `json:"scope"`
	At        time.Time   `json:"at"`
}

// AttendanceJoin builds the event emitted when a student redeems a session
// code.
func AttendanceJoin(studentID string, scope token.Scope, at time.Time) (Event, error) {
	payload := JoinPayload{
		StudentID: studentID,
		Status:    "Present",
		Subject:   scope.Subject,
		Scope:     scope,
		At:        at,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal join payload: %w", err)
	}
	return Event{Resource: ResourceAttendance, Action: ActionCustom, ID: studentID, Data: raw}, nil
}

// ParseJoin decodes the join payload from an attendance event. Returns false
// for events of any other resource.
func ParseJoin(ev Event) (JoinPayload, bool) {
	if ev.Resource != ResourceAttendance || len(ev.Data) == 0 {
		return JoinPayload{}, false
	}
	var payload JoinPayload
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		return JoinPayload{}, false
	}
	return payload, true
}
