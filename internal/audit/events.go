package audit

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of audit event.
type EventType string

// Event types.
const (
	EventTypeAuthentication EventType = "authentication"
	EventTypeAuthorization  EventType = "authorization"
	EventTypeConfiguration  EventType = "configuration"
)

// Action represents the action being audited.
type Action string

// Actions.
const (
	ActionAuthenticate Action = "authenticate"
	ActionAccess       Action = "access"
	ActionConfigReload Action = "config_reload"
)

// Outcome represents the outcome of an audited action.
type Outcome string

// Outcomes.
const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeDenied  Outcome = "denied"
	OutcomeError   Outcome = "error"
)

// Event represents an audit event.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Action    Action    `json:"action"`
	Outcome   Outcome   `json:"outcome"`

	// Reason is the client-facing message of a failed or denied action.
	Reason string `json:"reason,omitempty"`

	Subject  *Subject  `json:"subject,omitempty"`
	Resource *Resource `json:"resource,omitempty"`

	// Metadata contains additional details, such as the matching policy.
	Metadata map[string]string `json:"metadata,omitempty"`

	RequestID string `json:"request_id,omitempty"`
	TraceID   string `json:"trace_id,omitempty"`
	SpanID    string `json:"span_id,omitempty"`
}

// Subject is the principal an API key authenticated as.
type Subject struct {
	ID     string   `json:"id,omitempty"`
	Name   string   `json:"name,omitempty"`
	Roles  []string `json:"roles,omitempty"`
	Scopes []string `json:"scopes,omitempty"`
}

// Resource is what the request addressed.
type Resource struct {
	// Transport is "http" or "grpc".
	Transport string `json:"transport,omitempty"`
	Method    string `json:"method,omitempty"`
	Path      string `json:"path,omitempty"`
	ClientIP  string `json:"client_ip,omitempty"`
}

// NewEvent creates an event with a fresh ID and the current time.
func NewEvent(eventType EventType, action Action, outcome Outcome) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Type:      eventType,
		Action:    action,
		Outcome:   outcome,
	}
}

// WithSubject sets the subject.
func (e *Event) WithSubject(subject *Subject) *Event {
	e.Subject = subject
	return e
}

// WithResource sets the resource.
func (e *Event) WithResource(resource *Resource) *Event {
	e.Resource = resource
	return e
}

// WithReason sets the reason.
func (e *Event) WithReason(reason string) *Event {
	e.Reason = reason
	return e
}

// WithMetadata adds a metadata entry.
func (e *Event) WithMetadata(key, value string) *Event {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// AuthenticationEvent creates a gate decision event.
func AuthenticationEvent(outcome Outcome) *Event {
	return NewEvent(EventTypeAuthentication, ActionAuthenticate, outcome)
}

// AuthorizationEvent creates a policy decision event.
func AuthorizationEvent(outcome Outcome) *Event {
	return NewEvent(EventTypeAuthorization, ActionAccess, outcome)
}

// ConfigReloadEvent creates a configuration reload event.
func ConfigReloadEvent(outcome Outcome) *Event {
	return NewEvent(EventTypeConfiguration, ActionConfigReload, outcome)
}
