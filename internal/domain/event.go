package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates all audit event types.
type EventType string

const (
	EventRegistrationSucceeded EventType = "confops.registration.succeeded"
	EventRegistrationRejected  EventType = "confops.registration.rejected"
	EventRegistrationFailed    EventType = "confops.registration.failed"
	EventCertificateSent       EventType = "confops.certificate.sent"
	EventCertificateFailed     EventType = "confops.certificate.failed"
	EventVolunteerAssigned     EventType = "confops.volunteer.assigned"
	EventDonationsAnnounced    EventType = "confops.donations.announced"
)

// AggregateType enumerates the aggregate root types of audit events.
type AggregateType string

const (
	AggregateRegistration AggregateType = "registration"
	AggregateCertificate  AggregateType = "certificate"
	AggregateMember       AggregateType = "member"
	AggregateDonations    AggregateType = "donations"
)

// Level is the severity of an audit line.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// AuditEvent is one line of the audit trail: a human readable text for the
// monitoring channel plus a structured payload for the event stream.
type AuditEvent struct {
	EventID       uuid.UUID       `json:"eventId"`
	AggregateType AggregateType   `json:"aggregateType"`
	AggregateID   string          `json:"aggregateId"`
	EventType     EventType       `json:"eventType"`
	Level         Level           `json:"level"`
	Text          string          `json:"text"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurredAt"`
}
