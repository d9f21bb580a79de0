package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

func newAuditEvent(agg AggregateType, aggID string, evt EventType, level Level, text string, payload any) AuditEvent {
	raw, _ := json.Marshal(payload)
	return AuditEvent{
		EventID:       uuid.New(),
		AggregateType: agg,
		AggregateID:   aggID,
		EventType:     evt,
		Level:         level,
		Text:          text,
		Payload:       raw,
		OccurredAt:    time.Now(),
	}
}

// NewRegistrationSucceededEvent records a completed registration.
func NewRegistrationSucceededEvent(userID, orderID, name string, roles []string) AuditEvent {
	text := fmt.Sprintf("✅ : **<@%s> REGISTERED**\nname=%q order=%q roles=%v", userID, name, orderID, roles)
	return newAuditEvent(AggregateRegistration, orderID, EventRegistrationSucceeded, LevelInfo, text, map[string]any{
		"user_id":  userID,
		"order_id": orderID,
		"name":     name,
		"roles":    roles,
	})
}

// NewRegistrationRejectedEvent records an expected refusal (not found, duplicate, no roles).
func NewRegistrationRejectedEvent(userID, orderID, reason, detail string, level Level) AuditEvent {
	text := fmt.Sprintf("❌ : **<@%s> ERROR**\n%s", userID, detail)
	return newAuditEvent(AggregateRegistration, orderID, EventRegistrationRejected, level, text, map[string]string{
		"user_id":  userID,
		"order_id": orderID,
		"reason":   reason,
	})
}

// NewRegistrationFailedEvent records an integration failure or invariant violation.
func NewRegistrationFailedEvent(userID, orderID string, err error) AuditEvent {
	text := fmt.Sprintf("❌ : **<@%s> ERROR**\n%T: %v", userID, err, err)
	return newAuditEvent(AggregateRegistration, orderID, EventRegistrationFailed, LevelError, text, map[string]string{
		"user_id":  userID,
		"order_id": orderID,
		"error":    err.Error(),
	})
}

// NewCertificateEvent records the result of one certificate send.
func NewCertificateEvent(key, recipient string, err error) AuditEvent {
	if err != nil {
		return newAuditEvent(AggregateCertificate, key, EventCertificateFailed, LevelError,
			fmt.Sprintf("certificate %s to %s failed: %v", key, recipient, err),
			map[string]string{"key": key, "recipient": recipient, "error": err.Error()})
	}
	return newAuditEvent(AggregateCertificate, key, EventCertificateSent, LevelInfo,
		fmt.Sprintf("certificate %s sent to %s", key, recipient),
		map[string]string{"key": key, "recipient": recipient})
}

// NewVolunteerAssignedEvent records a one-off volunteer role assignment.
func NewVolunteerAssignedEvent(userID string, role RoleID) AuditEvent {
	return newAuditEvent(AggregateMember, userID, EventVolunteerAssigned, LevelInfo,
		fmt.Sprintf("Successfully assigned the <@&%s> role to <@%s>.", role, userID),
		map[string]string{"user_id": userID, "role_id": string(role)})
}

// NewDonationsAnnouncedEvent records a posted donations summary.
func NewDonationsAnnouncedEvent(total float64, donors int) AuditEvent {
	return newAuditEvent(AggregateDonations, "donations", EventDonationsAnnounced, LevelInfo,
		fmt.Sprintf("donations summary posted: total=%.2f donors=%d", total, donors),
		map[string]any{"total": total, "donors": donors})
}
