package models

import (
	"time"

	id "fleetdocs/pkg/domain"
	"fleetdocs/pkg/platform/dates"
)

// ReminderKind distinguishes the warning reminder from the one sent when a
// document has already lapsed.
type ReminderKind string

const (
	ReminderExpiringSoon ReminderKind = "EXPIRING_SOON"
	ReminderExpired      ReminderKind = "EXPIRED"
)

// ReminderState is the per-document dedupe record. A reminder is sent at most
// once per LastForExpiryDate; a renewal changes the expiry and with it the
// key. LastKind records which reminder went out.
type ReminderState struct {
	DocumentID        id.DocumentID `json:"document_id"`
	LastSentAt        *time.Time    `json:"last_sent_at,omitempty"`
	LastForExpiryDate *time.Time    `json:"last_for_expiry_date,omitempty"`
	LastKind          ReminderKind  `json:"last_kind,omitempty"`
}

// Covers reports whether a reminder for this expiry date was already sent,
// whatever its kind.
func (s *ReminderState) Covers(expiry time.Time) bool {
	if s == nil || s.LastSentAt == nil || s.LastForExpiryDate == nil {
		return false
	}
	return dates.Equal(*s.LastForExpiryDate, expiry)
}

// Reminder is the message handed to the notification sender.
type Reminder struct {
	Recipient      string
	DocumentID     id.DocumentID
	DocumentNumber string
	Title          string
	EntityType     EntityType
	EntityName     string
	ExpiryDate     time.Time
	DaysRemaining  int
	Kind           ReminderKind
}
