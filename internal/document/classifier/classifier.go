// Package classifier derives a document's lifecycle status from its dates.
// Everything here is pure: no clock, no I/O.
package classifier

import (
	"time"

	"fleetdocs/internal/document/models"
	"fleetdocs/pkg/platform/dates"
)

// Classify maps a document's expiry and reminder window to a status.
//
// A document in the renewal workflow is RENEWAL_IN_PROGRESS regardless of
// dates. Otherwise, with d = expiry - today in whole calendar days:
// d < 0 is EXPIRED, 0 ≤ d ≤ reminderDays is EXPIRING_SOON, anything later is
// VALID. The reminderDays boundary belongs to EXPIRING_SOON.
func Classify(today, expiryDate time.Time, reminderDays int, inRenewalWorkflow bool) models.Status {
	if inRenewalWorkflow {
		return models.StatusRenewalInProgress
	}
	remaining := DaysRemaining(today, expiryDate)
	switch {
	case remaining < 0:
		return models.StatusExpired
	case remaining <= reminderDays:
		return models.StatusExpiringSoon
	default:
		return models.StatusValid
	}
}

// DaysRemaining is expiry - today in calendar days; negative once expired.
func DaysRemaining(today, expiryDate time.Time) int {
	return dates.DaysBetween(today, expiryDate)
}

// ForDocument classifies doc, honouring its renewal marker.
func ForDocument(today time.Time, doc *models.Document) models.Status {
	return Classify(today, doc.ExpiryDate, doc.ReminderDays, doc.InRenewal())
}

// DateStatus classifies doc from its dates alone, ignoring any renewal marker.
// Used when a marker is cleared or reported as stale.
func DateStatus(today time.Time, doc *models.Document) models.Status {
	return Classify(today, doc.ExpiryDate, doc.ReminderDays, false)
}
