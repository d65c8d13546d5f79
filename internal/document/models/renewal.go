package models

import (
	"time"

	id "fleetdocs/pkg/domain"
)

// RenewalRecord is one immutable entry in a document's renewal history.
// NewExpiryDate is strictly after RenewalDate; records order by CreatedAt.
type RenewalRecord struct {
	ID                 id.RenewalID  `json:"id"`
	DocumentID         id.DocumentID `json:"document_id"`
	RenewalDate        time.Time     `json:"renewal_date"`
	PreviousExpiryDate time.Time     `json:"previous_expiry_date"`
	NewExpiryDate      time.Time     `json:"new_expiry_date"`
	File               FileRef       `json:"file"`
	PreviousFile       FileRef       `json:"previous_file"`
	Notes              string        `json:"notes"`
	ActorID            string        `json:"actor_id"`
	CreatedAt          time.Time     `json:"created_at"`
}

// RenewalRequest is the input to completing a renewal. A nil NewExpiryDate
// asks for the category's suggested expiry.
type RenewalRequest struct {
	DocumentID    id.DocumentID
	RenewalDate   time.Time
	NewExpiryDate *time.Time
	File          Upload
	Notes         string
}
