package models

import (
	"strings"
	"time"

	id "fleetdocs/pkg/domain"
	dErrors "fleetdocs/pkg/domain-errors"
	"fleetdocs/pkg/platform/dates"
	pstrings "fleetdocs/pkg/platform/strings"
)

const (
	maxTitleLength       = 200
	maxDocumentNumberLen = 100
	maxNotesLength       = 4000
	// DefaultReminderDays applies when a document is created without a window.
	DefaultReminderDays = 30
)

// Document is the aggregate root for a tracked compliance artifact.
//
// Invariants:
//   - ExpiryDate is strictly after IssueDate
//   - ReminderDays ≥ 0
//   - IssueDate, ExpiryDate and RenewalDate are calendar dates (midnight UTC)
//   - RenewalStartedAt is set iff Status is RENEWAL_IN_PROGRESS
//   - Version increases by one on every persisted write
//
// Only the renewal workflow changes ExpiryDate, RenewalDate and File after
// creation. The sweep changes Status only.
type Document struct {
	ID               id.DocumentID `json:"id"`
	DocumentNumber   string        `json:"document_number"`
	CategoryID       id.CategoryID `json:"category_id"`
	Title            string        `json:"title"`
	Description      string        `json:"description"`
	DocumentType     string        `json:"document_type"`
	EntityType       EntityType    `json:"entity_type"`
	EntityID         string        `json:"entity_id,omitempty"`
	EntityName       string        `json:"entity_name"`
	Tags             []string      `json:"tags"`
	Notes            string        `json:"notes"`
	Priority         Priority      `json:"priority"`
	IssueDate        time.Time     `json:"issue_date"`
	ExpiryDate       time.Time     `json:"expiry_date"`
	RenewalDate      *time.Time    `json:"renewal_date,omitempty"`
	ReminderDays     int           `json:"reminder_days"`
	Status           Status        `json:"status"`
	File             FileRef       `json:"file"`
	RenewalStartedAt *time.Time    `json:"renewal_started_at,omitempty"`
	Version          int64         `json:"version"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
	DeletedAt        *time.Time    `json:"deleted_at,omitempty"`
}

func (d *Document) InRenewal() bool {
	return d.Status == StatusRenewalInProgress
}

func (d *Document) IsDeleted() bool {
	return d.DeletedAt != nil
}

// Clone returns a deep copy so callers can mutate without aliasing store state.
func (d *Document) Clone() *Document {
	c := *d
	c.Tags = append([]string(nil), d.Tags...)
	c.RenewalDate = cloneTime(d.RenewalDate)
	c.RenewalStartedAt = cloneTime(d.RenewalStartedAt)
	c.DeletedAt = cloneTime(d.DeletedAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

type DocumentParams struct {
	DocumentNumber string
	CategoryID     id.CategoryID
	Title          string
	Description    string
	DocumentType   string
	EntityType     EntityType
	EntityID       string
	EntityName     string
	Tags           []string
	Notes          string
	Priority       Priority
	IssueDate      time.Time
	ExpiryDate     time.Time
	// ReminderDays nil means DefaultReminderDays.
	ReminderDays *int
	File         FileRef
}

// NewDocument validates params and builds a document with Version 0. Status is
// left empty; the caller classifies before persisting.
func NewDocument(documentID id.DocumentID, p DocumentParams, now time.Time) (*Document, error) {
	reminderDays := DefaultReminderDays
	if p.ReminderDays != nil {
		reminderDays = *p.ReminderDays
	}
	priority := p.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	d := &Document{
		ID:             documentID,
		DocumentNumber: strings.TrimSpace(p.DocumentNumber),
		CategoryID:     p.CategoryID,
		Title:          strings.TrimSpace(p.Title),
		Description:    strings.TrimSpace(p.Description),
		DocumentType:   strings.TrimSpace(p.DocumentType),
		EntityType:     p.EntityType,
		EntityID:       strings.TrimSpace(p.EntityID),
		EntityName:     strings.TrimSpace(p.EntityName),
		Tags:           pstrings.NormalizeTags(p.Tags),
		Notes:          p.Notes,
		Priority:       priority,
		IssueDate:      dates.Day(p.IssueDate),
		ExpiryDate:     dates.Day(p.ExpiryDate),
		ReminderDays:   reminderDays,
		File:           p.File,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	fields := d.validateFields()
	if p.IssueDate.IsZero() {
		fields.Add("issue_date", "is required")
	}
	if p.ExpiryDate.IsZero() {
		fields.Add("expiry_date", "is required")
	}
	if !p.IssueDate.IsZero() && !p.ExpiryDate.IsZero() && !dates.After(d.ExpiryDate, d.IssueDate) {
		fields.Add("expiry_date", "must be after issue_date")
	}
	if d.File.IsZero() {
		fields.Add("file", "is required")
	}
	if err := fields.Err("invalid document"); err != nil {
		return nil, err
	}
	return d, nil
}

// DocumentPatch carries edits to non-temporal fields. Nil fields are left
// untouched; Tags replaces the whole set when non-nil.
type DocumentPatch struct {
	DocumentNumber *string
	CategoryID     *id.CategoryID
	Title          *string
	Description    *string
	DocumentType   *string
	EntityType     *EntityType
	EntityID       *string
	EntityName     *string
	Tags           []string
	Notes          *string
	Priority       *Priority
	ReminderDays   *int
}

func (p DocumentPatch) IsEmpty() bool {
	return p.DocumentNumber == nil && p.CategoryID == nil && p.Title == nil &&
		p.Description == nil && p.DocumentType == nil && p.EntityType == nil &&
		p.EntityID == nil && p.EntityName == nil && p.Tags == nil && p.Notes == nil &&
		p.Priority == nil && p.ReminderDays == nil
}

// Apply validates the edited document as a whole before mutating d.
func (d *Document) Apply(p DocumentPatch, now time.Time) error {
	next := d.Clone()
	if p.DocumentNumber != nil {
		next.DocumentNumber = strings.TrimSpace(*p.DocumentNumber)
	}
	if p.CategoryID != nil {
		next.CategoryID = *p.CategoryID
	}
	if p.Title != nil {
		next.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		next.Description = strings.TrimSpace(*p.Description)
	}
	if p.DocumentType != nil {
		next.DocumentType = strings.TrimSpace(*p.DocumentType)
	}
	if p.EntityType != nil {
		next.EntityType = *p.EntityType
	}
	if p.EntityID != nil {
		next.EntityID = strings.TrimSpace(*p.EntityID)
	}
	if p.EntityName != nil {
		next.EntityName = strings.TrimSpace(*p.EntityName)
	}
	if p.Tags != nil {
		next.Tags = pstrings.NormalizeTags(p.Tags)
	}
	if p.Notes != nil {
		next.Notes = *p.Notes
	}
	if p.Priority != nil {
		next.Priority = *p.Priority
	}
	if p.ReminderDays != nil {
		next.ReminderDays = *p.ReminderDays
	}
	if err := next.validateFields().Err("invalid document"); err != nil {
		return err
	}
	next.UpdatedAt = now
	*d = *next
	return nil
}

// ApplyStatus sets the status and keeps RenewalStartedAt consistent with it.
func (d *Document) ApplyStatus(status Status, now time.Time) {
	if status == StatusRenewalInProgress {
		if d.RenewalStartedAt == nil {
			started := now
			d.RenewalStartedAt = &started
		}
	} else {
		d.RenewalStartedAt = nil
	}
	d.Status = status
	d.UpdatedAt = now
}

// ApplyRenewal moves the document into a new validity cycle. IssueDate is
// historical and stays untouched.
func (d *Document) ApplyRenewal(renewalDate, newExpiry time.Time, file FileRef, now time.Time) {
	rd := dates.Day(renewalDate)
	d.RenewalDate = &rd
	d.ExpiryDate = dates.Day(newExpiry)
	d.File = file
	d.RenewalStartedAt = nil
	d.UpdatedAt = now
}

func (d *Document) ApplyDeletion(now time.Time) {
	deleted := now
	d.DeletedAt = &deleted
	d.UpdatedAt = now
}

func (d *Document) validateFields() dErrors.FieldErrors {
	fields := dErrors.FieldErrors{}
	switch {
	case d.Title == "":
		fields.Add("title", "is required")
	case len(d.Title) > maxTitleLength:
		fields.Add("title", "must be 200 characters or less")
	}
	switch {
	case d.DocumentNumber == "":
		fields.Add("document_number", "is required")
	case len(d.DocumentNumber) > maxDocumentNumberLen:
		fields.Add("document_number", "must be 100 characters or less")
	}
	if d.CategoryID.IsNil() {
		fields.Add("category_id", "is required")
	}
	if !d.EntityType.IsValid() {
		fields.Add("entity_type", "must be one of VEHICLE, DRIVER, COMPANY, OTHER")
	}
	if !d.Priority.IsValid() {
		fields.Add("priority", "must be one of LOW, MEDIUM, HIGH, CRITICAL")
	}
	if d.ReminderDays < 0 {
		fields.Add("reminder_days", "must not be negative")
	}
	if len(d.Notes) > maxNotesLength {
		fields.Add("notes", "must be 4000 characters or less")
	}
	return fields
}
