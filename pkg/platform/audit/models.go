package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventCategory separates events with compliance weight from routine
// operational signals so consumers can apply different retention.
type EventCategory string

const (
	// CategoryCompliance covers changes to the compliance record itself:
	// documents, renewals and categories. Consumers keep these indefinitely.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers derived or automated activity such as sweep
	// status changes and reminder dispatch.
	CategoryOperations EventCategory = "operations"
)

type AuditEvent string

const (
	// Document events
	EventDocumentCreated       AuditEvent = "document_created"
	EventDocumentUpdated       AuditEvent = "document_updated"
	EventDocumentDeleted       AuditEvent = "document_deleted"
	EventDocumentStatusChanged AuditEvent = "document_status_changed"

	// Renewal events
	EventRenewalStarted   AuditEvent = "renewal_started"
	EventDocumentRenewed  AuditEvent = "document_renewed"
	EventRenewalCancelled AuditEvent = "renewal_cancelled"

	// Reminder events
	EventReminderSent AuditEvent = "reminder_sent"

	// Category events
	EventCategoryCreated AuditEvent = "category_created"
	EventCategoryUpdated AuditEvent = "category_updated"
	EventCategoryDeleted AuditEvent = "category_deleted"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventDocumentCreated:  CategoryCompliance,
	EventDocumentUpdated:  CategoryCompliance,
	EventDocumentDeleted:  CategoryCompliance,
	EventRenewalStarted:   CategoryCompliance,
	EventDocumentRenewed:  CategoryCompliance,
	EventRenewalCancelled: CategoryCompliance,
	EventCategoryCreated:  CategoryCompliance,
	EventCategoryUpdated:  CategoryCompliance,
	EventCategoryDeleted:  CategoryCompliance,

	EventDocumentStatusChanged: CategoryOperations,
	EventReminderSent:          CategoryOperations,
}

// Category returns the EventCategory for this event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Aggregate types used as outbox partition keys.
const (
	AggregateDocument = "document"
	AggregateCategory = "category"
)

// Event is a lifecycle fact emitted from domain logic. It stays transport
// agnostic; stores decide whether it lands in an outbox or in memory.
type Event struct {
	ID            uuid.UUID
	Action        AuditEvent
	Timestamp     time.Time
	AggregateType string
	AggregateID   string
	ActorID       string
	RunID         string
	Attributes    map[string]string
}

// Category derives the category from the action.
func (e Event) Category() EventCategory { return e.Action.Category() }

// OutboxEntry is a serialized event awaiting relay to the broker.
type OutboxEntry struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
}

// Store persists events. Implementations must honour a transaction carried on
// the context so events commit atomically with the state change they describe.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Outbox is the relay side of an outbox-backed store.
type Outbox interface {
	Pending(ctx context.Context, limit int) ([]OutboxEntry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}
