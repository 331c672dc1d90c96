package audit

import (
	"context"
	"time"

	id "mastercom/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance:
	// every ledger transition and every physical deletion.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to security monitoring, such as
	// reviewers acting on requests they are not allowed to touch.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity that can be sampled.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	// ActorID is who performed the action (requester or reviewer).
	ActorID id.UserID
	// Subject is the ledger entry the event is about.
	Subject   id.DeletionRequestID
	Action    string
	Table     string
	RecordID  string
	Reason    string
	RequestID string
	ClientIP  string
	// Device is a short browser/OS label derived from the User-Agent.
	Device string
}

type AuditEvent string

const (
	EventDeletionRequested  AuditEvent = "deletion_requested"
	EventDeletionApproved   AuditEvent = "deletion_approved"
	EventDeletionRejected   AuditEvent = "deletion_rejected"
	EventRecordDeleted      AuditEvent = "record_deleted"
	EventRecordDeleteFailed AuditEvent = "record_delete_failed"
	EventDeletionReconciled AuditEvent = "deletion_reconciled"
	EventDuplicateRequest   AuditEvent = "deletion_request_duplicate"
	EventReviewDenied       AuditEvent = "deletion_review_denied"
	EventRecordCreated      AuditEvent = "record_created"
	EventRecordUpdated      AuditEvent = "record_updated"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventDeletionRequested:  CategoryCompliance,
	EventDeletionApproved:   CategoryCompliance,
	EventDeletionRejected:   CategoryCompliance,
	EventRecordDeleted:      CategoryCompliance,
	EventRecordDeleteFailed: CategoryCompliance,
	EventDeletionReconciled: CategoryCompliance,

	EventReviewDenied: CategorySecurity,

	EventDuplicateRequest: CategoryOperations,
	EventRecordCreated:    CategoryOperations,
	EventRecordUpdated:    CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}
