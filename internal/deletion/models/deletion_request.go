package models

import (
	"encoding/json"
	"strings"
	"time"

	recordmodels "mastercom/internal/records/models"
	id "mastercom/pkg/domain"
	dErrors "mastercom/pkg/domain-errors"
)

const maxReasonLength = 2000

// DeletionRequest is one ledger entry: a request to delete a record, and its
// resolution.
//
// Invariants:
//   - Status starts pending and changes at most once, to approved or rejected
//   - ReviewedBy and ReviewedAt are set if and only if Status is not pending
//   - RecordData is the snapshot taken at submission and never changes
//   - Entries are never removed from the ledger
type DeletionRequest struct {
	ID          id.DeletionRequestID `json:"id"`
	Table       recordmodels.Table   `json:"table_name"`
	RecordID    id.RecordID          `json:"record_id"`
	RecordData  json.RawMessage      `json:"record_data"`
	Reason      string               `json:"reason"`
	RequestedBy id.UserID            `json:"requested_by"`
	RequestedAt time.Time            `json:"requested_at"`
	Status      Status               `json:"status"`
	ReviewedBy  *id.UserID           `json:"reviewed_by"`
	ReviewedAt  *time.Time           `json:"reviewed_at"`
	ReviewNotes string               `json:"review_notes,omitempty"`
}

// NewDeletionRequest builds a pending ledger entry. The reason is trimmed but
// may be empty; requiring one is the caller's concern.
func NewDeletionRequest(
	requestID id.DeletionRequestID,
	table recordmodels.Table,
	recordID id.RecordID,
	snapshot json.RawMessage,
	reason string,
	requestedBy id.UserID,
	now time.Time,
) (*DeletionRequest, error) {
	if requestID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "deletion request id is required")
	}
	if !table.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "unsupported table")
	}
	if recordID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "record id is required")
	}
	if requestedBy.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "requester is required")
	}
	reason = strings.TrimSpace(reason)
	if len(reason) > maxReasonLength {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "reason must be 2000 characters or less")
	}
	if len(snapshot) == 0 {
		snapshot = json.RawMessage(`{}`)
	}
	return &DeletionRequest{
		ID:          requestID,
		Table:       table,
		RecordID:    recordID,
		RecordData:  append(json.RawMessage(nil), snapshot...),
		Reason:      reason,
		RequestedBy: requestedBy,
		RequestedAt: now,
		Status:      StatusPending,
	}, nil
}

func (r *DeletionRequest) IsPending() bool {
	return r.Status == StatusPending
}

// Review is the resolution applied to a pending request.
type Review struct {
	Decision   Status
	ReviewerID id.UserID
	Notes      string
	At         time.Time
}

// CanApplyReview checks the transition without changing r.
func (r *DeletionRequest) CanApplyReview(review Review) error {
	if !review.Decision.IsTerminal() {
		return dErrors.New(dErrors.CodeInvariantViolation, "review decision must be approved or rejected")
	}
	if review.ReviewerID.IsNil() {
		return dErrors.New(dErrors.CodeInvariantViolation, "reviewer is required")
	}
	if !r.Status.CanTransitionTo(review.Decision) {
		return dErrors.New(dErrors.CodeConflict, "deletion request has already been "+r.Status.String())
	}
	return nil
}

// ApplyReview moves a pending request to its terminal state and stamps the
// review metadata in the same step.
func (r *DeletionRequest) ApplyReview(review Review) error {
	if err := r.CanApplyReview(review); err != nil {
		return err
	}
	reviewer := review.ReviewerID
	at := review.At
	r.Status = review.Decision
	r.ReviewedBy = &reviewer
	r.ReviewedAt = &at
	r.ReviewNotes = strings.TrimSpace(review.Notes)
	return nil
}

// ReviewMetadataConsistent reports whether reviewed_by/reviewed_at are present
// exactly when the request is resolved.
func (r *DeletionRequest) ReviewMetadataConsistent() bool {
	reviewed := r.ReviewedBy != nil && r.ReviewedAt != nil
	unreviewed := r.ReviewedBy == nil && r.ReviewedAt == nil
	if r.IsPending() {
		return unreviewed
	}
	return reviewed
}

// Clone returns a deep copy.
func (r *DeletionRequest) Clone() *DeletionRequest {
	c := *r
	c.RecordData = append(json.RawMessage(nil), r.RecordData...)
	if r.ReviewedBy != nil {
		v := *r.ReviewedBy
		c.ReviewedBy = &v
	}
	if r.ReviewedAt != nil {
		v := *r.ReviewedAt
		c.ReviewedAt = &v
	}
	return &c
}
