package handler

import (
	"bytes"
	"encoding/json"

	"mastercom/internal/deletion/models"
	"mastercom/internal/deletion/service"
	recordmodels "mastercom/internal/records/models"
	id "mastercom/pkg/domain"
	dErrors "mastercom/pkg/domain-errors"
)

const maxTextLength = 2000

// SubmitRequest is the body of POST /deletion-requests.
type SubmitRequest struct {
	TableName  string          `json:"table_name"`
	RecordID   string          `json:"record_id"`
	RecordData json.RawMessage `json:"record_data,omitempty"`
	Reason     string          `json:"reason"`

	table    recordmodels.Table
	recordID id.RecordID
}

// Validate implements httputil.Validatable. The reason is mandatory here even
// though the service accepts an empty one.
func (r *SubmitRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	table, err := recordmodels.ParseTable(r.TableName)
	if err != nil {
		return err
	}
	recordID, err := id.ParseRecordID(r.RecordID)
	if err != nil {
		return err
	}
	if r.Reason == "" {
		return dErrors.New(dErrors.CodeValidation, "Veuillez indiquer la raison de la suppression")
	}
	if len(r.Reason) > maxTextLength {
		return dErrors.New(dErrors.CodeValidation, "reason must be 2000 characters or less")
	}
	if trimmed := bytes.TrimSpace(r.RecordData); len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		r.RecordData = nil
	} else {
		data, err := recordmodels.EnsureObject(r.RecordData)
		if err != nil {
			return err
		}
		r.RecordData = data
	}
	r.table = table
	r.recordID = recordID
	return nil
}

func (r *SubmitRequest) Command(requestedBy id.UserID) service.SubmitCommand {
	return service.SubmitCommand{
		Table:       r.table,
		RecordID:    r.recordID,
		RecordData:  r.RecordData,
		Reason:      r.Reason,
		RequestedBy: requestedBy,
	}
}

// ReviewRequest is the optional body of approve and reject.
type ReviewRequest struct {
	ReviewNotes string `json:"review_notes"`
}

func (r *ReviewRequest) Validate() error {
	if r == nil {
		return nil
	}
	if len(r.ReviewNotes) > maxTextLength {
		return dErrors.New(dErrors.CodeValidation, "review notes must be 2000 characters or less")
	}
	return nil
}

// ActionResponse is returned by submit, approve and reject: a success flag
// and a message the console shows next to the action.
type ActionResponse struct {
	Success bool                    `json:"success"`
	Message string                  `json:"message"`
	Error   string                  `json:"error,omitempty"`
	Outcome string                  `json:"outcome,omitempty"`
	Request *models.DeletionRequest `json:"request,omitempty"`
}

// Action names what the caller may do with a ledger row.
type Action string

const (
	ActionExamine Action = "examine"
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// RequestView is a ledger row plus the actions offered for it.
type RequestView struct {
	*models.DeletionRequest
	Actions []Action `json:"actions"`
}

type ListResponse struct {
	Requests []RequestView `json:"requests"`
	Total    int           `json:"total"`
}

type ExamineResponse struct {
	Request          RequestView          `json:"request"`
	LiveRecord       *recordmodels.Record `json:"live_record"`
	RecordExists     bool                 `json:"record_exists"`
	SnapshotDiverged bool                 `json:"snapshot_diverged"`
}

type ReconcileResponse struct {
	Results []service.ReconcileResult `json:"results"`
	Total   int                       `json:"total"`
}

// actionsFor offers approve and reject only on pending rows, and only to
// reviewers.
func actionsFor(req *models.DeletionRequest, reviewer bool) []Action {
	actions := []Action{ActionExamine}
	if reviewer && req.IsPending() {
		actions = append(actions, ActionApprove, ActionReject)
	}
	return actions
}
