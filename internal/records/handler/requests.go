package handler

import (
	"encoding/json"

	"mastercom/internal/records/models"
	id "mastercom/pkg/domain"
	dErrors "mastercom/pkg/domain-errors"
)

// CreateRecordRequest is the body of POST /records/{table}.
type CreateRecordRequest struct {
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data"`

	parsedID id.RecordID
}

// Validate implements httputil.Validatable.
func (r *CreateRecordRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.ID != "" {
		parsed, err := id.ParseRecordID(r.ID)
		if err != nil {
			return err
		}
		r.parsedID = parsed
	}
	data, err := models.EnsureObject(r.Data)
	if err != nil {
		return err
	}
	r.Data = data
	return nil
}

func (r *CreateRecordRequest) ParsedID() id.RecordID {
	return r.parsedID
}

// UpdateRecordRequest is the body of PATCH /records/{table}/{id}.
type UpdateRecordRequest struct {
	Data json.RawMessage `json:"data"`
}

func (r *UpdateRecordRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	data, err := models.EnsureObject(r.Data)
	if err != nil {
		return err
	}
	r.Data = data
	return nil
}

// ListResponse wraps a collection listing.
type ListResponse struct {
	Table   models.Table     `json:"table"`
	Records []*models.Record `json:"records"`
}
