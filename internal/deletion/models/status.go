package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	dErrors "mastercom/pkg/domain-errors"
)

// Status is the lifecycle position of a deletion request. The only values are
// StatusPending, StatusApproved and StatusRejected; the zero value is invalid.
type Status struct {
	name string
}

var (
	StatusPending  = Status{name: "pending"}
	StatusApproved = Status{name: "approved"}
	StatusRejected = Status{name: "rejected"}
)

// ParseStatus maps a stored or wire value to a Status.
func ParseStatus(s string) (Status, error) {
	switch s {
	case StatusPending.name:
		return StatusPending, nil
	case StatusApproved.name:
		return StatusApproved, nil
	case StatusRejected.name:
		return StatusRejected, nil
	default:
		return Status{}, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unknown deletion request status %q", s))
	}
}

func (s Status) String() string {
	return s.name
}

func (s Status) IsValid() bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

// IsTerminal reports whether no transition is defined out of s.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// CanTransitionTo allows only pending → approved and pending → rejected.
func (s Status) CanTransitionTo(next Status) bool {
	return s == StatusPending && next.IsTerminal()
}

func (s Status) MarshalJSON() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("marshal invalid deletion request status")
	}
	return json.Marshal(s.name)
}

func (s *Status) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Value implements driver.Valuer.
func (s Status) Value() (driver.Value, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("store invalid deletion request status")
	}
	return s.name, nil
}

// Scan implements sql.Scanner.
func (s *Status) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("scan deletion request status: unexpected type %T", src)
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
