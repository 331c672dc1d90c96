package domain

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	dErrors "mastercom/pkg/domain-errors"
)

// UserID identifies an authenticated actor (requester or reviewer).
type UserID uuid.UUID

// DeletionRequestID identifies a ledger entry.
type DeletionRequestID uuid.UUID

// RecordID identifies a row inside one of the managed collections. The backing
// platform hands out opaque keys, so it is a bounded string rather than a UUID.
type RecordID string

const maxRecordIDLength = 128

func (u UserID) String() string { return uuid.UUID(u).String() }

// IsNil reports whether the id is the zero UUID.
func (u UserID) IsNil() bool { return uuid.UUID(u) == uuid.Nil }

func (d DeletionRequestID) String() string { return uuid.UUID(d).String() }

// IsNil reports whether the id is the zero UUID.
func (d DeletionRequestID) IsNil() bool { return uuid.UUID(d) == uuid.Nil }

// NewDeletionRequestID generates a random ledger id.
func NewDeletionRequestID() DeletionRequestID { return DeletionRequestID(uuid.New()) }

func (r RecordID) String() string { return string(r) }

// ParseUserID parses a non-nil UUID user id.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user ID")
	return UserID(u), err
}

// ParseDeletionRequestID parses a non-nil UUID ledger id.
func ParseDeletionRequestID(s string) (DeletionRequestID, error) {
	u, err := parseUUID(s, "deletion request ID")
	return DeletionRequestID(u), err
}

// ParseRecordID accepts trimmed, printable, non-empty keys of at most 128 bytes.
func ParseRecordID(s string) (RecordID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "record ID cannot be empty")
	}
	if len(s) > maxRecordIDLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "record ID must be 128 characters or less")
	}
	if !utf8.ValidString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "record ID contains invalid characters")
	}
	for _, r := range s {
		if !unicode.IsPrint(r) || unicode.IsSpace(r) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "record ID contains invalid characters")
		}
	}
	return RecordID(s), nil
}

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return u, nil
}

func (u UserID) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

func (u *UserID) UnmarshalText(b []byte) error {
	parsed, err := uuid.ParseBytes(b)
	if err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid user ID")
	}
	*u = UserID(parsed)
	return nil
}

func (d DeletionRequestID) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *DeletionRequestID) UnmarshalText(b []byte) error {
	parsed, err := uuid.ParseBytes(b)
	if err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid deletion request ID")
	}
	*d = DeletionRequestID(parsed)
	return nil
}
