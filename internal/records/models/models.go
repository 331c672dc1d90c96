package models

import (
	"bytes"
	"encoding/json"
	"math/big"
	"strings"
	"time"

	id "mastercom/pkg/domain"
	dErrors "mastercom/pkg/domain-errors"
)

// Table names a logical collection in the record store. The set is closed.
type Table string

const (
	TableClients  Table = "clients"
	TableProjects Table = "projects"
	TableInvoices Table = "invoices"
	TableQuotes   Table = "quotes"
)

var tables = map[Table]struct{}{
	TableClients:  {},
	TableProjects: {},
	TableInvoices: {},
	TableQuotes:   {},
}

// Tables returns the supported collections in a stable order.
func Tables() []Table {
	return []Table{TableClients, TableProjects, TableInvoices, TableQuotes}
}

// ParseTable validates a collection name.
func ParseTable(s string) (Table, error) {
	t := Table(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := tables[t]; !ok {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unsupported table: "+s)
	}
	return t, nil
}

func (t Table) String() string {
	return string(t)
}

// IsValid reports whether t is one of the supported collections.
func (t Table) IsValid() bool {
	_, ok := tables[t]
	return ok
}

// Record is one row of a collection. Data is the row payload as stored.
type Record struct {
	ID        id.RecordID     `json:"id"`
	Table     Table           `json:"table"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// EnsureObject checks that raw is a JSON object and returns it compacted.
func EnsureObject(raw json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, dErrors.New(dErrors.CodeValidation, "data must be a JSON object")
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "data must be valid JSON")
	}
	return json.RawMessage(buf.Bytes()), nil
}

// MergeObjects applies a shallow JSON merge of patch onto base. Keys in patch
// replace keys in base; a null value in patch removes the key.
func MergeObjects(base, patch json.RawMessage) (json.RawMessage, error) {
	current := map[string]json.RawMessage{}
	if len(bytes.TrimSpace(base)) > 0 {
		if err := json.Unmarshal(base, &current); err != nil {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "stored record is not a JSON object")
		}
	}
	changes := map[string]json.RawMessage{}
	if err := json.Unmarshal(patch, &changes); err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "data must be a JSON object")
	}
	for k, v := range changes {
		if bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			delete(current, k)
			continue
		}
		current[k] = v
	}
	merged, err := json.Marshal(current)
	if err != nil {
		return nil, err
	}
	return merged, nil
}

// SameJSON reports whether a and b decode to the same value, ignoring key
// order and whitespace. Numbers compare by value, so 1e2 equals 100 as it does
// once stored in JSONB. Invalid JSON is never the same as anything.
func SameJSON(a, b json.RawMessage) bool {
	va, err := decodeJSON(a)
	if err != nil {
		return false
	}
	vb, err := decodeJSON(b)
	if err != nil {
		return false
	}
	return sameValue(va, vb)
}

func decodeJSON(raw json.RawMessage) (any, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func sameValue(a, b any) bool {
	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, x := range av {
			y, ok := bv[k]
			if !ok || !sameValue(x, y) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !sameValue(av[i], bv[i]) {
				return false
			}
		}
		return true
	case json.Number:
		bv, ok := b.(json.Number)
		if !ok {
			return false
		}
		x, okA := new(big.Rat).SetString(av.String())
		y, okB := new(big.Rat).SetString(bv.String())
		if !okA || !okB {
			return av == bv
		}
		return x.Cmp(y) == 0
	default:
		return a == b
	}
}
