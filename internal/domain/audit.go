package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the kind of mutation recorded in the audit log
type AuditAction string

const (
	AuditActionCreate AuditAction = "CREATE"
	AuditActionUpdate AuditAction = "UPDATE"
	AuditActionDelete AuditAction = "DELETE"
)

// AuditEntry is an immutable record of one accepted mutation.
// Detail holds a JSON snapshot of the reservation, never a live reference.
type AuditEntry struct {
	ID     string          `json:"id"`
	Time   time.Time       `json:"time"`
	Action AuditAction     `json:"action"`
	Detail json.RawMessage `json:"detail"`
}

// DeletedDetail is the audit detail written for a delete
type DeletedDetail struct {
	ID int64 `json:"id"`
}

// NewAuditEntry snapshots detail by value. Time is assigned by the store at commit.
func NewAuditEntry(action AuditAction, detail interface{}) (*AuditEntry, error) {
	raw, err := json.Marshal(detail)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal audit detail: %w", err)
	}
	return &AuditEntry{
		ID:     uuid.NewString(),
		Action: action,
		Detail: raw,
	}, nil
}

// Valid reports whether the action is one of the known mutations
func (a AuditAction) Valid() bool {
	switch a {
	case AuditActionCreate, AuditActionUpdate, AuditActionDelete:
		return true
	}
	return false
}
