package models

import "time"

// AuditAction is the kind of access decision being recorded.
type AuditAction string

const (
	ActionGrant    AuditAction = "grant"
	ActionRevoke   AuditAction = "revoke"
	ActionOverride AuditAction = "override"
	ActionDeny     AuditAction = "deny"
)

// AuditEntry records a single grant/revoke/override/deny decision.
// Entries are append-only; the engine never mutates or deletes them.
type AuditEntry struct {
	ID         int64       `json:"id"`
	Timestamp  time.Time   `json:"timestamp"`
	StaffID    string      `json:"staff_id"`
	Action     AuditAction `json:"action"`
	PropertyID string      `json:"property_id"`
	ClientIDs  []string    `json:"client_ids,omitempty"`
	Reason     string      `json:"reason,omitempty"`
	Actor      string      `json:"actor"`
}
