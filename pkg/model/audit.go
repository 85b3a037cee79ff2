package model

import "time"

// AuditEventType identifies the type of auditable event.
type AuditEventType string

const (
	EventTypeEnvironmentCreate AuditEventType = "environment_create"
	EventTypeEnvironmentUpdate AuditEventType = "environment_update"
	EventTypeEnvironmentSwitch AuditEventType = "environment_switch"
	EventTypeEnvironmentRemove AuditEventType = "environment_remove"
	EventTypeEnvironmentRepair AuditEventType = "environment_repair"
)

// AuditRecord is a single line in the audit log (JSONL format).
type AuditRecord struct {
	Timestamp   time.Time      `json:"timestamp"`
	EventType   AuditEventType `json:"event_type"`
	Environment string         `json:"environment,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	PrevHash    HashValue      `json:"prev_hash"`
	RecordHash  HashValue      `json:"record_hash"`
}
