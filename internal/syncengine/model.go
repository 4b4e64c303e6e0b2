package syncengine

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// EntityType enumerates the entity tables served by the sync engine.
type EntityType string

const (
	EntityTypeJobs      EntityType = "jobs"
	EntityTypeParts     EntityType = "parts"
	EntityTypeResources EntityType = "resources"
)

// entityOrder fixes processing order: parts resolve job external ids, so jobs
// must be written before parts within the same request.
var entityOrder = []EntityType{EntityTypeJobs, EntityTypeParts, EntityTypeResources}

// DefaultSource labels records whose request did not name a system of record.
const DefaultSource = "external"

const maxIdentifierLength = 190

var (
	// ErrInvalidTenantID indicates an empty or oversized tenant identifier.
	ErrInvalidTenantID = errors.New("syncengine: invalid tenant id")
	// ErrInvalidEntityType indicates an entity name with no registered adapter.
	ErrInvalidEntityType = errors.New("syncengine: unknown entity type")
)

// TenantID represents a validated tenant identifier.
type TenantID string

// NewTenantID validates raw input and returns a TenantID.
func NewTenantID(rawInput string) (TenantID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidTenantID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidTenantID, maxIdentifierLength)
	}
	return TenantID(trimmed), nil
}

// String returns the underlying string identifier.
func (id TenantID) String() string {
	return string(id)
}

// RecordPayload is one inbound record as decoded from the request body.
type RecordPayload map[string]any

// ExternalKey identifies a record in the caller's system of record.
type ExternalKey struct {
	Source     string
	ExternalID string
}

// Job models a persisted production job.
type Job struct {
	ID             string     `gorm:"column:id;primaryKey;size:190;not null"`
	TenantID       string     `gorm:"column:tenant_id;size:190;not null;index:idx_jobs_tenant_external,priority:1"`
	JobNumber      string     `gorm:"column:job_number;size:190;not null"`
	Customer       string     `gorm:"column:customer;size:320"`
	Description    string     `gorm:"column:description;type:text"`
	Status         string     `gorm:"column:status;size:64"`
	Quantity       int64      `gorm:"column:quantity;not null;default:0"`
	DueDate        string     `gorm:"column:due_date;size:64"`
	ExternalSource string     `gorm:"column:external_source;size:190;index:idx_jobs_tenant_external,priority:2"`
	ExternalID     string     `gorm:"column:external_id;size:190;index:idx_jobs_tenant_external,priority:3"`
	SyncHash       string     `gorm:"column:sync_hash;size:64"`
	SyncedAt       *time.Time `gorm:"column:synced_at"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Job) TableName() string {
	return "jobs"
}

// Part models a persisted part belonging to a job.
type Part struct {
	ID             string     `gorm:"column:id;primaryKey;size:190;not null"`
	TenantID       string     `gorm:"column:tenant_id;size:190;not null;index:idx_parts_tenant_external,priority:1"`
	PartNumber     string     `gorm:"column:part_number;size:190;not null"`
	JobID          string     `gorm:"column:job_id;size:190;index"`
	Material       string     `gorm:"column:material;size:190"`
	Quantity       int64      `gorm:"column:quantity;not null;default:0"`
	Status         string     `gorm:"column:status;size:64"`
	ExternalSource string     `gorm:"column:external_source;size:190;index:idx_parts_tenant_external,priority:2"`
	ExternalID     string     `gorm:"column:external_id;size:190;index:idx_parts_tenant_external,priority:3"`
	SyncHash       string     `gorm:"column:sync_hash;size:64"`
	SyncedAt       *time.Time `gorm:"column:synced_at"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Part) TableName() string {
	return "parts"
}

// Resource models a persisted shop resource (machine, cell, operator group).
type Resource struct {
	ID             string     `gorm:"column:id;primaryKey;size:190;not null"`
	TenantID       string     `gorm:"column:tenant_id;size:190;not null;index:idx_resources_tenant_external,priority:1"`
	Name           string     `gorm:"column:name;size:320;not null"`
	ResourceType   string     `gorm:"column:resource_type;size:64"`
	Capacity       int64      `gorm:"column:capacity;not null;default:0"`
	ExternalSource string     `gorm:"column:external_source;size:190;index:idx_resources_tenant_external,priority:2"`
	ExternalID     string     `gorm:"column:external_id;size:190;index:idx_resources_tenant_external,priority:3"`
	SyncHash       string     `gorm:"column:sync_hash;size:64"`
	SyncedAt       *time.Time `gorm:"column:synced_at"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Resource) TableName() string {
	return "resources"
}

// SyncHistory captures the immutable audit row written after each sync run.
type SyncHistory struct {
	ID             string    `gorm:"column:id;primaryKey;size:190;not null" json:"id"`
	TenantID       string    `gorm:"column:tenant_id;size:190;not null;index:idx_sync_history_tenant_time,priority:1" json:"tenant_id"`
	EntityType     string    `gorm:"column:entity_type;size:64;not null" json:"entity_type"`
	Source         string    `gorm:"column:source;size:190;not null" json:"source"`
	CreatedCount   int       `gorm:"column:created_count;not null;default:0" json:"created_count"`
	UpdatedCount   int       `gorm:"column:updated_count;not null;default:0" json:"updated_count"`
	SkippedCount   int       `gorm:"column:skipped_count;not null;default:0" json:"skipped_count"`
	ErrorCount     int       `gorm:"column:error_count;not null;default:0" json:"error_count"`
	DurationMillis int64     `gorm:"column:duration_ms;not null;default:0" json:"duration_ms"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime;index:idx_sync_history_tenant_time,priority:2" json:"created_at"`
}

// TableName provides the explicit table binding for GORM.
func (SyncHistory) TableName() string {
	return "sync_history"
}

// SyncOptions carries per-request execution switches.
type SyncOptions struct {
	SkipUnchanged     bool
	BatchSize         int
	ContinueOnError   bool
	RecordSyncHistory bool
}

// DefaultSyncOptions returns the documented defaults.
func DefaultSyncOptions() SyncOptions {
	return SyncOptions{
		SkipUnchanged:     true,
		BatchSize:         100,
		ContinueOnError:   true,
		RecordSyncHistory: true,
	}
}

// Action classifies the outcome decided for one inbound record.
type Action string

const (
	ActionCreate    Action = "create"
	ActionUpdate    Action = "update"
	ActionUnchanged Action = "unchanged"
	ActionSkipped   Action = "skipped"
	ActionCreated   Action = "created"
	ActionUpdated   Action = "updated"
	ActionError     Action = "error"
)

// DiffRecord is the per-record result of a dry-run classification.
type DiffRecord struct {
	ExternalID string   `json:"external_id"`
	Action     Action   `json:"action"`
	InternalID string   `json:"internal_id,omitempty"`
	Changes    []string `json:"changes,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// DiffResponse summarizes a dry-run pass over one entity type.
type DiffResponse struct {
	Total     int          `json:"total"`
	ToCreate  int          `json:"to_create"`
	ToUpdate  int          `json:"to_update"`
	Unchanged int          `json:"unchanged"`
	Errors    int          `json:"errors"`
	Records   []DiffRecord `json:"records"`
}

// SyncRecord is the per-record terminal result of a write pass.
type SyncRecord struct {
	ExternalID string `json:"external_id"`
	InternalID string `json:"internal_id,omitempty"`
	Action     Action `json:"action"`
	Error      string `json:"error,omitempty"`
}

// BulkSyncResult summarizes a write pass over one entity type.
type BulkSyncResult struct {
	Created        int          `json:"created"`
	Updated        int          `json:"updated"`
	Skipped        int          `json:"skipped"`
	Errors         int          `json:"errors"`
	Records        []SyncRecord `json:"records"`
	DurationMillis int64        `json:"duration_ms"`
}

// ExistingRecord is the projection prefetched for classification: just enough
// to diff against the incoming payload.
type ExistingRecord struct {
	InternalID string
	SyncHash   string
	Fields     map[string]string
}

// ForeignRef names a cross-entity reference found on an inbound record.
type ForeignRef struct {
	Field      string
	TargetType EntityType
	ExternalID string
}
