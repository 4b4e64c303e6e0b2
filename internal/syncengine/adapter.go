package syncengine

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
)

// CreateSpec carries everything needed to insert one new record: a
// pre-generated internal id, the tenant scope, the external key, the inbound
// payload with its resolved foreign ids, and the sync bookkeeping fields.
type CreateSpec struct {
	InternalID string
	TenantID   string
	Source     string
	ExternalID string
	Payload    RecordPayload
	Resolved   map[string]string
	SyncHash   string
	SyncedAt   time.Time
}

// UpdateSpec carries the updatable column set for one existing record.
type UpdateSpec struct {
	Payload  RecordPayload
	Resolved map[string]string
	SyncHash string
	SyncedAt time.Time
}

// EntityAdapter binds one entity table to the generic sync engine. Adding a
// new syncable entity means implementing this interface and registering it.
type EntityAdapter interface {
	Type() EntityType

	// Validate checks the required fields of an inbound payload. A non-nil
	// error classifies the record as a per-record validation failure.
	Validate(payload RecordPayload) error

	// ExternalID extracts the caller-side identifier; guaranteed non-empty
	// after Validate succeeds.
	ExternalID(payload RecordPayload) string

	// HashFields selects the business fields feeding the content fingerprint.
	// A superset of DisplayFields so a diff never reports unchanged while the
	// hash moved on a hidden field without the generic fallback note.
	HashFields(payload RecordPayload) map[string]any

	// DisplayFields renders the inbound business values compared field by
	// field for diff output.
	DisplayFields(payload RecordPayload) map[string]string

	// ForeignRefs lists cross-entity external-id references that must resolve
	// to internal ids before the record can be written.
	ForeignRefs(payload RecordPayload) []ForeignRef

	// FetchExisting runs one batched query for the given external ids and
	// returns the classification projections keyed by external id.
	FetchExisting(ctx context.Context, tenantID, source string, externalIDs []string) (map[string]ExistingRecord, error)

	// ResolveExternalIDs batch-maps this entity's external ids to internal ids
	// for use as foreign references by dependent entity types.
	ResolveExternalIDs(ctx context.Context, tenantID, source string, externalIDs []string) (map[string]string, error)

	// InsertBatch writes the whole create set in one batched call.
	InsertBatch(ctx context.Context, specs []CreateSpec, batchSize int) error

	// UpdateRecord writes one existing record's updatable columns.
	UpdateRecord(ctx context.Context, tenantID, internalID string, spec UpdateSpec) error
}

// AdapterRegistry holds the entity adapters keyed by entity name, so request
// routing by top-level body key stays a lookup rather than a branch ladder.
type AdapterRegistry struct {
	adapters map[EntityType]EntityAdapter
}

// NewAdapterRegistry wires the built-in job, part and resource adapters over
// the shared database handle.
func NewAdapterRegistry(db *gorm.DB) *AdapterRegistry {
	registry := &AdapterRegistry{adapters: make(map[EntityType]EntityAdapter)}
	registry.Register(&jobAdapter{db: db})
	registry.Register(&partAdapter{db: db})
	registry.Register(&resourceAdapter{db: db})
	return registry
}

// Register adds or replaces the adapter for its entity type.
func (r *AdapterRegistry) Register(adapter EntityAdapter) {
	r.adapters[adapter.Type()] = adapter
}

// Adapter returns the adapter registered for the entity type.
func (r *AdapterRegistry) Adapter(entityType EntityType) (EntityAdapter, bool) {
	adapter, ok := r.adapters[entityType]
	return adapter, ok
}

// stringField reads a trimmed string value from a payload.
func stringField(payload RecordPayload, name string) string {
	raw, ok := payload[name]
	if !ok || raw == nil {
		return ""
	}
	switch typed := raw.(type) {
	case string:
		return strings.TrimSpace(typed)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", typed))
	}
}

// intField reads an integer value from a payload; JSON numbers decode as
// float64, so both forms are accepted.
func intField(payload RecordPayload, name string) int64 {
	raw, ok := payload[name]
	if !ok || raw == nil {
		return 0
	}
	switch typed := raw.(type) {
	case float64:
		return int64(typed)
	case int64:
		return typed
	case int:
		return int64(typed)
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}

// hasField reports whether the payload carries the key at all, distinguishing
// absent fields from explicit zero values.
func hasField(payload RecordPayload, name string) bool {
	_, ok := payload[name]
	return ok
}
