package syncengine

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var noOpLogger = zap.NewNop()

// IDProvider issues internal record identifiers.
type IDProvider interface {
	NewID() (string, error)
}

// EventSink receives fire-and-forget sync completion notifications. Dispatch
// failures never surface to the caller.
type EventSink interface {
	Publish(tenantID, eventType string, payload map[string]any)
}

// Event types emitted after a write pass.
const (
	EventSyncCompleted      = "sync-completed"
	EventBatchSyncCompleted = "batch-sync-completed"
)

// ServiceConfig describes the dependencies of the sync engine.
type ServiceConfig struct {
	Database      *gorm.DB
	Clock         func() time.Time
	IDProvider    IDProvider
	Logger        *zap.Logger
	Events        EventSink
	UpdateWorkers int
}

// Service is the sync engine: stateless per request, all shared state lives
// in the tenant-scoped store behind the adapters.
type Service struct {
	db            *gorm.DB
	clock         func() time.Time
	idProvider    IDProvider
	logger        *zap.Logger
	events        EventSink
	registry      *AdapterRegistry
	updateWorkers int
}

// NewService constructs the sync engine and its entity adapter registry.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:            cfg.Database,
		clock:         clock,
		idProvider:    cfg.IDProvider,
		logger:        logger,
		events:        cfg.Events,
		registry:      NewAdapterRegistry(cfg.Database),
		updateWorkers: cfg.UpdateWorkers,
	}, nil
}

// Registry exposes the adapter registry, mainly for additive entity types.
func (s *Service) Registry() *AdapterRegistry {
	return s.registry
}

// Request carries one diff or sync call: the inbound records per entity type,
// the source label of the system of record, and the execution options.
type Request struct {
	Source   string
	Entities map[EntityType][]RecordPayload
	Options  SyncOptions
}

func (r Request) source() string {
	if r.Source == "" {
		return DefaultSource
	}
	return r.Source
}

// DiffSummary aggregates the dry-run pass across entity types.
type DiffSummary struct {
	Total     int `json:"total"`
	ToCreate  int `json:"to_create"`
	ToUpdate  int `json:"to_update"`
	Unchanged int `json:"unchanged"`
	Errors    int `json:"errors"`
}

// DiffReport is the /diff response body.
type DiffReport struct {
	Summary  DiffSummary                  `json:"summary"`
	Entities map[EntityType]*DiffResponse `json:"entities"`
}

// Diff classifies every submitted record without writing anything.
func (s *Service) Diff(ctx context.Context, tenantID TenantID, request Request) (DiffReport, error) {
	report := DiffReport{Entities: map[EntityType]*DiffResponse{}}
	source := request.source()

	for _, entityType := range entityOrder {
		payloads, present := request.Entities[entityType]
		if !present {
			continue
		}
		adapter, ok := s.registry.Adapter(entityType)
		if !ok {
			return DiffReport{}, newServiceError(opDiff, "unknown_entity_type", ErrInvalidEntityType)
		}
		response, err := s.diffEntityType(ctx, tenantID, source, adapter, payloads)
		if err != nil {
			return DiffReport{}, err
		}
		report.Entities[entityType] = response
		report.Summary.Total += response.Total
		report.Summary.ToCreate += response.ToCreate
		report.Summary.ToUpdate += response.ToUpdate
		report.Summary.Unchanged += response.Unchanged
		report.Summary.Errors += response.Errors
	}
	return report, nil
}

// SyncSummary aggregates the write pass across entity types.
type SyncSummary struct {
	Created        int   `json:"created"`
	Updated        int   `json:"updated"`
	Skipped        int   `json:"skipped"`
	Errors         int   `json:"errors"`
	DurationMillis int64 `json:"duration_ms"`
}

// SyncReport is the /sync response body.
type SyncReport struct {
	Summary  SyncSummary                    `json:"summary"`
	Entities map[EntityType]*BulkSyncResult `json:"entities"`
}

// Sync executes the write pass. Entity types run in fixed order because parts
// resolve job external ids written earlier in the same request.
func (s *Service) Sync(ctx context.Context, tenantID TenantID, request Request) (SyncReport, error) {
	started := s.clock()
	report := SyncReport{Entities: map[EntityType]*BulkSyncResult{}}
	source := request.source()

	for _, entityType := range entityOrder {
		payloads, present := request.Entities[entityType]
		if !present {
			continue
		}
		adapter, ok := s.registry.Adapter(entityType)
		if !ok {
			return SyncReport{}, newServiceError(opExecute, "unknown_entity_type", ErrInvalidEntityType)
		}
		result, err := s.syncEntityType(ctx, tenantID, source, adapter, payloads, request.Options)
		if err != nil {
			return SyncReport{}, err
		}
		report.Entities[entityType] = result
		report.Summary.Created += result.Created
		report.Summary.Updated += result.Updated
		report.Summary.Skipped += result.Skipped
		report.Summary.Errors += result.Errors

		if request.Options.RecordSyncHistory {
			s.recordHistory(ctx, tenantID, entityType, source, result)
		}
	}
	report.Summary.DurationMillis = s.clock().Sub(started).Milliseconds()

	s.emitCompletionEvents(tenantID, source, report)
	return report, nil
}

// emitCompletionEvents notifies the event-dispatch collaborator of every
// entity type that wrote something, plus one batch-level event when more than
// one entity type was synced in the same request.
func (s *Service) emitCompletionEvents(tenantID TenantID, source string, report SyncReport) {
	if s.events == nil {
		return
	}
	synced := 0
	for _, entityType := range entityOrder {
		result, present := report.Entities[entityType]
		if !present {
			continue
		}
		synced++
		if result.Created+result.Updated == 0 {
			continue
		}
		s.events.Publish(tenantID.String(), EventSyncCompleted, map[string]any{
			"entity_type": string(entityType),
			"source":      source,
			"created":     result.Created,
			"updated":     result.Updated,
			"skipped":     result.Skipped,
			"errors":      result.Errors,
		})
	}
	if synced > 1 {
		s.events.Publish(tenantID.String(), EventBatchSyncCompleted, map[string]any{
			"source":  source,
			"created": report.Summary.Created,
			"updated": report.Summary.Updated,
			"skipped": report.Summary.Skipped,
			"errors":  report.Summary.Errors,
		})
	}
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("sync engine error", attrs...)
}
