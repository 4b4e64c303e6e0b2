package syncengine

import (
	"context"
	"fmt"
	"strconv"

	"gorm.io/gorm"
)

// jobAdapter syncs the jobs table. Jobs are the root entity: nothing they
// reference needs resolving, and parts resolve against them.
type jobAdapter struct {
	db *gorm.DB
}

func (a *jobAdapter) Type() EntityType {
	return EntityTypeJobs
}

func (a *jobAdapter) Validate(payload RecordPayload) error {
	if stringField(payload, "job_number") == "" {
		return fmt.Errorf("job_number is required")
	}
	if a.ExternalID(payload) == "" {
		return fmt.Errorf("external_id is required")
	}
	return nil
}

func (a *jobAdapter) ExternalID(payload RecordPayload) string {
	if id := stringField(payload, "external_id"); id != "" {
		return id
	}
	// Systems of record without a separate id column key on the job number
	// itself.
	return stringField(payload, "job_number")
}

func (a *jobAdapter) HashFields(payload RecordPayload) map[string]any {
	fields := map[string]any{
		"job_number":  stringField(payload, "job_number"),
		"customer":    stringField(payload, "customer"),
		"description": stringField(payload, "description"),
		"status":      stringField(payload, "status"),
		"quantity":    intField(payload, "quantity"),
		"due_date":    stringField(payload, "due_date"),
	}
	if metadata, ok := payload["metadata"]; ok {
		fields["metadata"] = metadata
	}
	return fields
}

func (a *jobAdapter) DisplayFields(payload RecordPayload) map[string]string {
	fields := map[string]string{}
	for _, name := range []string{"job_number", "customer", "description", "status", "due_date"} {
		if hasField(payload, name) {
			fields[name] = stringField(payload, name)
		}
	}
	if hasField(payload, "quantity") {
		fields["quantity"] = strconv.FormatInt(intField(payload, "quantity"), 10)
	}
	return fields
}

func (a *jobAdapter) ForeignRefs(RecordPayload) []ForeignRef {
	return nil
}

func (a *jobAdapter) FetchExisting(ctx context.Context, tenantID, source string, externalIDs []string) (map[string]ExistingRecord, error) {
	if len(externalIDs) == 0 {
		return map[string]ExistingRecord{}, nil
	}
	var rows []Job
	err := a.db.WithContext(ctx).
		Select("id", "external_id", "sync_hash", "job_number", "customer", "description", "status", "quantity", "due_date").
		Where("tenant_id = ? AND external_source = ? AND external_id IN ?", tenantID, source, externalIDs).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	existing := make(map[string]ExistingRecord, len(rows))
	for _, row := range rows {
		existing[row.ExternalID] = ExistingRecord{
			InternalID: row.ID,
			SyncHash:   row.SyncHash,
			Fields: map[string]string{
				"job_number":  row.JobNumber,
				"customer":    row.Customer,
				"description": row.Description,
				"status":      row.Status,
				"quantity":    strconv.FormatInt(row.Quantity, 10),
				"due_date":    row.DueDate,
			},
		}
	}
	return existing, nil
}

func (a *jobAdapter) ResolveExternalIDs(ctx context.Context, tenantID, source string, externalIDs []string) (map[string]string, error) {
	if len(externalIDs) == 0 {
		return map[string]string{}, nil
	}
	var rows []Job
	err := a.db.WithContext(ctx).
		Select("id", "external_id").
		Where("tenant_id = ? AND external_source = ? AND external_id IN ?", tenantID, source, externalIDs).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	resolved := make(map[string]string, len(rows))
	for _, row := range rows {
		resolved[row.ExternalID] = row.ID
	}
	return resolved, nil
}

func (a *jobAdapter) InsertBatch(ctx context.Context, specs []CreateSpec, batchSize int) error {
	if len(specs) == 0 {
		return nil
	}
	jobs := make([]Job, 0, len(specs))
	for _, spec := range specs {
		syncedAt := spec.SyncedAt
		jobs = append(jobs, Job{
			ID:             spec.InternalID,
			TenantID:       spec.TenantID,
			JobNumber:      stringField(spec.Payload, "job_number"),
			Customer:       stringField(spec.Payload, "customer"),
			Description:    stringField(spec.Payload, "description"),
			Status:         stringField(spec.Payload, "status"),
			Quantity:       intField(spec.Payload, "quantity"),
			DueDate:        stringField(spec.Payload, "due_date"),
			ExternalSource: spec.Source,
			ExternalID:     spec.ExternalID,
			SyncHash:       spec.SyncHash,
			SyncedAt:       &syncedAt,
		})
	}
	return a.db.WithContext(ctx).CreateInBatches(&jobs, batchSize).Error
}

func (a *jobAdapter) UpdateRecord(ctx context.Context, tenantID, internalID string, spec UpdateSpec) error {
	updates := map[string]any{
		"sync_hash": spec.SyncHash,
		"synced_at": spec.SyncedAt,
	}
	for _, name := range []string{"job_number", "customer", "description", "status", "due_date"} {
		if hasField(spec.Payload, name) {
			updates[name] = stringField(spec.Payload, name)
		}
	}
	if hasField(spec.Payload, "quantity") {
		updates["quantity"] = intField(spec.Payload, "quantity")
	}
	return a.db.WithContext(ctx).Model(&Job{}).
		Where("tenant_id = ? AND id = ?", tenantID, internalID).
		Updates(updates).Error
}
