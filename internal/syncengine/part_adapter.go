package syncengine

import (
	"context"
	"fmt"
	"strconv"

	"gorm.io/gorm"
)

// partAdapter syncs the parts table. Parts are the dependent entity: an
// inbound part names its job either by internal id (job_id) or by the job's
// external id (job_external_id), which must resolve within the same tenant
// before the part can be written.
type partAdapter struct {
	db *gorm.DB
}

func (a *partAdapter) Type() EntityType {
	return EntityTypeParts
}

func (a *partAdapter) Validate(payload RecordPayload) error {
	if stringField(payload, "part_number") == "" {
		return fmt.Errorf("part_number is required")
	}
	if a.ExternalID(payload) == "" {
		return fmt.Errorf("external_id is required")
	}
	if stringField(payload, "job_id") == "" && stringField(payload, "job_external_id") == "" {
		return fmt.Errorf("job_id or job_external_id is required")
	}
	return nil
}

func (a *partAdapter) ExternalID(payload RecordPayload) string {
	if id := stringField(payload, "external_id"); id != "" {
		return id
	}
	return stringField(payload, "part_number")
}

func (a *partAdapter) HashFields(payload RecordPayload) map[string]any {
	fields := map[string]any{
		"part_number": stringField(payload, "part_number"),
		"material":    stringField(payload, "material"),
		"quantity":    intField(payload, "quantity"),
		"status":      stringField(payload, "status"),
	}
	if jobExternalID := stringField(payload, "job_external_id"); jobExternalID != "" {
		fields["job_external_id"] = jobExternalID
	} else {
		fields["job_id"] = stringField(payload, "job_id")
	}
	if metadata, ok := payload["metadata"]; ok {
		fields["metadata"] = metadata
	}
	return fields
}

func (a *partAdapter) DisplayFields(payload RecordPayload) map[string]string {
	fields := map[string]string{}
	for _, name := range []string{"part_number", "material", "status"} {
		if hasField(payload, name) {
			fields[name] = stringField(payload, name)
		}
	}
	if hasField(payload, "quantity") {
		fields["quantity"] = strconv.FormatInt(intField(payload, "quantity"), 10)
	}
	return fields
}

func (a *partAdapter) ForeignRefs(payload RecordPayload) []ForeignRef {
	if stringField(payload, "job_id") != "" {
		// Already an internal id; nothing to resolve.
		return nil
	}
	jobExternalID := stringField(payload, "job_external_id")
	if jobExternalID == "" {
		return nil
	}
	return []ForeignRef{{
		Field:      "job_id",
		TargetType: EntityTypeJobs,
		ExternalID: jobExternalID,
	}}
}

func (a *partAdapter) FetchExisting(ctx context.Context, tenantID, source string, externalIDs []string) (map[string]ExistingRecord, error) {
	if len(externalIDs) == 0 {
		return map[string]ExistingRecord{}, nil
	}
	var rows []Part
	err := a.db.WithContext(ctx).
		Select("id", "external_id", "sync_hash", "part_number", "material", "quantity", "status").
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
				"part_number": row.PartNumber,
				"material":    row.Material,
				"quantity":    strconv.FormatInt(row.Quantity, 10),
				"status":      row.Status,
			},
		}
	}
	return existing, nil
}

func (a *partAdapter) ResolveExternalIDs(ctx context.Context, tenantID, source string, externalIDs []string) (map[string]string, error) {
	if len(externalIDs) == 0 {
		return map[string]string{}, nil
	}
	var rows []Part
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

func (a *partAdapter) InsertBatch(ctx context.Context, specs []CreateSpec, batchSize int) error {
	if len(specs) == 0 {
		return nil
	}
	parts := make([]Part, 0, len(specs))
	for _, spec := range specs {
		syncedAt := spec.SyncedAt
		jobID := spec.Resolved["job_id"]
		if jobID == "" {
			jobID = stringField(spec.Payload, "job_id")
		}
		parts = append(parts, Part{
			ID:             spec.InternalID,
			TenantID:       spec.TenantID,
			PartNumber:     stringField(spec.Payload, "part_number"),
			JobID:          jobID,
			Material:       stringField(spec.Payload, "material"),
			Quantity:       intField(spec.Payload, "quantity"),
			Status:         stringField(spec.Payload, "status"),
			ExternalSource: spec.Source,
			ExternalID:     spec.ExternalID,
			SyncHash:       spec.SyncHash,
			SyncedAt:       &syncedAt,
		})
	}
	return a.db.WithContext(ctx).CreateInBatches(&parts, batchSize).Error
}

func (a *partAdapter) UpdateRecord(ctx context.Context, tenantID, internalID string, spec UpdateSpec) error {
	updates := map[string]any{
		"sync_hash": spec.SyncHash,
		"synced_at": spec.SyncedAt,
	}
	for _, name := range []string{"part_number", "material", "status"} {
		if hasField(spec.Payload, name) {
			updates[name] = stringField(spec.Payload, name)
		}
	}
	if hasField(spec.Payload, "quantity") {
		updates["quantity"] = intField(spec.Payload, "quantity")
	}
	if jobID := spec.Resolved["job_id"]; jobID != "" {
		updates["job_id"] = jobID
	} else if hasField(spec.Payload, "job_id") {
		updates["job_id"] = stringField(spec.Payload, "job_id")
	}
	return a.db.WithContext(ctx).Model(&Part{}).
		Where("tenant_id = ? AND id = ?", tenantID, internalID).
		Updates(updates).Error
}
