package syncengine

import (
	"context"
	"fmt"
	"strconv"

	"gorm.io/gorm"
)

// resourceAdapter syncs the resources table (machines, cells, operator
// groups). Resources stand alone like jobs.
type resourceAdapter struct {
	db *gorm.DB
}

func (a *resourceAdapter) Type() EntityType {
	return EntityTypeResources
}

func (a *resourceAdapter) Validate(payload RecordPayload) error {
	if stringField(payload, "name") == "" {
		return fmt.Errorf("name is required")
	}
	if a.ExternalID(payload) == "" {
		return fmt.Errorf("external_id is required")
	}
	return nil
}

func (a *resourceAdapter) ExternalID(payload RecordPayload) string {
	if id := stringField(payload, "external_id"); id != "" {
		return id
	}
	return stringField(payload, "name")
}

func (a *resourceAdapter) HashFields(payload RecordPayload) map[string]any {
	fields := map[string]any{
		"name":          stringField(payload, "name"),
		"resource_type": stringField(payload, "resource_type"),
		"capacity":      intField(payload, "capacity"),
	}
	if metadata, ok := payload["metadata"]; ok {
		fields["metadata"] = metadata
	}
	return fields
}

func (a *resourceAdapter) DisplayFields(payload RecordPayload) map[string]string {
	fields := map[string]string{}
	for _, name := range []string{"name", "resource_type"} {
		if hasField(payload, name) {
			fields[name] = stringField(payload, name)
		}
	}
	if hasField(payload, "capacity") {
		fields["capacity"] = strconv.FormatInt(intField(payload, "capacity"), 10)
	}
	return fields
}

func (a *resourceAdapter) ForeignRefs(RecordPayload) []ForeignRef {
	return nil
}

func (a *resourceAdapter) FetchExisting(ctx context.Context, tenantID, source string, externalIDs []string) (map[string]ExistingRecord, error) {
	if len(externalIDs) == 0 {
		return map[string]ExistingRecord{}, nil
	}
	var rows []Resource
	err := a.db.WithContext(ctx).
		Select("id", "external_id", "sync_hash", "name", "resource_type", "capacity").
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
				"name":          row.Name,
				"resource_type": row.ResourceType,
				"capacity":      strconv.FormatInt(row.Capacity, 10),
			},
		}
	}
	return existing, nil
}

func (a *resourceAdapter) ResolveExternalIDs(ctx context.Context, tenantID, source string, externalIDs []string) (map[string]string, error) {
	if len(externalIDs) == 0 {
		return map[string]string{}, nil
	}
	var rows []Resource
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

func (a *resourceAdapter) InsertBatch(ctx context.Context, specs []CreateSpec, batchSize int) error {
	if len(specs) == 0 {
		return nil
	}
	resources := make([]Resource, 0, len(specs))
	for _, spec := range specs {
		syncedAt := spec.SyncedAt
		resources = append(resources, Resource{
			ID:             spec.InternalID,
			TenantID:       spec.TenantID,
			Name:           stringField(spec.Payload, "name"),
			ResourceType:   stringField(spec.Payload, "resource_type"),
			Capacity:       intField(spec.Payload, "capacity"),
			ExternalSource: spec.Source,
			ExternalID:     spec.ExternalID,
			SyncHash:       spec.SyncHash,
			SyncedAt:       &syncedAt,
		})
	}
	return a.db.WithContext(ctx).CreateInBatches(&resources, batchSize).Error
}

func (a *resourceAdapter) UpdateRecord(ctx context.Context, tenantID, internalID string, spec UpdateSpec) error {
	updates := map[string]any{
		"sync_hash": spec.SyncHash,
		"synced_at": spec.SyncedAt,
	}
	for _, name := range []string{"name", "resource_type"} {
		if hasField(spec.Payload, name) {
			updates[name] = stringField(spec.Payload, name)
		}
	}
	if hasField(spec.Payload, "capacity") {
		updates["capacity"] = intField(spec.Payload, "capacity")
	}
	return a.db.WithContext(ctx).Model(&Resource{}).
		Where("tenant_id = ? AND id = ?", tenantID, internalID).
		Updates(updates).Error
}
