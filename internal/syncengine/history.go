package syncengine

import (
	"context"

	"go.uber.org/zap"
)

const (
	defaultStatusLimit = 20
	maxStatusLimit     = 100
)

// recordHistory persists the immutable audit row for one entity-type sync
// pass. The writes it summarizes already happened, so a failed history insert
// is logged and swallowed rather than failing the request.
func (s *Service) recordHistory(ctx context.Context, tenantID TenantID, entityType EntityType, source string, result *BulkSyncResult) {
	id, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opHistory, "id_generation_failed", err, zap.String("tenant_id", tenantID.String()))
		return
	}
	row := SyncHistory{
		ID:             id,
		TenantID:       tenantID.String(),
		EntityType:     string(entityType),
		Source:         source,
		CreatedCount:   result.Created,
		UpdatedCount:   result.Updated,
		SkippedCount:   result.Skipped,
		ErrorCount:     result.Errors,
		DurationMillis: result.DurationMillis,
		CreatedAt:      s.clock().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		s.logError(opHistory, "insert_failed", err,
			zap.String("tenant_id", tenantID.String()),
			zap.String("entity_type", string(entityType)))
	}
}

// StatusQuery filters the sync history listing.
type StatusQuery struct {
	EntityType string
	Source     string
	Limit      int
}

// StatusStats rolls the matched history rows up into run and record totals.
type StatusStats struct {
	TotalRuns      int `json:"total_runs"`
	SuccessfulRuns int `json:"successful_runs"`
	FailedRuns     int `json:"failed_runs"`
	TotalCreated   int `json:"total_created"`
	TotalUpdated   int `json:"total_updated"`
	TotalSkipped   int `json:"total_skipped"`
	TotalErrors    int `json:"total_errors"`
}

// StatusReport is the /status response body.
type StatusReport struct {
	Stats   StatusStats   `json:"stats"`
	History []SyncHistory `json:"history"`
}

// Status returns the most recent sync history rows for the tenant, newest
// first, with the limit capped server-side.
func (s *Service) Status(ctx context.Context, tenantID TenantID, query StatusQuery) (StatusReport, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = defaultStatusLimit
	}
	if limit > maxStatusLimit {
		limit = maxStatusLimit
	}

	scoped := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID.String())
	if query.EntityType != "" {
		scoped = scoped.Where("entity_type = ?", query.EntityType)
	}
	if query.Source != "" {
		scoped = scoped.Where("source = ?", query.Source)
	}

	var rows []SyncHistory
	if err := scoped.Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		s.logError(opStatus, "query_failed", err, zap.String("tenant_id", tenantID.String()))
		return StatusReport{}, newServiceError(opStatus, "query_failed", err)
	}

	report := StatusReport{History: rows}
	for _, row := range rows {
		report.Stats.TotalRuns++
		if row.ErrorCount == 0 {
			report.Stats.SuccessfulRuns++
		} else {
			report.Stats.FailedRuns++
		}
		report.Stats.TotalCreated += row.CreatedCount
		report.Stats.TotalUpdated += row.UpdatedCount
		report.Stats.TotalSkipped += row.SkippedCount
		report.Stats.TotalErrors += row.ErrorCount
	}
	return report, nil
}
