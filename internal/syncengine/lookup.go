package syncengine

import (
	"context"

	"go.uber.org/zap"
)

// prefetchResult bundles the read-only lookups one entity-type pass needs:
// the existing-record projections keyed by external id, and the resolved
// foreign external ids keyed by target entity type.
type prefetchResult struct {
	existing     map[string]ExistingRecord
	resolvedRefs map[EntityType]map[string]string
}

// prefetch runs the batched lookups for one entity type. Store failures here
// abort the whole entity-type request: without the existing projections no
// record can be classified correctly.
func (s *Service) prefetch(ctx context.Context, tenantID TenantID, source string, adapter EntityAdapter, payloads []RecordPayload) (prefetchResult, error) {
	result := prefetchResult{
		existing:     map[string]ExistingRecord{},
		resolvedRefs: map[EntityType]map[string]string{},
	}

	externalIDs := make([]string, 0, len(payloads))
	seen := make(map[string]bool, len(payloads))
	refsByTarget := map[EntityType][]string{}
	refsSeen := map[EntityType]map[string]bool{}

	for _, payload := range payloads {
		if externalID := adapter.ExternalID(payload); externalID != "" && !seen[externalID] {
			seen[externalID] = true
			externalIDs = append(externalIDs, externalID)
		}
		for _, ref := range adapter.ForeignRefs(payload) {
			if refsSeen[ref.TargetType] == nil {
				refsSeen[ref.TargetType] = map[string]bool{}
			}
			if ref.ExternalID == "" || refsSeen[ref.TargetType][ref.ExternalID] {
				continue
			}
			refsSeen[ref.TargetType][ref.ExternalID] = true
			refsByTarget[ref.TargetType] = append(refsByTarget[ref.TargetType], ref.ExternalID)
		}
	}

	existing, err := adapter.FetchExisting(ctx, tenantID.String(), source, externalIDs)
	if err != nil {
		s.logError(opPrefetch, "fetch_existing_failed", err,
			zap.String("tenant_id", tenantID.String()),
			zap.String("entity_type", string(adapter.Type())))
		return prefetchResult{}, newServiceError(opPrefetch, "fetch_existing_failed", err)
	}
	result.existing = existing

	for targetType, ids := range refsByTarget {
		targetAdapter, ok := s.registry.Adapter(targetType)
		if !ok {
			s.logError(opResolve, "unknown_target_entity", ErrInvalidEntityType,
				zap.String("entity_type", string(targetType)))
			return prefetchResult{}, newServiceError(opResolve, "unknown_target_entity", ErrInvalidEntityType)
		}
		resolved, err := targetAdapter.ResolveExternalIDs(ctx, tenantID.String(), source, ids)
		if err != nil {
			s.logError(opResolve, "resolve_failed", err,
				zap.String("tenant_id", tenantID.String()),
				zap.String("entity_type", string(targetType)))
			return prefetchResult{}, newServiceError(opResolve, "resolve_failed", err)
		}
		result.resolvedRefs[targetType] = resolved
	}

	return result, nil
}
