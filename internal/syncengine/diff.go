package syncengine

import (
	"context"
	"fmt"
)

// classification is the decision for one inbound record, shared between the
// dry-run diff pass and the write pass.
type classification struct {
	externalID string
	action     Action
	existing   *ExistingRecord
	hash       string
	resolved   map[string]string
	changes    []string
	message    string
}

// classifyRecord walks one record through the per-record state machine up to
// the classified state, touching nothing but the prefetched projections.
func classifyRecord(adapter EntityAdapter, payload RecordPayload, pre prefetchResult) classification {
	externalID := adapter.ExternalID(payload)

	if err := adapter.Validate(payload); err != nil {
		return classification{externalID: externalID, action: ActionError, message: err.Error()}
	}

	resolved := map[string]string{}
	for _, ref := range adapter.ForeignRefs(payload) {
		internalID, ok := pre.resolvedRefs[ref.TargetType][ref.ExternalID]
		if !ok {
			return classification{
				externalID: externalID,
				action:     ActionError,
				message:    fmt.Sprintf("%s not found: %s", singular(ref.TargetType), ref.ExternalID),
			}
		}
		resolved[ref.Field] = internalID
	}

	hash := Fingerprint(adapter.HashFields(payload))

	existing, found := pre.existing[externalID]
	if !found {
		return classification{externalID: externalID, action: ActionCreate, hash: hash, resolved: resolved}
	}
	if existing.SyncHash == hash {
		return classification{externalID: externalID, action: ActionUnchanged, existing: &existing, hash: hash, resolved: resolved}
	}

	changes := compareDisplayFields(existing.Fields, adapter.DisplayFields(payload))
	if len(changes) == 0 {
		// The hash covers fields the display comparison does not (nested
		// metadata); never report an update with an empty change list.
		changes = []string{"data changed"}
	}
	return classification{
		externalID: externalID,
		action:     ActionUpdate,
		existing:   &existing,
		hash:       hash,
		resolved:   resolved,
		changes:    changes,
	}
}

// compareDisplayFields renders the field-by-field differences between the
// stored projection and the incoming payload. Only fields present on the
// incoming payload are compared; an absent field is not a change.
func compareDisplayFields(stored map[string]string, incoming map[string]string) []string {
	var changes []string
	for _, name := range sortedFieldNames(incoming) {
		oldValue, tracked := stored[name]
		if !tracked {
			continue
		}
		newValue := incoming[name]
		if oldValue != newValue {
			changes = append(changes, fmt.Sprintf("%s: %q -> %q", name, oldValue, newValue))
		}
	}
	return changes
}

// diffEntityType runs the read-only classification pass for one entity type.
func (s *Service) diffEntityType(ctx context.Context, tenantID TenantID, source string, adapter EntityAdapter, payloads []RecordPayload) (*DiffResponse, error) {
	pre, err := s.prefetch(ctx, tenantID, source, adapter, payloads)
	if err != nil {
		return nil, err
	}

	response := &DiffResponse{
		Total:   len(payloads),
		Records: make([]DiffRecord, 0, len(payloads)),
	}
	for _, payload := range payloads {
		decided := classifyRecord(adapter, payload, pre)
		record := DiffRecord{
			ExternalID: decided.externalID,
			Action:     decided.action,
			Changes:    decided.changes,
			Error:      decided.message,
		}
		if decided.existing != nil {
			record.InternalID = decided.existing.InternalID
		}
		switch decided.action {
		case ActionCreate:
			response.ToCreate++
		case ActionUpdate:
			response.ToUpdate++
		case ActionUnchanged:
			response.Unchanged++
		case ActionError:
			response.Errors++
		}
		response.Records = append(response.Records, record)
	}
	return response, nil
}

func singular(entityType EntityType) string {
	switch entityType {
	case EntityTypeJobs:
		return "job"
	case EntityTypeParts:
		return "part"
	case EntityTypeResources:
		return "resource"
	default:
		return string(entityType)
	}
}
