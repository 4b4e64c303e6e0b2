package syncengine

import (
	"strings"
	"testing"
)

func TestClassifyRecordMissingRequiredField(t *testing.T) {
	adapter := &jobAdapter{}
	payload := RecordPayload{"customer": "Acme", "external_id": "J-1"}

	decided := classifyRecord(adapter, payload, emptyPrefetch())
	if decided.action != ActionError {
		t.Fatalf("expected error classification, got %s", decided.action)
	}
	if !strings.Contains(decided.message, "job_number") {
		t.Fatalf("expected field-level message, got %q", decided.message)
	}
}

func TestClassifyRecordCreateWhenAbsent(t *testing.T) {
	adapter := &jobAdapter{}
	payload := RecordPayload{"job_number": "J-1", "customer": "Acme"}

	decided := classifyRecord(adapter, payload, emptyPrefetch())
	if decided.action != ActionCreate {
		t.Fatalf("expected create, got %s", decided.action)
	}
	if decided.externalID != "J-1" {
		t.Fatalf("expected external id to fall back to job_number, got %s", decided.externalID)
	}
	if decided.hash == "" {
		t.Fatalf("expected a computed hash on create")
	}
}

func TestClassifyRecordUnchangedOnMatchingHash(t *testing.T) {
	adapter := &jobAdapter{}
	payload := RecordPayload{"job_number": "J-1", "customer": "Acme"}
	pre := emptyPrefetch()
	pre.existing["J-1"] = ExistingRecord{
		InternalID: "internal-1",
		SyncHash:   Fingerprint(adapter.HashFields(payload)),
		Fields:     map[string]string{"job_number": "J-1", "customer": "Acme"},
	}

	decided := classifyRecord(adapter, payload, pre)
	if decided.action != ActionUnchanged {
		t.Fatalf("expected unchanged, got %s", decided.action)
	}
	if decided.existing == nil || decided.existing.InternalID != "internal-1" {
		t.Fatalf("expected existing projection to be carried")
	}
}

func TestClassifyRecordUpdateRendersChangeList(t *testing.T) {
	adapter := &jobAdapter{}
	stored := RecordPayload{"job_number": "J-1", "customer": "Acme"}
	incoming := RecordPayload{"job_number": "J-1", "customer": "Acme Corp"}
	pre := emptyPrefetch()
	pre.existing["J-1"] = ExistingRecord{
		InternalID: "internal-1",
		SyncHash:   Fingerprint(adapter.HashFields(stored)),
		Fields:     map[string]string{"job_number": "J-1", "customer": "Acme"},
	}

	decided := classifyRecord(adapter, incoming, pre)
	if decided.action != ActionUpdate {
		t.Fatalf("expected update, got %s", decided.action)
	}
	expected := `customer: "Acme" -> "Acme Corp"`
	found := false
	for _, change := range decided.changes {
		if change == expected {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected change list to include %q, got %v", expected, decided.changes)
	}
}

func TestClassifyRecordHiddenFieldChangeFallsBackToGenericNote(t *testing.T) {
	adapter := &jobAdapter{}
	stored := RecordPayload{"job_number": "J-1", "metadata": map[string]any{"rev": "A"}}
	incoming := RecordPayload{"job_number": "J-1", "metadata": map[string]any{"rev": "B"}}
	pre := emptyPrefetch()
	pre.existing["J-1"] = ExistingRecord{
		InternalID: "internal-1",
		SyncHash:   Fingerprint(adapter.HashFields(stored)),
		Fields:     map[string]string{"job_number": "J-1"},
	}

	decided := classifyRecord(adapter, incoming, pre)
	if decided.action != ActionUpdate {
		t.Fatalf("expected update, got %s", decided.action)
	}
	if len(decided.changes) != 1 || decided.changes[0] != "data changed" {
		t.Fatalf("expected generic fallback note, got %v", decided.changes)
	}
}

func TestClassifyRecordUnresolvedForeignReference(t *testing.T) {
	adapter := &partAdapter{}
	payload := RecordPayload{
		"part_number":     "P-1",
		"job_external_id": "J-missing",
	}

	decided := classifyRecord(adapter, payload, emptyPrefetch())
	if decided.action != ActionError {
		t.Fatalf("expected error, got %s", decided.action)
	}
	if !strings.Contains(decided.message, "not found") || !strings.Contains(decided.message, "J-missing") {
		t.Fatalf("expected not-found message naming the reference, got %q", decided.message)
	}
}

func TestClassifyRecordResolvesForeignReference(t *testing.T) {
	adapter := &partAdapter{}
	payload := RecordPayload{
		"part_number":     "P-1",
		"job_external_id": "J-1",
	}
	pre := emptyPrefetch()
	pre.resolvedRefs[EntityTypeJobs] = map[string]string{"J-1": "job-internal-1"}

	decided := classifyRecord(adapter, payload, pre)
	if decided.action != ActionCreate {
		t.Fatalf("expected create, got %s", decided.action)
	}
	if decided.resolved["job_id"] != "job-internal-1" {
		t.Fatalf("expected resolved job id, got %v", decided.resolved)
	}
}

func TestCompareDisplayFieldsIgnoresAbsentFields(t *testing.T) {
	stored := map[string]string{"customer": "Acme", "status": "active"}
	incoming := map[string]string{"customer": "Acme"}

	changes := compareDisplayFields(stored, incoming)
	if len(changes) != 0 {
		t.Fatalf("a field absent from the payload is not a change, got %v", changes)
	}
}

func emptyPrefetch() prefetchResult {
	return prefetchResult{
		existing:     map[string]ExistingRecord{},
		resolvedRefs: map[EntityType]map[string]string{},
	}
}
