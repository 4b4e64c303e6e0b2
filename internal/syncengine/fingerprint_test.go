package syncengine

import "testing"

func TestFingerprintIgnoresKeyOrder(t *testing.T) {
	first := Fingerprint(map[string]any{
		"job_number": "J-100",
		"customer":   "Acme",
		"quantity":   float64(5),
	})
	second := Fingerprint(map[string]any{
		"quantity":   float64(5),
		"customer":   "Acme",
		"job_number": "J-100",
	})
	if first != second {
		t.Fatalf("expected identical fingerprints, got %s and %s", first, second)
	}
}

func TestFingerprintIgnoresIncidentalWhitespace(t *testing.T) {
	first := Fingerprint(map[string]any{"customer": "Acme"})
	second := Fingerprint(map[string]any{"customer": "  Acme  "})
	if first != second {
		t.Fatalf("expected whitespace-trimmed values to hash identically")
	}
}

func TestFingerprintChangesWithAnyFieldValue(t *testing.T) {
	base := Fingerprint(map[string]any{"job_number": "J-100", "customer": "Acme"})
	changed := Fingerprint(map[string]any{"job_number": "J-100", "customer": "Acme Corp"})
	if base == changed {
		t.Fatalf("expected differing field values to change the fingerprint")
	}
}

func TestFingerprintCoversNestedStructures(t *testing.T) {
	base := Fingerprint(map[string]any{
		"job_number": "J-100",
		"metadata":   map[string]any{"rev": "A", "tags": []any{"rush"}},
	})
	reordered := Fingerprint(map[string]any{
		"metadata":   map[string]any{"tags": []any{"rush"}, "rev": "A"},
		"job_number": "J-100",
	})
	if base != reordered {
		t.Fatalf("expected nested key order to be irrelevant")
	}

	changed := Fingerprint(map[string]any{
		"job_number": "J-100",
		"metadata":   map[string]any{"rev": "B", "tags": []any{"rush"}},
	})
	if base == changed {
		t.Fatalf("expected nested value change to change the fingerprint")
	}
}

func TestFingerprintDistinguishesSliceOrder(t *testing.T) {
	first := Fingerprint(map[string]any{"tags": []any{"a", "b"}})
	second := Fingerprint(map[string]any{"tags": []any{"b", "a"}})
	if first == second {
		t.Fatalf("slice element order is semantically relevant and must affect the hash")
	}
}
