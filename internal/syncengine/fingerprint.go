package syncengine

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Fingerprint computes the stable content hash of an inbound record's hash
// fields. Map keys are serialized in sorted order, so two field-equivalent
// payloads hash identically regardless of key ordering in the request body.
// Internal ids, tenant ids and timestamps never feed the hash; adapters select
// the business fields before calling this.
func Fingerprint(fields map[string]any) string {
	canonical, err := json.Marshal(normalizeValue(fields))
	if err != nil {
		// Maps of JSON-decoded values always marshal; a non-JSON value that
		// slipped in still needs a deterministic representation.
		canonical = []byte(fmt.Sprintf("%v", fields))
	}
	digest := sha256.Sum256(canonical)
	return hex.EncodeToString(digest[:])
}

// normalizeValue rewrites a decoded JSON value into a shape whose Marshal
// output is canonical: map keys sorted (encoding/json already guarantees this
// for map[string]any), strings trimmed, nested structures normalized.
func normalizeValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		normalized := make(map[string]any, len(typed))
		for key, entry := range typed {
			normalized[key] = normalizeValue(entry)
		}
		return normalized
	case []any:
		normalized := make([]any, len(typed))
		for index, entry := range typed {
			normalized[index] = normalizeValue(entry)
		}
		return normalized
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return typed.String()
	default:
		return typed
	}
}

// sortedFieldNames returns the keys of a field map in stable order for
// rendering change lists.
func sortedFieldNames(fields map[string]string) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
