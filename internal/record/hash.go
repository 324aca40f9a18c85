package record

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Hash computes the record's content fingerprint: sha256 over the sorted,
// trimmed, non-empty payload fields. Field order never matters, and a field
// holding an empty string hashes the same as the field being absent, so a
// remote row with blank extra cells compares equal to its local counterpart.
func (r *Record) Hash() string {
	return HashPayload(r.Payload)
}

// HashPayload computes the content fingerprint for a raw payload mapping.
// Bookkeeping fields are ignored even if present in the map.
func HashPayload(payload map[string]string) string {
	names := make([]string, 0, len(payload))
	for name := range payload {
		if IsBookkeepingField(name) {
			continue
		}
		if strings.TrimSpace(payload[name]) == "" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	h := sha256.New()
	for _, name := range names {
		fmt.Fprintf(h, "%s=%s\n", name, strings.TrimSpace(payload[name]))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ChangedFields returns the sorted payload field names whose values differ
// between two records, for audit logging when a conflict is resolved.
func ChangedFields(a, b *Record) []string {
	names := make(map[string]bool)
	for name := range a.Payload {
		names[name] = true
	}
	for name := range b.Payload {
		names[name] = true
	}

	var changed []string
	for name := range names {
		if IsBookkeepingField(name) {
			continue
		}
		if strings.TrimSpace(a.Get(name)) != strings.TrimSpace(b.Get(name)) {
			changed = append(changed, name)
		}
	}
	sort.Strings(changed)
	return changed
}
