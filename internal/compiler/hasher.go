package compiler

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
)

// HashDocument computes the content-hash version of a policy document.
// The YAML tree is canonicalized (sorted keys, normalized scalar types)
// before hashing so formatting and key order do not change the version.
func HashDocument(tree any) (string, error) {
	canonical, err := CanonicalizeJSON(tree)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize policy document: %w", err)
	}
	hash := sha256.Sum256(canonical)
	return fmt.Sprintf("sha256:%x", hash), nil
}

// HashString sha256
func HashString(s string) string {
	hash := sha256.Sum256([]byte(s))
	return fmt.Sprintf("sha256:%x", hash)
}

// CanonicalizeJSON renders a decoded YAML/JSON tree as canonical JSON:
// object keys sorted, yaml map types normalized.
func CanonicalizeJSON(v any) ([]byte, error) {
	return json.Marshal(canonicalizeValue(v))
}

func canonicalizeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return canonicalizeMap(val)
	case map[any]any:
		// yaml.v3 produces map[string]any for mappings with string keys,
		// but non-string keys still decode to map[any]any
		m := make(map[string]any, len(val))
		for k, item := range val {
			m[fmt.Sprintf("%v", k)] = item
		}
		return canonicalizeMap(m)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = canonicalizeValue(item)
		}
		return out
	default:
		return val
	}
}

func canonicalizeMap(m map[string]any) any {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// json.Marshal sorts map keys itself, but canonicalize nested values
	// explicitly so the behavior does not depend on encoder internals
	out := make(map[string]any, len(m))
	for _, k := range keys {
		out[k] = canonicalizeValue(m[k])
	}
	return out
}
