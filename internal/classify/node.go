package classify

import "sort"

// IsContainer reports whether v is a JSON object or array
func IsContainer(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	default:
		return false
	}
}

// SortedKeys returns the keys of obj in ascending order. Decoded objects
// carry no key order, so both walkers visit keys in this order to stay
// deterministic and comparable with each other.
func SortedKeys(obj map[string]any) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
