// Package strings provides string slice utilities.
package strings

// Dedupe drops empty and repeated values, keeping the first occurrence
// order. Values are compared byte for byte; nothing is trimmed or folded.
//
// Example:
//
//	Dedupe([]string{"b", "a", "", "b"})
//	// Returns: []string{"b", "a"}
func Dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}
