package enums

import (
	"fmt"
	"slices"
)

// parseOneOf matches raw exactly against set; enum values are stored
// lowercase so callers normalize first when input is user supplied.
func parseOneOf[T ~string](set []T, raw, kind string) (T, error) {
	if v := T(raw); slices.Contains(set, v) {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, raw)
}
