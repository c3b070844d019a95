package services

import (
	"encoding/json"
	"math"
	"sort"
	"strings"
)

// ReservedFieldPrefix marks metadata keys that are never written into health data.
const ReservedFieldPrefix = "$"

// FilterHealthData splits an update into the fields to apply and the sorted
// keys that were skipped (reserved prefix or falsy value).
func FilterHealthData(update map[string]any) (map[string]any, []string) {
	applied := make(map[string]any, len(update))
	skipped := make([]string, 0)
	for key, value := range update {
		if strings.HasPrefix(key, ReservedFieldPrefix) || isFalsy(value) {
			skipped = append(skipped, key)
			continue
		}
		applied[key] = value
	}
	sort.Strings(skipped)
	return applied, skipped
}

func isFalsy(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case bool:
		return !v
	case string:
		return v == ""
	case float64:
		return v == 0 || math.IsNaN(v)
	case float32:
		return v == 0 || math.IsNaN(float64(v))
	case int:
		return v == 0
	case int8:
		return v == 0
	case int16:
		return v == 0
	case int32:
		return v == 0
	case int64:
		return v == 0
	case uint:
		return v == 0
	case uint8:
		return v == 0
	case uint16:
		return v == 0
	case uint32:
		return v == 0
	case uint64:
		return v == 0
	case uintptr:
		return v == 0
	case json.Number:
		f, err := v.Float64()
		return err == nil && (f == 0 || math.IsNaN(f))
	default:
		return false
	}
}
