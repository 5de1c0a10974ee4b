package sanitize

import (
	"encoding/json"
	"maps"
	"slices"
)

// JSONData sanitizes a decoded JSON value tree (as produced by
// encoding/json into `any`). Strings go through Text, numbers through Number,
// booleans and null pass through, containers are rebuilt recursively. Object
// keys are sanitized too; entries whose key sanitizes to "" are dropped.
// Values outside the JSON data model degrade to nil.
//
// JSONData is idempotent: JSONData(JSONData(v)) equals JSONData(v).
func JSONData(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return cleanText(x)
	case bool:
		return x
	case float64, float32, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, json.Number:
		return Number(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = JSONData(e)
		}
		return out
	case []string:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = cleanText(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		// Sorted so that keys colliding after sanitization resolve deterministically.
		for _, k := range slices.Sorted(maps.Keys(x)) {
			sk := cleanText(k)
			if sk == "" {
				continue
			}
			out[sk] = JSONData(x[k])
		}
		return out
	default:
		return nil
	}
}
