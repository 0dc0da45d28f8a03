package store

import (
	"encoding/json"
	"fmt"
	"sort"
)

// flattenAttributes implements spec.md §4.2/§9's attribute-flattening
// contract: nested maps are flattened with "_"-joined key paths, lists of
// primitives pass through unchanged, lists of maps/lists are serialized
// to JSON strings. This happens at the gateway boundary — extractors emit
// structured attributes, the gateway serializes them.
func flattenAttributes(attrs map[string]any) map[string]any {
	out := map[string]any{}
	flattenInto(out, "", attrs)
	return out
}

func flattenInto(out map[string]any, prefix string, v map[string]any) {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		val := v[k]
		key := k
		if prefix != "" {
			key = prefix + "_" + k
		}
		switch t := val.(type) {
		case map[string]any:
			flattenInto(out, key, t)
		case []any:
			if isPrimitiveList(t) {
				out[key] = t
			} else {
				out[key] = mustJSON(t)
			}
		default:
			out[key] = t
		}
	}
}

func isPrimitiveList(items []any) bool {
	for _, it := range items {
		switch it.(type) {
		case string, int, int64, float64, bool, nil:
			continue
		default:
			return false
		}
	}
	return true
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func marshalAttrs(attrs map[string]any) string {
	flat := flattenAttributes(attrs)
	b, err := json.Marshal(flat)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func unmarshalAttrs(data string) map[string]any {
	if data == "" {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return map[string]any{}
	}
	return m
}
