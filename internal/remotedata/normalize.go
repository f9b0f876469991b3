package remotedata

import (
	"encoding/json"
	"fmt"
)

// itemKeys are the payload keys checked for the item list, in priority order.
var itemKeys = []string{"items", "data", "results"}

// Normalize turns a raw data-endpoint payload into a uniform object shape.
// A top-level array is wrapped under "items"; an object passes through
// unchanged. Anything else is a malformed payload.
func Normalize(raw json.RawMessage) (map[string]any, error) {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode data payload: %w", err)
	}

	switch v := decoded.(type) {
	case []any:
		return map[string]any{"items": v}, nil
	case map[string]any:
		return v, nil
	default:
		return nil, fmt.Errorf("unexpected payload shape %T", decoded)
	}
}

// ExtractItems pulls the row list out of a normalized payload, checking
// "items", "data" and "results" in that order. A payload with none of those
// keys is treated as a single item.
func ExtractItems(payload map[string]any) []map[string]any {
	for _, key := range itemKeys {
		list, ok := payload[key].([]any)
		if !ok {
			continue
		}
		items := make([]map[string]any, 0, len(list))
		for _, elem := range list {
			if row, ok := elem.(map[string]any); ok {
				items = append(items, row)
				continue
			}
			// Scalar rows keep server order under a canonical key.
			items = append(items, map[string]any{"value": elem})
		}
		return items
	}
	return []map[string]any{payload}
}

// applyFieldMapping renames row fields according to the screen's field
// mapping. Unmapped fields pass through untouched; rows are copied so cached
// payloads stay pristine.
func applyFieldMapping(items []map[string]any, mapping map[string]string) []map[string]any {
	if len(mapping) == 0 {
		return items
	}
	mapped := make([]map[string]any, len(items))
	for i, row := range items {
		out := make(map[string]any, len(row))
		for field, value := range row {
			if renamed, ok := mapping[field]; ok {
				out[renamed] = value
				continue
			}
			out[field] = value
		}
		mapped[i] = out
	}
	return mapped
}
