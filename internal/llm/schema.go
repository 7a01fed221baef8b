package llm

// PrepareSchema normalizes a caller-supplied JSON schema for strict
// structured output: every object forbids extra properties and requires
// all of its declared ones, defaults are stripped, and a bare top-level
// array is wrapped in an object so providers that demand an object root
// still work. The input is never mutated; wrapped reports whether
// UnwrapResult must be applied to the extraction output.
func PrepareSchema(schema map[string]any) (prepared map[string]any, wrapped bool) {
	if schema == nil {
		return nil, false
	}

	cloned := cloneValue(schema).(map[string]any)

	if t, _ := cloned["type"].(string); t == "array" {
		cloned = map[string]any{
			"type":       "object",
			"properties": map[string]any{"items": cloned},
			"required":   []any{"items"},
		}
		wrapped = true
	}

	normalizeSchema(cloned)
	return cloned, wrapped
}

// UnwrapResult undoes the array wrapping applied by PrepareSchema.
func UnwrapResult(data any, wrapped bool) any {
	if !wrapped {
		return data
	}
	if obj, ok := data.(map[string]any); ok {
		if items, ok := obj["items"]; ok {
			return items
		}
	}
	return data
}

// normalizeSchema walks the schema tree in place (on the clone).
func normalizeSchema(node map[string]any) {
	delete(node, "default")

	if t, _ := node["type"].(string); t == "object" {
		node["additionalProperties"] = false
		if props, ok := node["properties"].(map[string]any); ok {
			required := make([]any, 0, len(props))
			for name, sub := range props {
				required = append(required, name)
				if subSchema, ok := sub.(map[string]any); ok {
					normalizeSchema(subSchema)
				}
			}
			node["required"] = required
		}
	}

	if items, ok := node["items"].(map[string]any); ok {
		normalizeSchema(items)
	}
	for _, key := range []string{"anyOf", "oneOf", "allOf"} {
		if variants, ok := node[key].([]any); ok {
			for _, v := range variants {
				if sub, ok := v.(map[string]any); ok {
					normalizeSchema(sub)
				}
			}
		}
	}
	if defs, ok := node["$defs"].(map[string]any); ok {
		for _, v := range defs {
			if sub, ok := v.(map[string]any); ok {
				normalizeSchema(sub)
			}
		}
	}
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, sub := range val {
			out[k] = cloneValue(sub)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, sub := range val {
			out[i] = cloneValue(sub)
		}
		return out
	default:
		return v
	}
}
