package catalog

// questionBankSchema is the JSON Schema every catalog file must satisfy
// before it is decoded.
var questionBankSchema = map[string]any{
	"type":  "array",
	"items": map[string]any{
		"type": "object",
		"properties": map[string]any{
			"question_id": map[string]any{
				"type":      "string",
				"minLength": 1,
			},
			"content": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"text":          map[string]any{"type": "string"},
					"image":         map[string]any{"type": []any{"string", "null"}},
					"formula_latex": map[string]any{"type": []any{"string", "null"}},
				},
				"required": []any{"text"},
			},
			"question_type": map[string]any{"type": "string"},
			"options": map[string]any{
				"type":  []any{"array", "null"},
				"items": map[string]any{"type": "string"},
			},
			"knowledge_component": map[string]any{
				"type":      "string",
				"minLength": 1,
			},
			"difficulty_level": map[string]any{
				"type":    "integer",
				"minimum": 1,
			},
			"correct_answer": map[string]any{
				"type":      "string",
				"minLength": 1,
			},
			"hints": map[string]any{
				"type": []any{"array", "null"},
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"level": map[string]any{"type": "integer"},
						"text":  map[string]any{"type": "string"},
					},
					"required": []any{"text"},
				},
			},
		},
		"required": []any{"question_id", "knowledge_component", "difficulty_level", "correct_answer"},
	},
}
