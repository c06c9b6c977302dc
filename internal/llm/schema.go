package llm

// BuildHeaderSchema returns the JSON-Schema the header agent's reply must
// satisfy, as a generic map. Fields the model cannot find stay null rather
// than being omitted, so every key is required.
func BuildHeaderSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"invoiceHeader": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"supplierName":  nullableString(),
					"invoiceNumber": nullableString(),
					"invoiceDate":   nullableStringPattern(`^\d{4}-\d{2}-\d{2}$`),
					"kvkNumber":     nullableString(),
					"vatNumber":     nullableString(),
				},
				"required": []string{"supplierName", "invoiceNumber", "invoiceDate", "kvkNumber", "vatNumber"},
			},
			"isCoachingInvoice": map[string]any{"type": "boolean"},
		},
		"required": []string{"invoiceHeader", "isCoachingInvoice"},
	}
}

// BuildLineItemsSchema returns the schema for the line-item agent's reply.
func BuildLineItemsSchema() map[string]any {
	caseRow := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"validatedClientCaseNumber": map[string]any{"type": "string", "minLength": 1},
			"rawClientCaseNumber":       nullableString(),
			"date":                      nullableStringPattern(`^\d{4}-\d{2}-\d{2}$`),
			"durationHours":             map[string]any{"type": []string{"number", "null"}},
		},
		"required": []string{"validatedClientCaseNumber", "date", "durationHours"},
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"clientCases": map[string]any{
				"type":  "array",
				"items": caseRow,
			},
			"clientCasesNoActivity": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
		"required": []string{"clientCases", "clientCasesNoActivity"},
	}
}

func nullableString() map[string]any {
	return map[string]any{"type": []string{"string", "null"}}
}

func nullableStringPattern(pattern string) map[string]any {
	return map[string]any{
		"type":    []string{"string", "null"},
		"pattern": pattern,
	}
}
