package model

// InvoiceHeader holds the administrative header fields. Pointers so that
// missing fields serialise as JSON null, matching the agent output schema.
type InvoiceHeader struct {
	SupplierName  *string `json:"supplierName"`
	InvoiceNumber *string `json:"invoiceNumber"`
	InvoiceDate   *string `json:"invoiceDate"`
	KvKNumber     *string `json:"kvkNumber"`
	VATNumber     *string `json:"vatNumber"`
}

// ClientCase is one coaching-session line item.
type ClientCase struct {
	ValidatedClientCaseNumber string   `json:"validatedClientCaseNumber"`
	RawClientCaseNumber       *string  `json:"rawClientCaseNumber"`
	Date                      *string  `json:"date"`
	DurationHours             *float64 `json:"durationHours"`
}

// HeaderResult is the header agent's partial output.
type HeaderResult struct {
	InvoiceHeader     InvoiceHeader `json:"invoiceHeader"`
	IsCoachingInvoice bool          `json:"isCoachingInvoice"`
}

// LineItemsResult is the line-item agent's partial output.
type LineItemsResult struct {
	ClientCases           []ClientCase `json:"clientCases"`
	ClientCasesNoActivity []string     `json:"clientCasesNoActivity"`
}

// InvoiceResult is the final validated record written to
// json_out_multi_agent/<name>_parsed.json.
type InvoiceResult struct {
	InvoiceHeader         InvoiceHeader `json:"invoiceHeader"`
	IsCoachingInvoice     bool          `json:"isCoachingInvoice"`
	ClientCases           []ClientCase  `json:"clientCases"`
	ClientCasesNoActivity []string      `json:"clientCasesNoActivity"`
}

// StrPtr returns a pointer to s, or nil when s is empty. Convenience for the
// nullable JSON fields above.
func StrPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// StrOrEmpty dereferences p, mapping nil to "".
func StrOrEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
