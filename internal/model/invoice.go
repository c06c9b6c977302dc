package model

// Verdict is the batch-level triage decision for one invoice.
type Verdict string

const (
	VerdictAccept      Verdict = "accept"
	VerdictNeedsReview Verdict = "needs_review"
	VerdictReject      Verdict = "reject"
)

// Extraction method values recorded in invoice metadata.
const (
	MethodPDFText      = "pdf_text_extraction"
	MethodGoogleVision = "google_vision_api"
	MethodFailed       = "extraction_failed"
)

// Patterns holds everything the deterministic extractors found in one
// invoice's text. Lists are deduplicated, first occurrence order.
type Patterns struct {
	ClientCases       []string               `json:"client_cases"`
	InvoiceNumbers    []string               `json:"invoice_numbers"`
	DatesRaw          []string               `json:"dates_raw"`
	Dates             []string               `json:"dates"`
	Amounts           []float64              `json:"amounts"`
	Emails            []string               `json:"emails"`
	VATNumbers        []string               `json:"vat_numbers"`
	KvKNumbers        []string               `json:"kvk_numbers"`
	ClientCaseMatches map[string]MatchResult `json:"client_case_matches,omitempty"`
}

// CaseSummary is the gatekeeper verdict over all client case matches of one
// invoice.
type CaseSummary struct {
	Verdict Verdict      `json:"verdict"`
	Reason  string       `json:"reason"`
	Counts  StatusCounts `json:"counts"`
}

// InvoiceMetadata is the per-invoice entry of invoice_metadata.json.
// Created once by the pre-processor and read-only afterwards.
type InvoiceMetadata struct {
	TextLength        int          `json:"text_length"`
	ExtractionMethod  string       `json:"extraction_method"`
	ConfidenceScore   float64      `json:"confidence_score"`
	KvK               *string      `json:"kvk"`
	VAT               *string      `json:"vat"`
	InvoiceNumber     *string      `json:"invoice_number"`
	InvoiceDate       *string      `json:"invoice_date"`
	PatternsFound     Patterns     `json:"patterns_found"`
	ClientCaseSummary *CaseSummary `json:"client_case_summary"`
	RawTextFile       string       `json:"raw_text_file"`
	TextPreview       *string      `json:"text_preview"`
	ErrorMessage      *string      `json:"error_message,omitempty"`
}

// ManifestEntry is one row of the batch manifest.
type ManifestEntry struct {
	Filename          string  `json:"filename"`
	Confidence        float64 `json:"confidence"`
	IsCoachingInvoice bool    `json:"is_coaching_invoice"`
	ClientCaseVerdict Verdict `json:"client_case_verdict"`
	ClientCaseReason  *string `json:"client_case_reason"`
	ReadyForLLM       bool    `json:"ready_for_llm"`
}

// Manifest indexes one pre-processing batch. Entries preserve the input
// filename order (lexicographic).
type Manifest struct {
	TotalInvoices   int               `json:"total_invoices"`
	ProcessingDate  string            `json:"processing_date"`
	OutputStructure map[string]string `json:"output_structure"`
	Invoices        []ManifestEntry   `json:"invoices"`
}

// HeaderHints carries the pre-processor's best guesses for the header agent
// prompt.
type HeaderHints struct {
	KvK           *string
	VAT           *string
	InvoiceNumber *string
	InvoiceDate   *string
}

// InvoiceContext is the orchestrator's input for one invoice. The two
// allow-list slices are paired positionally: AllowedCasesPrompt[i] is the raw
// form on the page, AllowedCasesValid[i] the registry form it maps to.
type InvoiceContext struct {
	Filename           string
	RawText            string
	Hints              HeaderHints
	AllowedCasesPrompt []string
	AllowedCasesValid  []string
	CorrectionMap      map[string]string
}
