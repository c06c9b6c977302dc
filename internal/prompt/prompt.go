// Package prompt assembles the instruction strings for the extraction
// agents. The wording leans heavily on explicit prohibitions because the
// common failure modes are picking the addressee as supplier and inventing
// invoice numbers from filenames.
package prompt

import (
	"fmt"
	"strings"

	"github.com/coachpraktijk/invoice-agents/internal/model"
)

// System instructions per agent role.
const (
	HeaderInstruction   = "You are a strict JSON extractor for invoice headers."
	LineItemInstruction = "You are a strict JSON extractor for invoice line items."
)

func hintOrNone(p *string) string {
	if p == nil || strings.TrimSpace(*p) == "" {
		return "(none)"
	}
	return *p
}

// BuildHeaderPrompt composes the header agent prompt from the raw invoice
// text and the regex-derived hints.
func BuildHeaderPrompt(rawText string, hints model.HeaderHints) string {
	var b strings.Builder

	b.WriteString("You are the 'HeaderAgent', a specialist in extracting administrative metadata from Dutch invoices.\n\n")
	b.WriteString("YOUR GOAL: Extract ONLY the header information into a JSON object. Ignore line items and hours.\n\n")

	b.WriteString("INPUT DATA:\n")
	fmt.Fprintf(&b, "- KVK Hint: %s\n", hintOrNone(hints.KvK))
	fmt.Fprintf(&b, "- VAT Hint: %s\n", hintOrNone(hints.VAT))
	fmt.Fprintf(&b, "- Date Hint: %s\n", hintOrNone(hints.InvoiceDate))
	fmt.Fprintf(&b, "- Invoice # Hint: %s\n\n", hintOrNone(hints.InvoiceNumber))

	b.WriteString("RAW TEXT:\n")
	b.WriteString(rawText)
	b.WriteString("\n\n")

	b.WriteString(`INSTRUCTIONS:
1. Extract the supplier name carefully. It is the party receiving payment.
   - Look for 't.n.v.', 'IBAN Name', 'KvK' or 'BTW' indicators.
   - CRITICAL: Do NOT select the name following 'Aan:', 'To:', 'Factuur aan:', or the address block of the invoice recipient. The entity being addressed is the Client, NOT the Supplier.

2. Extract Invoice Number, Date (YYYY-MM-DD), KVK, and VAT.
   - CRITICAL: Do NOT extract the Invoice Number from the "Source:" filename line at the top of the text.
   - CRITICAL: Do NOT guess or invent a number (like '0008') from the file name.
   - Only extract a number if it is clearly part of the invoice content (e.g. next to 'Factuurnummer', 'Ref', 'Kenmerk' or inside the text body).
   - If no clear number is found, return null.

3. Determine if this looks like a coaching invoice (isCoachingInvoice).

OUTPUT SCHEMA (JSON ONLY):
{
  "invoiceHeader": {
    "supplierName": "string | null",
    "invoiceNumber": "string | null",
    "invoiceDate": "YYYY-MM-DD | null",
    "kvkNumber": "string | null",
    "vatNumber": "string | null"
  },
  "isCoachingInvoice": boolean
}
`)

	return b.String()
}

// BuildLineItemPrompt composes the line-item agent prompt. allowedCases is
// the raw (pre-correction) allow-list so the model can recognise the exact
// glyphs that appear on the page.
func BuildLineItemPrompt(rawText string, allowedCases []string) string {
	allowedList := "(No allowed cases provided)"
	if len(allowedCases) > 0 {
		allowedList = strings.Join(allowedCases, "\n")
	}

	var b strings.Builder

	b.WriteString("You are the 'LineItemAgent', a specialist in extracting coaching sessions and hours from invoices.\n\n")
	b.WriteString("YOUR GOAL: Extract ONLY the client cases, dates, and hours. Ignore the header info (address, VAT, etc).\n\n")

	b.WriteString("CRITICAL RULE: ALLOWED CLIENT CASES\n")
	b.WriteString("You may ONLY use client case numbers from this list. If a code on the invoice is not in this list (or is a typo), do NOT include it as a valid case, or try to correct it to the nearest match in this list.\n")
	b.WriteString("--- START ALLOWED LIST ---\n")
	b.WriteString(allowedList)
	b.WriteString("\n--- END ALLOWED LIST ---\n\n")

	b.WriteString("RAW TEXT:\n")
	b.WriteString(rawText)
	b.WriteString("\n\n")

	b.WriteString(`INSTRUCTIONS:
1. Find all rows with hours/sessions.
2. Map them to the 'validatedClientCaseNumber' from the ALLOWED LIST.
3. If a date is mentioned for a line, extract it (YYYY-MM-DD).
4. Sum hours if multiple lines exist for the same case (unless separate dates are needed).
5. 'clientCasesNoActivity' are valid codes from the allowed list that appear on the invoice but have 0 hours or no cost.

OUTPUT SCHEMA (JSON ONLY):
{
  "clientCases": [
    {
      "validatedClientCaseNumber": "string (must be in allowed list)",
      "rawClientCaseNumber": "string (text as found on invoice)",
      "date": "YYYY-MM-DD | null",
      "durationHours": number | null
    }
  ],
  "clientCasesNoActivity": ["string", ...]
}
`)

	return b.String()
}

// BuildOCRRecoveryPrompt composes the tier-two self-correction prompt. It
// carries the fields already known so the model only fills the gaps from the
// OCR dump.
func BuildOCRRecoveryPrompt(ocrText string, known model.HeaderResult, missingKvK, missingVAT bool) string {
	var missing []string
	if missingKvK {
		missing = append(missing, "- KvK Number")
	}
	if missingVAT {
		missing = append(missing, "- VAT Number")
	}

	quoted := func(p *string) string {
		if p == nil {
			return "null"
		}
		return fmt.Sprintf("%q", *p)
	}

	var b strings.Builder

	b.WriteString("TASK: RECOVER MISSING DATA (SELF-CORRECTION)\n\n")
	b.WriteString("Previous attempts (Text & Regex) failed to find:\n")
	b.WriteString(strings.Join(missing, "\n"))
	b.WriteString("\n\n")

	b.WriteString("--- BEGIN OCR TEXT ---\n")
	b.WriteString(ocrText)
	b.WriteString("\n--- END OCR TEXT ---\n\n")

	b.WriteString(`INSTRUCTIONS:
1. Search the OCR text specifically for 'KvK' or 'BTW' numbers.
2. Sometimes OCR adds spaces (e.g. "84 72 61 80"). Try to reconstruct it.
3. Return the COMPLETE invoiceHeader JSON. Use existing values where possible, but fill in the blanks using the OCR text.

`)

	b.WriteString("OUTPUT SCHEMA:\n")
	fmt.Fprintf(&b, `{
  "invoiceHeader": {
    "supplierName": %s,
    "invoiceNumber": %s,
    "invoiceDate": %s,
    "kvkNumber": "string | null",
    "vatNumber": "string | null"
  },
  "isCoachingInvoice": %t
}
`, quoted(known.InvoiceHeader.SupplierName), quoted(known.InvoiceHeader.InvoiceNumber), quoted(known.InvoiceHeader.InvoiceDate), known.IsCoachingInvoice)

	return b.String()
}
