package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/coachpraktijk/invoice-agents/internal/model"
)

func TestBuildHeaderPromptCarriesHintsAndWarnings(t *testing.T) {
	hints := model.HeaderHints{
		KvK:           model.StrPtr("84726180"),
		VAT:           model.StrPtr("NL863334647B01"),
		InvoiceNumber: model.StrPtr("2025-014"),
	}
	p := BuildHeaderPrompt("Factuur van Praktijk Jansen", hints)

	assert.Contains(t, p, "KVK Hint: 84726180")
	assert.Contains(t, p, "VAT Hint: NL863334647B01")
	assert.Contains(t, p, "Invoice # Hint: 2025-014")
	assert.Contains(t, p, "Date Hint: (none)")
	assert.Contains(t, p, "Factuur van Praktijk Jansen")

	// Supplier vs addressee and filename prohibitions must stay verbatim.
	assert.Contains(t, p, "t.n.v.")
	assert.Contains(t, p, "The entity being addressed is the Client, NOT the Supplier.")
	assert.Contains(t, p, `Do NOT extract the Invoice Number from the "Source:" filename line`)
	assert.Contains(t, p, "YYYY-MM-DD")
	assert.Contains(t, p, "isCoachingInvoice")
}

func TestBuildLineItemPromptEmbedsAllowList(t *testing.T) {
	p := BuildLineItemPrompt("sessie 1,5 uur", []string{"1N16-121-284", "ON16-093-110"})

	assert.Contains(t, p, "--- START ALLOWED LIST ---\n1N16-121-284\nON16-093-110\n--- END ALLOWED LIST ---")
	assert.Contains(t, p, "ONLY use client case numbers from this list")
	assert.Contains(t, p, "clientCasesNoActivity")
	assert.Contains(t, p, "durationHours")
}

func TestBuildLineItemPromptWithoutAllowList(t *testing.T) {
	p := BuildLineItemPrompt("sessie", nil)

	assert.Contains(t, p, "(No allowed cases provided)")
}

func TestBuildOCRRecoveryPromptPreservesKnownFields(t *testing.T) {
	known := model.HeaderResult{
		InvoiceHeader: model.InvoiceHeader{
			SupplierName: model.StrPtr("Praktijk Jansen"),
			InvoiceDate:  model.StrPtr("2025-03-01"),
		},
		IsCoachingInvoice: true,
	}
	p := BuildOCRRecoveryPrompt("KvK 84 72 61 80", known, true, false)

	assert.Contains(t, p, "- KvK Number")
	assert.NotContains(t, p, "- VAT Number")
	assert.Contains(t, p, "--- BEGIN OCR TEXT ---\nKvK 84 72 61 80\n--- END OCR TEXT ---")
	assert.Contains(t, p, `"supplierName": "Praktijk Jansen"`)
	assert.Contains(t, p, `"invoiceNumber": null`)
	assert.Contains(t, p, `"invoiceDate": "2025-03-01"`)
	assert.Contains(t, p, `"isCoachingInvoice": true`)
	assert.Contains(t, p, "84 72 61 80")
}
