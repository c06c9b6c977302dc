package patterns

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractAll(t *testing.T) {
	text := `
		Coachpraktijk De Roode
		KvK-nummer: 84726180
		BTW-id: NL863334647B01
		Factuurnummer: 2025-0042
		Factuurdatum: 14-03-2025
		Contact: administratie@praktijk.nl

		JN16-I21-284   1,5 uur   € 125,00
		JN16-121-285   2 uur     € 1.250,50
		Totaal: € 1.375,50
	`

	got := ExtractAll(text)

	assert.Equal(t, []string{"JN16-I21-284", "JN16-121-285"}, got.ClientCases)
	assert.Equal(t, []string{"2025-0042"}, got.InvoiceNumbers)
	assert.Equal(t, []string{"2025-03-14"}, got.Dates)
	assert.Equal(t, []string{"14-03-2025"}, got.DatesRaw)
	assert.Equal(t, []float64{125.0, 1250.50, 1375.50}, got.Amounts)
	assert.Equal(t, []string{"NL863334647B01"}, got.VATNumbers)
	assert.Equal(t, []string{"84726180"}, got.KvKNumbers)
	assert.Equal(t, []string{"administratie@praktijk.nl"}, got.Emails)
}

func TestExtractHeaderFields(t *testing.T) {
	text := "KvK 84726180\nBTW NL863334647B01\nFactuurnummer: F-2025-7"
	hf := ExtractHeaderFields(text)
	assert.Equal(t, "84726180", hf.KvKNumber)
	assert.Equal(t, "NL863334647B01", hf.VATNumber)
	assert.Equal(t, "F-2025-7", hf.InvoiceNumber)
}

func TestExtractHeaderFieldsReassemblesSpacedKvK(t *testing.T) {
	hf := ExtractHeaderFields("KvK 84 72 61 80\nBTW NL863334647B01")
	assert.Equal(t, "84726180", hf.KvKNumber)
	assert.Equal(t, "NL863334647B01", hf.VATNumber)
}

func TestExtractHeaderFieldsMissing(t *testing.T) {
	hf := ExtractHeaderFields("geen administratieve gegevens hier")
	assert.Empty(t, hf.KvKNumber)
	assert.Empty(t, hf.VATNumber)
	assert.Empty(t, hf.InvoiceNumber)
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"14-03-2025", "2025-03-14"},
		{"14/03/2025", "2025-03-14"},
		{"5-3-25", "2025-03-05"},
		{"2025-03-14", "2025-03-14"},
		{"2025/3/5", "2025-03-05"},
		{"14 maart 2025", "2025-03-14"},
		{"1 januari 2024", "2024-01-01"},
		{"31 februari 2024", ""}, // out of range
		{"14 march 2025", ""},    // not a Dutch month
		{"garbage", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeDate(tt.in), "input %q", tt.in)
	}
}

func TestNormalizeDateRoundTrips(t *testing.T) {
	for _, in := range []string{"14-03-2025", "1 mei 2024", "2023-12-31"} {
		iso := NormalizeDate(in)
		assert.Regexp(t, `^\d{4}-\d{2}-\d{2}$`, iso)
		assert.Equal(t, iso, NormalizeDate(iso))
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"1.250,50", 1250.50, true}, // EU grouping
		{"1,250.50", 1250.50, true}, // US grouping
		{"125,00", 125.0, true},     // comma decimal
		{"1,250", 1250.0, true},     // comma thousands (3-digit tail)
		{"125.50", 125.50, true},
		{"1 250,00", 1250.0, true},
		{"", 0, false},
		{"abc", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseAmount(tt.in)
		assert.Equal(t, tt.ok, ok, "input %q", tt.in)
		if ok {
			assert.InDelta(t, tt.want, got, 1e-9, "input %q", tt.in)
		}
	}
}

func TestNormalizeVAT(t *testing.T) {
	norm, kind, ok := NormalizeVAT("NL 8633.34.647.B01")
	assert.True(t, ok)
	assert.Equal(t, "NL863334647B01", norm)
	assert.Equal(t, "nl", kind)

	// Label fragments are stripped.
	norm, kind, ok = NormalizeVAT("BTW NL863334647B01")
	assert.True(t, ok)
	assert.Equal(t, "NL863334647B01", norm)
	assert.Equal(t, "nl", kind)

	norm, kind, ok = NormalizeVAT("DE123456789")
	assert.True(t, ok)
	assert.Equal(t, "DE123456789", norm)
	assert.Equal(t, "eu", kind)

	_, _, ok = NormalizeVAT("not-a-vat")
	assert.False(t, ok)
}

func TestNormalizeVATIdempotent(t *testing.T) {
	norm, _, ok := NormalizeVAT("NL863334647B01")
	assert.True(t, ok)
	again, _, ok := NormalizeVAT(norm)
	assert.True(t, ok)
	assert.Equal(t, norm, again)
}
