// Package patterns is the shared library of compiled regular expressions for
// deterministic extraction of dates, amounts and administrative identifiers
// from invoice text. It is used by both the batch pre-processor and the
// orchestrator's Tier 1 self-correction stage.
package patterns

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/coachpraktijk/invoice-agents/internal/model"
)

var (
	// Permissive on letter-vs-digit so OCR-mangled codes survive to the
	// registry matcher.
	clientCaseRe = regexp.MustCompile(`(?i)\b([A-Z0-9]{2}\d{1,2}-[A-Z0-9]\d{2}-\d{3})\b`)

	invoiceNumberRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:factuurnummer|factuur ?nr\.?|invoice.?number)\b[:\s]+([A-Z0-9./-]+)`),
		regexp.MustCompile(`(?i)Factuurnummer:\s*\n(?:.*\n)?\s*([0-9]{3,})`),
		regexp.MustCompile(`(?i)\bBetreft:\s*facturen?\s+(\d{3,})`),
		regexp.MustCompile(`(?i)\b(?:ref|reference)\b[:\s#-]*([A-Z0-9./-]+)`),
		regexp.MustCompile(`(?i)\bFact\.:\s*([A-Z0-9._-]+)`),
	}

	dateRes = []*regexp.Regexp{
		regexp.MustCompile(`\b(\d{1,2}[-/]\d{1,2}[-/]\d{2,4})\b`),
		regexp.MustCompile(`\b(\d{1,2}\s+\w+\s+\d{4})\b`),
		regexp.MustCompile(`\b(\d{4}[-/]\d{1,2}[-/]\d{1,2})\b`),
	}

	amountRes = []*regexp.Regexp{
		regexp.MustCompile(`€\s*([\d.,]+)`),
		regexp.MustCompile(`EUR\s*([\d.,]+)`),
		regexp.MustCompile(`\$\s*([\d.,]+)`),
		regexp.MustCompile(`(?i)(?:total|totaal|amount|bedrag)[:\s]*(?:€|\$|EUR)?\s*([\d.,]+)`),
	}

	emailRe = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

	vatRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(NL\s*(?:\d[.\s]?){9}B\.?\s*\d{2})\b`),
		regexp.MustCompile(`(?i)\b(?:btw|omzetbelastingnummer|ob-nummer|ob nummer)\b.*?(\d{9}\s*B\s*\d{2})`),
		regexp.MustCompile(`(?i)(?:btw(?:-id)?|btw ?nr\.?|vat(?: ?id)?|tax(?: ?id)?)[:\s#-]*([A-Z0-9.\-]+)`),
	}

	// Digit groups may be split by single spaces or dots, a common OCR
	// artifact ("84 72 61 80"); separators are stripped afterwards.
	kvkRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bkvk(?:[-\s]?nummer|nr\.?)?(?:\s+\w+)?[:\s#-]*((?:\d[ .]?){6,7}\d)`),
		regexp.MustCompile(`(?i)kvk.*?(\d{8})`),
	}

	nonDigitRe = regexp.MustCompile(`\D`)

	vatNLCanonRe   = regexp.MustCompile(`(?i)^NL\d{9}B\d{2}$`)
	vatEUGenericRe = regexp.MustCompile(`^[A-Z]{2}\d{8,12}$`)
	vatSepRe       = regexp.MustCompile(`[\s.\-]`)
	vatLabelRe     = regexp.MustCompile(`^(BTWID|BTWNR|BTW|VATID|VATNR|VAT|TAXID|TAXNR|TAX)`)

	monthNameDateRe = regexp.MustCompile(`^\s*(\d{1,2})\s+([A-Za-z]+)\s+(\d{4})\s*$`)
)

// monthsNL maps Dutch month names to their number.
var monthsNL = map[string]time.Month{
	"januari": time.January, "februari": time.February, "maart": time.March,
	"april": time.April, "mei": time.May, "juni": time.June,
	"juli": time.July, "augustus": time.August, "september": time.September,
	"oktober": time.October, "november": time.November, "december": time.December,
}

// Non-padded layouts also accept zero-padded input.
var numericDateLayouts = []string{
	"2-1-2006", "2/1/2006", "2-1-06", "2/1/06", "2006-1-2", "2006/1/2",
}

// HeaderFields is the targeted output of ExtractHeaderFields. Empty string
// means not found.
type HeaderFields struct {
	KvKNumber     string
	VATNumber     string
	InvoiceNumber string
}

// ExtractAll runs every pattern group against text and returns the
// normalised findings.
func ExtractAll(text string) model.Patterns {
	rawDates := dedupe(findAll(dateRes, text))
	return model.Patterns{
		ClientCases:    dedupe(findAll([]*regexp.Regexp{clientCaseRe}, text)),
		InvoiceNumbers: dedupe(findAll(invoiceNumberRes, text)),
		DatesRaw:       rawDates,
		Dates:          normalizeDates(rawDates),
		Amounts:        parseAmounts(findAll(amountRes, text)),
		Emails:         dedupe(emailRe.FindAllString(text, -1)),
		VATNumbers:     parseVATs(findAll(vatRes, text)),
		KvKNumbers:     normalizeKvKs(findAll(kvkRes, text)),
	}
}

// ExtractHeaderFields is the orchestrator's Tier 1 fallback: the best guess
// for the critical header fields only.
func ExtractHeaderFields(text string) HeaderFields {
	all := ExtractAll(text)
	var hf HeaderFields
	if len(all.KvKNumbers) > 0 {
		hf.KvKNumber = all.KvKNumbers[0]
	}
	if len(all.VATNumbers) > 0 {
		hf.VATNumber = all.VATNumbers[0]
	}
	if len(all.InvoiceNumbers) > 0 {
		hf.InvoiceNumber = all.InvoiceNumbers[0]
	}
	return hf
}

// NormalizeVAT strips separators and label fragments and checks the result
// against the Dutch canonical and generic EU shapes. The second return value
// is "nl" or "eu"; ok is false when the cleaned value matches neither.
func NormalizeVAT(raw string) (normalized, kind string, ok bool) {
	if raw == "" {
		return "", "", false
	}
	cleaned := vatSepRe.ReplaceAllString(strings.ToUpper(raw), "")
	cleaned = vatLabelRe.ReplaceAllString(cleaned, "")
	if vatNLCanonRe.MatchString(cleaned) {
		return "NL" + cleaned[2:11] + "B" + cleaned[len(cleaned)-2:], "nl", true
	}
	if vatEUGenericRe.MatchString(cleaned) {
		return cleaned, "eu", true
	}
	return "", "", false
}

// NormalizeDate converts the supported date formats to ISO 8601
// (YYYY-MM-DD). Returns "" for unparseable input.
func NormalizeDate(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	for _, layout := range numericDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	if m := monthNameDateRe.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		year, _ := strconv.Atoi(m[3])
		month, known := monthsNL[strings.ToLower(m[2])]
		if known {
			t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
			// time.Date normalizes out-of-range days; reject those.
			if t.Day() == day && t.Month() == month && t.Year() == year {
				return t.Format("2006-01-02")
			}
		}
	}
	return ""
}

// ParseAmount converts a currency string in EU or US notation to a float.
// When both ',' and '.' are present the rightmost is the decimal separator;
// a lone ',' is decimal iff followed by exactly two digits.
func ParseAmount(raw string) (float64, bool) {
	clean := strings.ReplaceAll(raw, " ", "")
	if clean == "" {
		return 0, false
	}
	hasComma := strings.Contains(clean, ",")
	hasDot := strings.Contains(clean, ".")
	switch {
	case hasComma && hasDot:
		if strings.LastIndex(clean, ",") > strings.LastIndex(clean, ".") {
			clean = strings.ReplaceAll(clean, ".", "")
			clean = strings.ReplaceAll(clean, ",", ".")
		} else {
			clean = strings.ReplaceAll(clean, ",", "")
		}
	case hasComma:
		parts := strings.SplitN(clean, ",", 2)
		if len(parts) == 2 && len(parts[1]) == 2 {
			clean = strings.ReplaceAll(clean, ",", ".")
		} else {
			clean = strings.ReplaceAll(clean, ",", "")
		}
	}
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func findAll(res []*regexp.Regexp, text string) []string {
	var out []string
	for _, re := range res {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if len(m) > 1 {
				out = append(out, m[1])
			} else {
				out = append(out, m[0])
			}
		}
	}
	return out
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func normalizeDates(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, d := range raw {
		iso := NormalizeDate(d)
		if iso == "" {
			continue
		}
		if _, dup := seen[iso]; dup {
			continue
		}
		seen[iso] = struct{}{}
		out = append(out, iso)
	}
	return out
}

func parseAmounts(raw []string) []float64 {
	seen := make(map[float64]struct{}, len(raw))
	out := make([]float64, 0, len(raw))
	for _, a := range raw {
		v, ok := ParseAmount(a)
		if !ok {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func normalizeKvKs(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		digits := nonDigitRe.ReplaceAllString(r, "")
		if len(digits) < 7 || len(digits) > 8 {
			continue
		}
		if _, dup := seen[digits]; dup {
			continue
		}
		seen[digits] = struct{}{}
		out = append(out, digits)
	}
	return out
}

func parseVATs(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		norm, _, ok := NormalizeVAT(r)
		if !ok {
			continue
		}
		if _, dup := seen[norm]; dup {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, norm)
	}
	return out
}
