// Package pdftext extracts the text layer from PDF invoices. The primary
// engine is an in-process PDF reader; when it yields too little text the
// extractor falls back to the pdftotext binary.
package pdftext

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"
)

// minTextChars is the minimum amount of non-whitespace text the primary
// engine must produce before we trust it.
const minTextChars = 50

type Extractor struct {
	pdftotext string
	runner    Runner
	logger    *slog.Logger
}

// NewExtractor builds an Extractor. pdftotext may be a bare binary name or an
// absolute path; empty defaults to "pdftotext".
func NewExtractor(pdftotext string, logger *slog.Logger) *Extractor {
	if pdftotext == "" {
		pdftotext = "pdftotext"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{pdftotext: pdftotext, runner: execRunner{}, logger: logger}
}

// Extract pulls the text layer out of the PDF at path, inserting
// "--- Page N ---" markers between pages. ok reports whether enough
// non-whitespace text was recovered; failure is non-fatal and returns
// ("", false).
func (e *Extractor) Extract(ctx context.Context, path string) (text string, ok bool) {
	text, ok, err := e.textLayer(path)
	if err != nil {
		e.logger.Warn("pdftext.primary_failed", "path", path, "error", err)
	}
	if ok {
		e.logger.Debug("pdftext.primary_ok", "path", path, "chars", len(text))
		return text, true
	}

	fbText, fbOK, err := e.pdftotextFallback(ctx, path)
	if err != nil {
		e.logger.Warn("pdftext.fallback_failed", "path", path, "error", err)
	}
	if fbOK {
		e.logger.Debug("pdftext.fallback_ok", "path", path, "chars", len(fbText))
		return fbText, true
	}

	// Keep whatever partial text the engines produced; the caller decides
	// what an empty extraction means.
	if text == "" {
		text = fbText
	}
	return text, false
}

// textLayer reads the PDF with the in-process engine. Malformed files can
// make the reader panic, so this is fenced with a recover.
func (e *Extractor) textLayer(path string) (text string, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, ok = "", false
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", false, fmt.Errorf("open pdf: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			e.logger.Warn("pdftext.close_error", "path", path, "error", cerr)
		}
	}()

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, perr := page.GetPlainText(nil)
		if perr != nil {
			e.logger.Warn("pdftext.page_failed", "path", path, "page", i, "error", perr)
			continue
		}
		if strings.TrimSpace(content) == "" {
			continue
		}
		fmt.Fprintf(&b, "\n--- Page %d ---\n%s\n", i, content)
	}
	text = b.String()
	return text, len(strings.TrimSpace(text)) > minTextChars, nil
}

// pdftotextFallback shells out to pdftotext, which separates pages with
// form feeds; those are rewritten into the same page markers.
func (e *Extractor) pdftotextFallback(ctx context.Context, path string) (string, bool, error) {
	out, errb, err := e.runner.Run(ctx, e.pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", false, fmt.Errorf("pdftotext: %w (%s)", err, strings.TrimSpace(string(errb)))
	}

	var b strings.Builder
	for i, page := range strings.Split(string(out), "\f") {
		if strings.TrimSpace(page) == "" {
			continue
		}
		fmt.Fprintf(&b, "\n--- Page %d ---\n%s\n", i+1, page)
	}
	text := b.String()
	return text, len(strings.TrimSpace(text)) > minTextChars, nil
}
