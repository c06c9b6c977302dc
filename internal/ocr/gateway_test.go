package ocr

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReturnsMockWithoutAPIKey(t *testing.T) {
	g := New(Config{}, slog.Default())

	_, ok := g.(MockGateway)
	assert.True(t, ok)
	assert.Equal(t, MockText, g.OCRFirstPage(context.Background(), "whatever.pdf"))
}

func TestNewReturnsVisionGatewayWithAPIKey(t *testing.T) {
	g := New(Config{APIKey: "test-key"}, slog.Default())

	_, ok := g.(*VisionGateway)
	assert.True(t, ok)
}

func TestMockTextCarriesHeaderFields(t *testing.T) {
	// The downstream regex recovery tier must be able to find these.
	assert.Contains(t, MockText, "84726180")
	assert.Contains(t, MockText, "NL863334647B01")
}

func TestOCRFirstPageReturnsEmptyOnBadPDF(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "broken.pdf")
	require.NoError(t, os.WriteFile(bad, []byte("not a pdf"), 0o644))

	g := NewVisionGateway(Config{APIKey: "test-key"}, slog.Default())

	assert.Equal(t, "", g.OCRFirstPage(context.Background(), bad))
}

func TestAnnotateParsesFullTextAnnotation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		var req annotateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Requests, 1)
		assert.Equal(t, "DOCUMENT_TEXT_DETECTION", req.Requests[0].Features[0].Type)

		resp := annotateResponse{Responses: []visionResult{{
			FullTextAnnotation: visionAnnotation{Text: "KvK nummer: 84726180"},
		}}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	g := NewVisionGateway(Config{APIKey: "test-key", Endpoint: srv.URL}, slog.Default())

	text, err := g.annotate(context.Background(), []byte("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "KvK nummer: 84726180", text)
}

func TestAnnotateReportsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"responses":[{"error":{"code":7,"message":"permission denied"}}]}`))
	}))
	defer srv.Close()

	g := NewVisionGateway(Config{APIKey: "test-key", Endpoint: srv.URL}, slog.Default())

	_, err := g.annotate(context.Background(), []byte("png-bytes"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
}

func TestAnnotateReportsHTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	g := NewVisionGateway(Config{APIKey: "test-key", Endpoint: srv.URL}, slog.Default())

	_, err := g.annotate(context.Background(), []byte("png-bytes"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}
