package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"go.uber.org/zap"

	"github.com/trainguard/img-sentinel/internal/config"
	"github.com/trainguard/img-sentinel/internal/corpus"
	"github.com/trainguard/img-sentinel/internal/fusion"
	"github.com/trainguard/img-sentinel/internal/logger"
	"github.com/trainguard/img-sentinel/internal/pipeline"
)

type stubExtractor struct {
	embedding []float32
	err       error
}

func (s *stubExtractor) Extract(ctx context.Context, data []byte) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.embedding, nil
}

type stubMetadata struct {
	evidence fusion.MetadataEvidence
}

func (s *stubMetadata) Analyze(data []byte, filename string) (fusion.MetadataEvidence, error) {
	return s.evidence, nil
}

type stubClassifier struct {
	evidence *fusion.DetectionEvidence
}

func (s *stubClassifier) Classify(ctx context.Context, data []byte) (*fusion.DetectionEvidence, error) {
	return s.evidence, nil
}

func testLogger() *logger.Logger {
	return &logger.Logger{Logger: zap.NewNop()}
}

func newTestServer(t *testing.T, mutate func(*config.Config), extractor pipeline.FeatureExtractor) *Server {
	t.Helper()

	cfg := config.GetDefaults()
	cfg.RateLimit.Enabled = false
	cfg.Metrics.Enabled = false
	if mutate != nil {
		mutate(cfg)
	}

	index, err := corpus.NewIndex(
		[][]float32{{1, 0, 0}, {0, 1, 0}},
		[]corpus.EntryMeta{
			{ID: "ref-1", Source: "test", Generator: "midjourney"},
			{ID: "ref-2", Source: "test", Generator: "dalle"},
		},
		0.85,
		zap.NewNop(),
	)
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}

	if extractor == nil {
		extractor = &stubExtractor{embedding: []float32{1, 0, 0}}
	}

	orchestrator := pipeline.New(
		index,
		extractor,
		&stubMetadata{},
		&stubClassifier{evidence: &fusion.DetectionEvidence{
			ModelName:     "test-detector",
			IsAIGenerated: true,
			Confidence:    0.9,
		}},
		fusion.New(fusion.DefaultConfig(), zap.NewNop()),
		zap.NewNop(),
	)

	return New(cfg, testLogger(), orchestrator, index)
}

type uploadPart struct {
	field       string
	filename    string
	contentType string
	data        []byte
}

func multipartBody(t *testing.T, parts []uploadPart) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, p := range parts {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name=%q; filename=%q`, p.field, p.filename))
		header.Set("Content-Type", p.contentType)
		part, err := writer.CreatePart(header)
		if err != nil {
			t.Fatalf("CreatePart: %v", err)
		}
		if _, err := part.Write(p.data); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, nil, nil)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", body["status"])
	}
}

func TestInfoEndpoint(t *testing.T) {
	s := newTestServer(t, nil, nil)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/info", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := body["corpus_entries"].(float64); got != 2 {
		t.Errorf("corpus_entries = %v, want 2", got)
	}
	if got := body["corpus_dimensions"].(float64); got != 3 {
		t.Errorf("corpus_dimensions = %v, want 3", got)
	}
}

func TestAnalyzeHappyPath(t *testing.T) {
	s := newTestServer(t, nil, nil)

	body, contentType := multipartBody(t, []uploadPart{
		{field: "file", filename: "sample.png", contentType: "image/png", data: []byte("png bytes")},
	})
	req := httptest.NewRequest("POST", "/api/v1/analyze", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID response header")
	}

	var result pipeline.AnalysisResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if result.Filename != "sample.png" {
		t.Errorf("filename = %q, want sample.png", result.Filename)
	}
	if result.FinalVerdict != fusion.VerdictAIGenerated {
		t.Errorf("verdict = %q, want %q", result.FinalVerdict, fusion.VerdictAIGenerated)
	}
	if len(result.LayersExecuted) != 3 {
		t.Errorf("layers = %v, want 3 entries", result.LayersExecuted)
	}
	if result.ID == "" {
		t.Error("expected a non-empty analysis ID")
	}
}

func TestAnalyzeRejectsNonImage(t *testing.T) {
	s := newTestServer(t, nil, nil)

	body, contentType := multipartBody(t, []uploadPart{
		{field: "file", filename: "notes.txt", contentType: "text/plain", data: []byte("hello")},
	})
	req := httptest.NewRequest("POST", "/api/v1/analyze", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestAnalyzeMissingFileField(t *testing.T) {
	s := newTestServer(t, nil, nil)

	body, contentType := multipartBody(t, []uploadPart{
		{field: "wrong", filename: "sample.png", contentType: "image/png", data: []byte("x")},
	})
	req := httptest.NewRequest("POST", "/api/v1/analyze", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestAnalyzeStageFailureReturns500(t *testing.T) {
	s := newTestServer(t, nil, &stubExtractor{err: errors.New("model unavailable")})

	body, contentType := multipartBody(t, []uploadPart{
		{field: "file", filename: "sample.png", contentType: "image/png", data: []byte("x")},
	})
	req := httptest.NewRequest("POST", "/api/v1/analyze", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestAnalyzeBatch(t *testing.T) {
	s := newTestServer(t, nil, nil)

	body, contentType := multipartBody(t, []uploadPart{
		{field: "files", filename: "a.png", contentType: "image/png", data: []byte("a")},
		{field: "files", filename: "b.jpg", contentType: "image/jpeg", data: []byte("b")},
		{field: "files", filename: "notes.txt", contentType: "text/plain", data: []byte("skip me")},
	})
	req := httptest.NewRequest("POST", "/api/v1/analyze/batch", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var batch pipeline.BatchResult
	if err := json.Unmarshal(rec.Body.Bytes(), &batch); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if batch.TotalProcessed != 2 {
		t.Errorf("total_processed = %d, want 2", batch.TotalProcessed)
	}
	if batch.AIGeneratedCount != 2 {
		t.Errorf("ai_generated_count = %d, want 2", batch.AIGeneratedCount)
	}
}

func TestAnalyzeBatchOverLimit(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.Server.MaxBatchFiles = 2
	}, nil)

	body, contentType := multipartBody(t, []uploadPart{
		{field: "files", filename: "a.png", contentType: "image/png", data: []byte("a")},
		{field: "files", filename: "b.png", contentType: "image/png", data: []byte("b")},
		{field: "files", filename: "c.png", contentType: "image/png", data: []byte("c")},
	})
	req := httptest.NewRequest("POST", "/api/v1/analyze/batch", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestRateLimitReturns429(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.RateLimit.Enabled = true
		cfg.RateLimit.RequestsPerMin = 1
		cfg.RateLimit.Burst = 1
	}, nil)

	send := func() int {
		body, contentType := multipartBody(t, []uploadPart{
			{field: "file", filename: "sample.png", contentType: "image/png", data: []byte("x")},
		})
		req := httptest.NewRequest("POST", "/api/v1/analyze", body)
		req.Header.Set("Content-Type", contentType)
		req.RemoteAddr = "203.0.113.9:4444"
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, req)
		return rec.Code
	}

	if code := send(); code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", code)
	}
	if code := send(); code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", code)
	}
}
