package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/taxlens/docanalyzer/internal/config"
	"github.com/taxlens/docanalyzer/internal/core/domain"
	"github.com/taxlens/docanalyzer/internal/export"
	"github.com/taxlens/docanalyzer/internal/observability/logging"
	"github.com/taxlens/docanalyzer/internal/observability/metrics"
)

type ingestorFake struct {
	err error
}

func (f ingestorFake) Upload(_ context.Context, filename, mimeType string, size int64, body io.Reader) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	if _, err := io.Copy(io.Discard, body); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &domain.Document{
		ID:        "doc-1",
		Filename:  filename,
		MimeType:  mimeType,
		SizeBytes: size,
		Status:    domain.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

type readerFake struct {
	status  domain.StatusProjection
	results domain.ResultProjection
	docs    []domain.Document
	err     error
}

func (f readerFake) Status(context.Context, string) (domain.StatusProjection, error) {
	if f.err != nil {
		return domain.StatusProjection{}, f.err
	}
	return f.status, nil
}

func (f readerFake) Results(context.Context, string) (domain.ResultProjection, error) {
	if f.err != nil {
		return domain.ResultProjection{}, f.err
	}
	return f.results, nil
}

func (f readerFake) List(context.Context, domain.DocumentStatus, int) ([]domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.docs, nil
}

type reprocessorFake struct {
	err error
}

func (f reprocessorFake) Reprocess(context.Context, string) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Document{ID: "doc-1", Status: domain.StatusPending}, nil
}

type deleterFake struct {
	existed bool
	err     error
}

func (f deleterFake) Delete(context.Context, string) (bool, error) {
	return f.existed, f.err
}

type exportRepoStub struct {
	docs []domain.Document
}

func (s exportRepoStub) Create(context.Context, *domain.Document) error { return nil }

func (s exportRepoStub) GetByID(context.Context, string) (*domain.Document, error) {
	return nil, errors.New("not implemented")
}

func (s exportRepoStub) UpdateStatus(context.Context, string, domain.DocumentStatus, int, string) error {
	return nil
}

func (s exportRepoStub) StoreResult(context.Context, string, *domain.AnalysisResult) error {
	return nil
}

func (s exportRepoStub) SaveOCRText(context.Context, string, domain.OCRResult) error { return nil }

func (s exportRepoStub) Delete(context.Context, string) (bool, error) { return false, nil }

func (s exportRepoStub) List(context.Context, domain.DocumentStatus, int) ([]domain.Document, error) {
	return s.docs, nil
}

func (s exportRepoStub) DemoteStaleProcessing(context.Context, time.Duration, string) (int, error) {
	return 0, nil
}

type routerOptions struct {
	cfg         config.Config
	ingestor    ingestorFake
	reader      readerFake
	reprocessor reprocessorFake
	deleter     deleterFake
}

func newTestHandler(opts routerOptions) http.Handler {
	if opts.cfg.MaxUploadBytes == 0 {
		opts.cfg.MaxUploadBytes = 1 << 20
	}
	logger := logging.Setup("api-test", "error")
	exporter := export.NewService(exportRepoStub{}, logger)
	return NewRouter(
		opts.cfg,
		opts.ingestor,
		opts.reader,
		opts.reprocessor,
		opts.deleter,
		exporter,
		metrics.NewHTTPServerMetrics("api-test"),
	).Handler()
}

func multipartBody(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, writer.FormDataContentType()
}

func TestHealthzEndpoint(t *testing.T) {
	handler := newTestHandler(routerOptions{})
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}

func TestUploadDocumentReturns202WithSnapshot(t *testing.T) {
	handler := newTestHandler(routerOptions{})
	body, contentType := multipartBody(t, "w2.pdf", "%PDF-1.4 fake")

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	var snapshot domain.StatusProjection
	if err := json.NewDecoder(res.Body).Decode(&snapshot); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snapshot.DocumentID != "doc-1" || snapshot.Status != domain.StatusPending {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}
	if res.Header().Get("X-Request-Id") == "" {
		t.Fatal("expected a request id header")
	}
}

func TestUploadWithoutFileFieldReturns400(t *testing.T) {
	handler := newTestHandler(routerOptions{})

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", bytes.NewReader(nil))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=xyz")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestStatusEndpointMapsErrorKinds(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", domain.WrapError(domain.ErrDocumentNotFound, "get", errors.New("no row")), http.StatusNotFound},
		{"conflict", domain.WrapError(domain.ErrConflict, "read results", errors.New("processing not complete")), http.StatusConflict},
		{"provider", domain.WrapError(domain.ErrProvider, "analyze", errors.New("bad upstream")), http.StatusBadGateway},
		{"temporary", domain.WrapError(domain.ErrTemporary, "queue", errors.New("nats down")), http.StatusServiceUnavailable},
		{"invalid", domain.WrapError(domain.ErrInvalidInput, "upload", errors.New("empty file")), http.StatusBadRequest},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := newTestHandler(routerOptions{reader: readerFake{err: tc.err}})
			res := httptest.NewRecorder()
			handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/documents/doc-1/status", nil))

			if res.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, res.Code)
			}
		})
	}
}

func TestResultsEndpointReturnsProjection(t *testing.T) {
	processedAt := time.Now().UTC()
	handler := newTestHandler(routerOptions{reader: readerFake{
		results: domain.ResultProjection{
			DocumentID:  "doc-1",
			Status:      domain.StatusCompleted,
			ProcessedAt: &processedAt,
			Results:     &domain.AnalysisResult{FormType: "W-2", RiskLevel: domain.RiskLow},
		},
	}})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/documents/doc-1/results", nil))

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var projection domain.ResultProjection
	if err := json.NewDecoder(res.Body).Decode(&projection); err != nil {
		t.Fatalf("decode projection: %v", err)
	}
	if projection.Results == nil || projection.Results.FormType != "W-2" {
		t.Fatalf("unexpected projection %+v", projection)
	}
}

func TestReprocessEndpointReturns202(t *testing.T) {
	handler := newTestHandler(routerOptions{})
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/v1/documents/doc-1/process", nil))

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
}

func TestDeleteEndpointReportsExistence(t *testing.T) {
	handler := newTestHandler(routerOptions{deleter: deleterFake{existed: true}})
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodDelete, "/v1/documents/doc-1", nil))

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var payload map[string]bool
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if !payload["deleted"] {
		t.Fatalf("expected deleted=true, got %+v", payload)
	}
}

func TestListEndpointWrapsDocuments(t *testing.T) {
	now := time.Now().UTC()
	handler := newTestHandler(routerOptions{reader: readerFake{docs: []domain.Document{
		{ID: "doc-1", Status: domain.StatusCompleted, Progress: 100, CreatedAt: now, UpdatedAt: now},
		{ID: "doc-2", Status: domain.StatusPending, CreatedAt: now, UpdatedAt: now},
	}}})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/documents?limit=10", nil))

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var payload struct {
		Documents []domain.StatusProjection `json:"documents"`
		Count     int                       `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Count != 2 || len(payload.Documents) != 2 {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestRateLimitMiddlewareReturns429(t *testing.T) {
	handler := newTestHandler(routerOptions{cfg: config.Config{
		APIRateLimitRPS:   1,
		APIRateLimitBurst: 1,
	}})

	res1 := httptest.NewRecorder()
	handler.ServeHTTP(res1, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if res1.Code != http.StatusOK {
		t.Fatalf("first request expected 200, got %d", res1.Code)
	}

	res2 := httptest.NewRecorder()
	handler.ServeHTTP(res2, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if res2.Code != http.StatusTooManyRequests {
		t.Fatalf("second request expected 429, got %d", res2.Code)
	}
	if res2.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header for 429 response")
	}
}

func TestBackpressureMiddlewareReturns503WhenSaturated(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan int, 1)

	base := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started <- struct{}{}
		<-release
		w.WriteHeader(http.StatusNoContent)
	})
	handler := backpressureMiddleware(base, 1, 20*time.Millisecond)

	go func() {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/documents", nil))
		done <- res.Code
	}()

	<-started

	res2 := httptest.NewRecorder()
	handler.ServeHTTP(res2, httptest.NewRequest(http.MethodGet, "/v1/documents", nil))
	if res2.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for saturated backpressure gate, got %d", res2.Code)
	}

	var resp map[string]any
	if err := json.NewDecoder(bytes.NewReader(res2.Body.Bytes())).Decode(&resp); err != nil {
		t.Fatalf("decode overload response: %v", err)
	}
	if resp["error"] == "" {
		t.Fatal("expected overload error message in response")
	}

	close(release)

	select {
	case code := <-done:
		if code != http.StatusNoContent {
			t.Fatalf("first request expected 204, got %d", code)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for first request completion")
	}
}
