package docclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestUploadSendsMultipartAndDecodesSnapshot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/documents" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("read multipart: %v", err)
		}
		defer file.Close()
		if header.Filename != "w2.pdf" {
			t.Fatalf("unexpected filename %q", header.Filename)
		}
		raw, _ := io.ReadAll(file)
		if string(raw) != "%PDF-1.4 body" {
			t.Fatalf("unexpected body %q", raw)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"document_id":"doc-1","status":"pending","progress":0}`))
	}))
	defer server.Close()

	client := New(server.URL)
	snapshot, err := client.Upload(context.Background(), "w2.pdf", strings.NewReader("%PDF-1.4 body"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if snapshot.DocumentID != "doc-1" || snapshot.Status != StatusPending {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}
}

func TestStatusSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"document not found"}`))
	}))
	defer server.Close()

	client := New(server.URL)
	_, err := client.Status(context.Background(), "missing")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected an APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusNotFound || apiErr.Message != "document not found" {
		t.Fatalf("unexpected api error %+v", apiErr)
	}
}

func TestResultsDecodesAnalysisPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/documents/doc-2/results" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"document_id": "doc-2",
			"status": "completed",
			"results": {
				"form_type": "W-2",
				"confidence": 0.9,
				"risk_level": "low",
				"detected_issues": [{"type":"missing_field","severity":"warning","description":"no ssn"}]
			}
		}`))
	}))
	defer server.Close()

	client := New(server.URL)
	results, err := client.Results(context.Background(), "doc-2")
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if results.Results == nil || results.Results.FormType != "W-2" {
		t.Fatalf("unexpected results %+v", results.Results)
	}
	if len(results.Results.DetectedIssues) != 1 {
		t.Fatalf("expected one issue, got %+v", results.Results.DetectedIssues)
	}
}

func TestDeleteReportsExistence(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Fatalf("unexpected method %s", r.Method)
		}
		calls++
		w.Header().Set("Content-Type", "application/json")
		if calls == 1 {
			_, _ = w.Write([]byte(`{"deleted":true}`))
			return
		}
		_, _ = w.Write([]byte(`{"deleted":false}`))
	}))
	defer server.Close()

	client := New(server.URL)
	existed, err := client.Delete(context.Background(), "doc-3")
	if err != nil || !existed {
		t.Fatalf("first delete: existed=%v err=%v", existed, err)
	}
	existed, err = client.Delete(context.Background(), "doc-3")
	if err != nil || existed {
		t.Fatalf("second delete: existed=%v err=%v", existed, err)
	}
}
