package usecase

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/taxlens/docanalyzer/internal/core/domain"
)

type queueFake struct {
	mu         sync.Mutex
	published  []domain.UploadedEvent
	publishErr error
}

func (f *queueFake) PublishDocumentUploaded(_ context.Context, event domain.UploadedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, event)
	return nil
}

func (f *queueFake) SubscribeDocumentUploaded(context.Context, func(context.Context, domain.UploadedEvent) error) error {
	return nil
}

func TestUploadCreatesPendingRecordAndPublishesEvent(t *testing.T) {
	repo := &repoFake{}
	queue := &queueFake{}
	uc := NewIngestDocumentUseCase(repo, queue, t.TempDir())

	doc, err := uc.Upload(context.Background(), "my w2 2025.pdf", "application/pdf", 0, strings.NewReader("%PDF-1.4 payload"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if doc.Status != domain.StatusPending || doc.Progress != 0 {
		t.Fatalf("expected a fresh pending record, got status=%s progress=%d", doc.Status, doc.Progress)
	}
	if doc.SizeBytes != int64(len("%PDF-1.4 payload")) {
		t.Fatalf("expected the spooled byte count, got %d", doc.SizeBytes)
	}
	if !strings.HasSuffix(doc.StoragePath, "_my_w2_2025.pdf") {
		t.Fatalf("expected a sanitized storage path, got %q", doc.StoragePath)
	}
	if repo.created == nil || repo.created.ID != doc.ID {
		t.Fatalf("expected the record to be created, got %+v", repo.created)
	}

	if len(queue.published) != 1 {
		t.Fatalf("expected one published event, got %d", len(queue.published))
	}
	event := queue.published[0]
	if event.DocumentID != doc.ID {
		t.Fatalf("event carries wrong id: %q", event.DocumentID)
	}
	raw, err := os.ReadFile(event.StagingPath)
	if err != nil {
		t.Fatalf("read staged upload: %v", err)
	}
	if string(raw) != "%PDF-1.4 payload" {
		t.Fatalf("staged bytes mismatch: %q", raw)
	}
}

func TestUploadCleansStagingWhenRecordCreateFails(t *testing.T) {
	dir := t.TempDir()
	repo := &repoFake{createErr: errors.New("insert failed")}
	uc := NewIngestDocumentUseCase(repo, &queueFake{}, dir)

	if _, err := uc.Upload(context.Background(), "broken.pdf", "application/pdf", 0, strings.NewReader("x")); err == nil {
		t.Fatal("expected the create error to propagate")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read staging dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected the staging dir to be empty, found %d entries", len(entries))
	}
}

func TestUploadCleansStagingWhenPublishFails(t *testing.T) {
	dir := t.TempDir()
	queue := &queueFake{publishErr: errors.New("nats down")}
	uc := NewIngestDocumentUseCase(&repoFake{}, queue, dir)

	if _, err := uc.Upload(context.Background(), "broken.pdf", "application/pdf", 0, strings.NewReader("x")); err == nil {
		t.Fatal("expected the publish error to propagate")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read staging dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected the staging dir to be empty, found %d entries", len(entries))
	}
}

func TestSanitizeFilenameStripsPathAndOddRunes(t *testing.T) {
	cases := map[string]string{
		"../../etc/passwd":   "passwd",
		"my report (v2).pdf": "my_report__v2_.pdf",
		"простой.pdf":        "_______.pdf",
		"":                   "document.bin",
	}
	for input, want := range cases {
		if got := sanitizeFilename(input); got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", input, got, want)
		}
	}
}
