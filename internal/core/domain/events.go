package domain

import "time"

// UploadedEvent is the queue payload published when a document is accepted.
// StagingPath points at the spooled upload on shared local storage; the
// worker removes it once processing settles.
type UploadedEvent struct {
	DocumentID  string    `json:"document_id"`
	StagingPath string    `json:"staging_path"`
	UploadedAt  time.Time `json:"uploaded_at"`
}
