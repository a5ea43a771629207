package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/taxlens/docanalyzer/internal/core/domain"
)

const uniqueViolationCode = "23505"

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *DocumentRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083001)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	size_bytes BIGINT NOT NULL DEFAULT 0,
	storage_path TEXT NOT NULL,
	status TEXT NOT NULL,
	progress INTEGER NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT '',
	result JSONB,
	ocr_text TEXT NOT NULL DEFAULT '',
	ocr_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	ocr_method TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	processed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO documents (
	id, filename, mime_type, size_bytes, storage_path, status, progress, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`,
		doc.ID, doc.Filename, doc.MimeType, doc.SizeBytes, doc.StoragePath,
		string(doc.Status), doc.Progress, doc.Error, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return domain.WrapError(domain.ErrAlreadyExists, "insert document", err)
		}
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

const documentColumns = `
id, filename, mime_type, size_bytes, storage_path, status, progress, error_message,
result, ocr_text, ocr_confidence, ocr_method, created_at, updated_at, processed_at`

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE id = $1
`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return doc, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var status string
	var resultRaw []byte
	var processedAt sql.NullTime

	err := row.Scan(
		&doc.ID, &doc.Filename, &doc.MimeType, &doc.SizeBytes, &doc.StoragePath,
		&status, &doc.Progress, &doc.Error,
		&resultRaw, &doc.OCRText, &doc.OCRConfidence, &doc.OCRMethod,
		&doc.CreatedAt, &doc.UpdatedAt, &processedAt,
	)
	if err != nil {
		return nil, err
	}

	doc.Status = domain.DocumentStatus(status)
	if len(resultRaw) > 0 {
		var result domain.AnalysisResult
		if err := json.Unmarshal(resultRaw, &result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
		doc.Result = &result
	}
	if processedAt.Valid {
		t := processedAt.Time
		doc.ProcessedAt = &t
	}
	return &doc, nil
}

func (r *DocumentRepository) UpdateStatus(
	ctx context.Context,
	id string,
	status domain.DocumentStatus,
	progress int,
	errMessage string,
) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, progress = $3, error_message = $4, updated_at = $5
WHERE id = $1
`, id, string(status), progress, errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	return requireRow(res, "update document status", id)
}

// StoreResult marks the document completed: progress forced to 100, error
// cleared, processed_at stamped.
func (r *DocumentRepository) StoreResult(ctx context.Context, id string, result *domain.AnalysisResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, progress = 100, error_message = '', result = $3, updated_at = $4, processed_at = $4
WHERE id = $1
`, id, string(domain.StatusCompleted), resultJSON, now)
	if err != nil {
		return fmt.Errorf("store document result: %w", err)
	}
	return requireRow(res, "store document result", id)
}

func (r *DocumentRepository) SaveOCRText(ctx context.Context, id string, ocr domain.OCRResult) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET ocr_text = $2, ocr_confidence = $3, ocr_method = $4, updated_at = $5
WHERE id = $1
`, id, ocr.Text, ocr.Confidence, ocr.Method, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save ocr output: %w", err)
	}
	return requireRow(res, "save ocr output", id)
}

// Delete reports whether a record existed; deleting a missing id is not an
// error.
func (r *DocumentRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete document rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *DocumentRepository) List(ctx context.Context, status domain.DocumentStatus, limit int) ([]domain.Document, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
SELECT ` + documentColumns + `
FROM documents
`
	args := []any{}
	if status != "" {
		query += `WHERE status = $1
`
		args = append(args, string(status))
	}
	query += fmt.Sprintf("ORDER BY created_at DESC\nLIMIT %d", limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document row: %w", err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

// DemoteStaleProcessing fails records stuck in processing longer than
// olderThan, so pollers eventually observe a terminal state after a worker
// crash mid-flight.
func (r *DocumentRepository) DemoteStaleProcessing(
	ctx context.Context,
	olderThan time.Duration,
	message string,
) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $1, error_message = $2, updated_at = $3
WHERE status = $4 AND updated_at < $5
`, string(domain.StatusFailed), message, time.Now().UTC(), string(domain.StatusProcessing), cutoff)
	if err != nil {
		return 0, fmt.Errorf("demote stale processing: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("demote stale rows affected: %w", err)
	}
	return int(affected), nil
}

func requireRow(res sql.Result, operation, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, operation, fmt.Errorf("id=%s", id))
	}
	return nil
}
