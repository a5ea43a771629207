package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/taxlens/docanalyzer/internal/config"
	"github.com/taxlens/docanalyzer/internal/core/domain"
	"github.com/taxlens/docanalyzer/internal/core/ports"
	"github.com/taxlens/docanalyzer/internal/export"
	"github.com/taxlens/docanalyzer/internal/observability/metrics"
)

const serviceName = "api"

type Router struct {
	cfg         config.Config
	ingestor    ports.DocumentIngestor
	reader      ports.DocumentReader
	reprocessor ports.DocumentReprocessor
	deleter     ports.DocumentDeleter
	exporter    *export.Service
	metrics     *metrics.HTTPServerMetrics
}

func NewRouter(
	cfg config.Config,
	ingestor ports.DocumentIngestor,
	reader ports.DocumentReader,
	reprocessor ports.DocumentReprocessor,
	deleter ports.DocumentDeleter,
	exporter *export.Service,
	serverMetrics *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		cfg:         cfg,
		ingestor:    ingestor,
		reader:      reader,
		reprocessor: reprocessor,
		deleter:     deleter,
		exporter:    exporter,
		metrics:     serverMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/documents", rt.documentsCollection)
	mux.HandleFunc("/v1/documents/", rt.documentByID)
	mux.HandleFunc("/v1/documents/export", rt.exportDocuments)
	mux.Handle("/metrics", rt.metrics.Handler())

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, 200*time.Millisecond)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	handler = rt.metrics.Middleware(serviceName, handler)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) documentsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		rt.uploadDocument(w, r)
	case http.MethodGet:
		rt.listDocuments(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.MaxUploadBytes)

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
				"error": fmt.Sprintf("upload exceeds %d bytes", rt.cfg.MaxUploadBytes),
			})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	if fileHeader.Filename == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "filename is required"})
		return
	}

	doc, err := rt.ingestor.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		fileHeader.Size,
		file,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	rt.metrics.ObserveUploadSize(serviceName, fileHeader.Size)
	writeJSON(w, http.StatusAccepted, doc.StatusProjection())
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	status := domain.DocumentStatus(r.URL.Query().Get("status"))
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
			return
		}
		limit = parsed
	}

	docs, err := rt.reader.List(r.Context(), status, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	projections := make([]domain.StatusProjection, 0, len(docs))
	for i := range docs {
		projections = append(projections, docs[i].StatusProjection())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"documents": projections,
		"count":     len(projections),
	})
}

func (rt *Router) exportDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
			return
		}
		limit = parsed
	}

	data, err := rt.exporter.ExportCompletedXLSX(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="documents.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// documentByID dispatches /v1/documents/{id}[/status|/results|/process].
func (rt *Router) documentByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	switch {
	case action == "status" && r.Method == http.MethodGet:
		rt.documentStatus(w, r, id)
	case action == "results" && r.Method == http.MethodGet:
		rt.documentResults(w, r, id)
	case action == "process" && r.Method == http.MethodPost:
		rt.reprocessDocument(w, r, id)
	case action == "" && r.Method == http.MethodGet:
		rt.documentStatus(w, r, id)
	case action == "" && r.Method == http.MethodDelete:
		rt.deleteDocument(w, r, id)
	case action == "":
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown resource"})
	}
}

func (rt *Router) documentStatus(w http.ResponseWriter, r *http.Request, id string) {
	projection, err := rt.reader.Status(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projection)
}

func (rt *Router) documentResults(w http.ResponseWriter, r *http.Request, id string) {
	projection, err := rt.reader.Results(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projection)
}

func (rt *Router) reprocessDocument(w http.ResponseWriter, r *http.Request, id string) {
	doc, err := rt.reprocessor.Reprocess(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, doc.StatusProjection())
}

func (rt *Router) deleteDocument(w http.ResponseWriter, r *http.Request, id string) {
	existed, err := rt.deleter.Delete(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": existed})
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
