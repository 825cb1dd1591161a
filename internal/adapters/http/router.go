package httpadapter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/protectedvision/backend/internal/core/domain"
	"github.com/protectedvision/backend/internal/core/ports"
	"github.com/protectedvision/backend/internal/infrastructure/report/xlsxreport"
	"github.com/protectedvision/backend/internal/observability/metrics"
)

type Router struct {
	service  string
	ingest   ports.DocumentIngestor
	scans    ports.ScanSubmitter
	docs     ports.DocumentRepository
	jobs     ports.JobRepository
	scanRepo ports.ScanRepository
	registry ports.ModelRegistry
	stats    ports.StatsRepository
	metrics  *metrics.HTTPServerMetrics
}

func NewRouter(
	service string,
	ingest ports.DocumentIngestor,
	scans ports.ScanSubmitter,
	docs ports.DocumentRepository,
	jobs ports.JobRepository,
	scanRepo ports.ScanRepository,
	registry ports.ModelRegistry,
	stats ports.StatsRepository,
	m *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		service:  service,
		ingest:   ingest,
		scans:    scans,
		docs:     docs,
		jobs:     jobs,
		scanRepo: scanRepo,
		registry: registry,
		stats:    stats,
		metrics:  m,
	}
}

// HandlerOptions carries the traffic-control settings for the public
// surface. Health and metrics bypass auth and shedding.
type HandlerOptions struct {
	APIKey                string
	RateLimitRPS          float64
	RateLimitBurst        int
	MaxConcurrentRequests int
	ShedAfter             time.Duration
}

func (rt *Router) Handler(opts HandlerOptions) http.Handler {
	if opts.ShedAfter <= 0 {
		opts.ShedAfter = 100 * time.Millisecond
	}

	api := http.NewServeMux()
	api.HandleFunc("POST /v1/documents", rt.uploadDocument)
	api.HandleFunc("GET /v1/documents/{id}", rt.getDocument)
	api.HandleFunc("POST /v1/documents/{id}/scans", rt.submitScan)
	api.HandleFunc("GET /v1/documents/{id}/scans", rt.listDocumentScans)
	api.HandleFunc("POST /v1/documents/{id}/share", rt.shareDocument)
	api.HandleFunc("GET /v1/jobs/{id}", rt.getJob)
	api.HandleFunc("GET /v1/scans/export", rt.exportScans)
	api.HandleFunc("GET /v1/scans/{id}", rt.getScan)
	api.HandleFunc("GET /v1/models", rt.listModels)
	api.HandleFunc("GET /v1/users/me/stats", rt.getUserStats)

	protected := authMiddleware(opts.APIKey, api)
	protected = rateLimitMiddleware(protected, opts.RateLimitRPS, opts.RateLimitBurst)
	protected = backpressureMiddleware(protected, opts.MaxConcurrentRequests, opts.ShedAfter)

	root := http.NewServeMux()
	root.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		root.Handle("GET /metrics", rt.metrics.Handler())
	}
	root.Handle("/", protected)

	handler := http.Handler(root)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	mimeType := fileHeader.Header.Get("Content-Type")
	doc, err := rt.ingest.Upload(
		r.Context(),
		userIDFromContext(r.Context()),
		r.FormValue("title"),
		fileHeader.Filename,
		mimeType,
		file,
	)
	if err != nil {
		rt.handleError(w, r, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordUpload(rt.service, string(doc.Modality))
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := rt.ownedDocument(r, r.PathValue("id"))
	if err != nil {
		rt.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// submitScan enqueues a detection job and returns immediately with 202;
// clients poll the job resource for the terminal result.
func (rt *Router) submitScan(w http.ResponseWriter, r *http.Request) {
	job, err := rt.scans.Submit(r.Context(), userIDFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		rt.handleError(w, r, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordScanSubmit(rt.service)
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (rt *Router) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := rt.jobs.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		rt.handleError(w, r, err)
		return
	}
	if job.UserID != userIDFromContext(r.Context()) {
		rt.handleError(w, r, domain.WrapError(domain.ErrJobNotFound, "get job",
			fmt.Errorf("job %s not owned by caller", job.ID)))
		return
	}
	writeJSON(w, http.StatusOK, job)
}

type scanResponse struct {
	domain.DocumentScan
	Findings []domain.Finding `json:"findings"`
}

func (rt *Router) getScan(w http.ResponseWriter, r *http.Request) {
	scan, findings, err := rt.scanRepo.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		rt.handleError(w, r, err)
		return
	}
	if _, err := rt.ownedDocument(r, scan.DocumentID); err != nil {
		rt.handleError(w, r, domain.WrapError(domain.ErrScanNotFound, "get scan",
			fmt.Errorf("scan %s not owned by caller", scan.ID)))
		return
	}
	writeJSON(w, http.StatusOK, scanResponse{DocumentScan: *scan, Findings: findings})
}

func (rt *Router) listDocumentScans(w http.ResponseWriter, r *http.Request) {
	doc, err := rt.ownedDocument(r, r.PathValue("id"))
	if err != nil {
		rt.handleError(w, r, err)
		return
	}

	scans, err := rt.scanRepo.ListByDocument(r.Context(), doc.ID)
	if err != nil {
		rt.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scans": scans})
}

func (rt *Router) shareDocument(w http.ResponseWriter, r *http.Request) {
	if err := rt.ingest.Share(r.Context(), userIDFromContext(r.Context()), r.PathValue("id")); err != nil {
		rt.handleError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordShare(rt.service)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) listModels(w http.ResponseWriter, r *http.Request) {
	models, err := rt.registry.ListActive(r.Context())
	if err != nil {
		rt.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": models})
}

func (rt *Router) getUserStats(w http.ResponseWriter, r *http.Request) {
	stats, err := rt.stats.Get(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		rt.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":             stats.UserID,
		"documents_saved":     stats.DocumentsSaved,
		"documents_processed": stats.DocumentsProcessed,
		"documents_shared":    stats.DocumentsShared,
		"sensitive_detected":  stats.SensitiveDetected,
		"non_detected_items":  stats.NonDetectedItems,
		"detection_accuracy":  stats.DetectionAccuracy(),
	})
}

func (rt *Router) exportScans(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	scans, err := rt.scanRepo.ListByUser(r.Context(), userID)
	if err != nil {
		rt.handleError(w, r, err)
		return
	}

	rows := make([]xlsxreport.Row, 0, len(scans))
	for _, scan := range scans {
		_, findings, err := rt.scanRepo.GetByID(r.Context(), scan.ID)
		if err != nil {
			rt.handleError(w, r, err)
			return
		}
		doc, err := rt.docs.GetByID(r.Context(), scan.DocumentID)
		if err != nil {
			rt.handleError(w, r, err)
			return
		}
		rows = append(rows, xlsxreport.Row{
			ScanID:        scan.ID,
			DocumentTitle: doc.Title,
			Modality:      string(doc.Modality),
			RiskLevel:     string(scan.RiskLevel),
			Findings:      len(findings),
			Instances:     domain.Instances(findings),
			Redacted:      scan.RedactedKey != nil,
			DurationMS:    scan.Duration.Milliseconds(),
			CreatedAt:     scan.CreatedAt,
		})
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="scans.xlsx"`)
	if err := xlsxreport.Write(w, rows); err != nil {
		slog.Error("scan_export_failed", "request_id", requestIDFromContext(r.Context()), "error", err)
	}
}

// ownedDocument fetches a document and hides it from non-owners behind
// the same not-found error the repository returns.
func (rt *Router) ownedDocument(r *http.Request, id string) (*domain.Document, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "get document", fmt.Errorf("document id is required"))
	}
	doc, err := rt.docs.GetByID(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if doc.UserID != userIDFromContext(r.Context()) {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document",
			fmt.Errorf("document %s not owned by caller", doc.ID))
	}
	return doc, nil
}

func (rt *Router) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= 500 {
		slog.Error("request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
