package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	gochi "github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/quizrag/internal/domain"
	dombatch "github.com/kailas-cloud/quizrag/internal/domain/batch"
	"github.com/kailas-cloud/quizrag/internal/domain/document"
	"github.com/kailas-cloud/quizrag/internal/domain/question"
	domret "github.com/kailas-cloud/quizrag/internal/domain/retrieval"
	"github.com/kailas-cloud/quizrag/internal/logger"
	healthuc "github.com/kailas-cloud/quizrag/internal/usecase/health"
	"github.com/kailas-cloud/quizrag/internal/usecase/retrieval"
	"github.com/kailas-cloud/quizrag/internal/version"
)

// DefaultMaxQuestions caps the count of a single generation request.
const DefaultMaxQuestions = 50

// maxBodyBytes bounds request bodies; a batch may carry many documents.
const maxBodyBytes = 64 << 20

// Ingester indexes documents.
type Ingester interface {
	Ingest(ctx context.Context, doc document.Document) (int, error)
	IngestMany(ctx context.Context, docs []document.Document) []dombatch.Result
}

// Retriever finds passages for a query.
type Retriever interface {
	Retrieve(ctx context.Context, q retrieval.Query) (domret.Result, error)
}

// Generator produces question batches.
type Generator interface {
	Generate(ctx context.Context, spec question.Spec) (question.BatchResult, error)
}

// HealthChecker aggregates dependency health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

type sentinelMapping struct {
	err    error
	status int
	code   ErrorCode
}

// sentinels is ordered: more specific errors first.
var sentinels = []sentinelMapping{
	{context.Canceled, 499, CodeCanceled},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, CodeTimeout},
	{domain.ErrVectorDimMismatch, http.StatusBadRequest, CodeVectorDimMismatch},
	{domain.ErrInvalidQuery, http.StatusBadRequest, CodeInvalidQuery},
	{domain.ErrInvalidConfiguration, http.StatusBadRequest, CodeValidationFailed},
	{domain.ErrNotFound, http.StatusNotFound, CodeNotFound},
	{domain.ErrInsufficientContext, http.StatusUnprocessableEntity, CodeInsufficientContext},
	{domain.ErrGenerationQuality, http.StatusUnprocessableEntity, CodeGenerationQuality},
	{domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited},
	{domain.ErrEmbeddingUnavailable, http.StatusBadGateway, CodeEmbeddingProvider},
	{domain.ErrGenerationProvider, http.StatusBadGateway, CodeGenerationProvider},
}

// Server serves the quizrag HTTP API.
type Server struct {
	ingest        Ingester
	retrieval     Retriever
	generation    Generator
	health        HealthChecker
	maxQuestions  int
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	ingest Ingester,
	retrieval Retriever,
	generation Generator,
	health HealthChecker,
	logger *zap.Logger,
) *Server {
	s := &Server{
		ingest:       ingest,
		retrieval:    retrieval,
		generation:   generation,
		health:       health,
		maxQuestions: DefaultMaxQuestions,
		logger:       logger,
	}
	for _, m := range sentinels {
		s.errorHandlers = append(s.errorHandlers, sentinelHandler(m.err, m.status, m.code))
	}
	return s
}

// WithMaxQuestions overrides the per-request question cap.
func (s *Server) WithMaxQuestions(n int) *Server {
	if n > 0 {
		s.maxQuestions = n
	}
	return s
}

// Routes registers the API on r.
func (s *Server) Routes(r gochi.Router) {
	r.Post("/documents", s.IngestDocument)
	r.Post("/documents/batch", s.IngestBatch)
	r.Get("/passages", s.RetrievePassages)
	r.Post("/questions", s.GenerateQuestions)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// IngestDocument handles POST /documents.
func (s *Server) IngestDocument(w http.ResponseWriter, r *http.Request) {
	var req DocumentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	doc, err := documentFromRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return
	}

	n, err := s.ingest.Ingest(r.Context(), doc)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, IngestResponse{DocumentID: doc.ID(), Chunks: n})
}

// IngestBatch handles POST /documents/batch. Documents that fail validation
// are reported per item and never reach the ingester.
func (s *Server) IngestBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchIngestRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "items must not be empty")
		return
	}

	items := make([]BatchIngestItem, len(req.Items))
	docs := make([]document.Document, 0, len(req.Items))
	slots := make([]int, 0, len(req.Items))
	for i, it := range req.Items {
		doc, err := documentFromRequest(it)
		if err != nil {
			items[i] = BatchIngestItem{
				ID: it.ID, Status: string(dombatch.StatusError),
				Error: &ErrorResponse{Code: CodeValidationFailed, Message: err.Error()},
			}
			continue
		}
		docs = append(docs, doc)
		slots = append(slots, i)
	}

	var sum dombatch.Summary
	if len(docs) > 0 {
		results := s.ingest.IngestMany(r.Context(), docs)
		for j, res := range results {
			items[slots[j]] = batchResultToResponse(res)
		}
		sum = dombatch.Summarize(results)
	}

	writeJSON(w, http.StatusOK, BatchIngestResponse{
		Items:     items,
		Succeeded: sum.Succeeded,
		Failed:    sum.Failed + len(req.Items) - len(docs),
		Chunks:    sum.Chunks,
	})
}

// RetrievePassages handles GET /passages?q=&k=&subject=&unit=&threshold=.
func (s *Server) RetrievePassages(w http.ResponseWriter, r *http.Request) {
	q, err := retrieveQueryFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	res, err := s.retrieval.Retrieve(r.Context(), q)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]PassageResponse, len(res.Passages))
	for i, p := range res.Passages {
		items[i] = passageToResponse(p)
	}
	writeJSON(w, http.StatusOK, RetrieveResponse{
		Items:   items,
		Total:   len(items),
		Context: retrieval.FormatContext(res),
	})
}

// GenerateQuestions handles POST /questions. Partial failures are reported in
// the manifest with status 200.
func (s *Server) GenerateQuestions(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	spec, err := specFromRequest(req, s.maxQuestions)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return
	}

	batch, err := s.generation.Generate(r.Context(), spec)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, batchToResponse(batch))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status:  string(report.Status),
		Version: version.Version,
		Checks:  checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func retrieveQueryFromRequest(r *http.Request) (retrieval.Query, error) {
	params := r.URL.Query()
	var (
		text      string
		k         *int
		subject   *string
		unit      *string
		threshold *float64
	)
	if err := runtime.BindQueryParameter("form", true, true, "q", params, &text); err != nil {
		return retrieval.Query{}, fmt.Errorf("invalid q: %w", err)
	}
	if err := runtime.BindQueryParameter("form", true, false, "k", params, &k); err != nil {
		return retrieval.Query{}, fmt.Errorf("invalid k: %w", err)
	}
	if err := runtime.BindQueryParameter("form", true, false, "subject", params, &subject); err != nil {
		return retrieval.Query{}, fmt.Errorf("invalid subject: %w", err)
	}
	if err := runtime.BindQueryParameter("form", true, false, "unit", params, &unit); err != nil {
		return retrieval.Query{}, fmt.Errorf("invalid unit: %w", err)
	}
	if err := runtime.BindQueryParameter("form", true, false, "threshold", params, &threshold); err != nil {
		return retrieval.Query{}, fmt.Errorf("invalid threshold: %w", err)
	}

	return retrieval.Query{
		Text:      text,
		K:         deref(k),
		Subject:   deref(subject),
		Unit:      deref(unit),
		Threshold: threshold,
	}, nil
}

func specFromRequest(req GenerateRequest, maxQuestions int) (question.Spec, error) {
	if req.Count <= 0 {
		return question.Spec{}, errors.New("count must be positive")
	}
	if req.Count > maxQuestions {
		return question.Spec{}, fmt.Errorf("count must not exceed %d", maxQuestions)
	}

	var mix question.Mix
	switch {
	case req.Difficulty != nil:
		mix = question.Mix{Easy: req.Difficulty.Easy, Medium: req.Difficulty.Medium, Hard: req.Difficulty.Hard}
	case req.Preset != "":
		m, err := question.Preset(req.Preset)
		if err != nil {
			return question.Spec{}, err
		}
		mix = m
	default:
		mix, _ = question.Preset("balanced")
	}

	spec := question.Spec{
		Count:   req.Count,
		Mix:     mix,
		Subject: req.Subject,
		Unit:    req.Unit,
		Topic:   req.Topic,
		Hints:   req.Hints,
	}
	if err := spec.Validate(); err != nil {
		return question.Spec{}, err
	}
	return spec, nil
}

func documentFromRequest(req DocumentRequest) (document.Document, error) {
	doc, err := document.New(req.ID, req.Text, req.Source, req.Subject, req.Unit)
	if err != nil {
		return document.Document{}, fmt.Errorf("document %q: %w", req.ID, err)
	}
	return doc, nil
}

func deref[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	for _, m := range sentinels {
		if errors.Is(err, m.err) {
			return m.err.Error()
		}
	}
	return "internal error"
}

// errorCode returns the API code for err, CodeInternalError when unmapped.
func errorCode(err error) ErrorCode {
	for _, m := range sentinels {
		if errors.Is(err, m.err) {
			return m.code
		}
	}
	return CodeInternalError
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context(), s.logger)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
