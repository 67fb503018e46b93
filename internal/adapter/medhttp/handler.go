package medhttp

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"medrag-orchestrator/internal/domain"
	"medrag-orchestrator/internal/usecase"
)

// AnswerRequest is the request shape accepted by the pipeline endpoints.
type AnswerRequest struct {
	Question       string             `json:"question"`
	Biomarkers     map[string]float64 `json:"biomarkers,omitempty"`
	PatientContext string             `json:"patientContext,omitempty"`
}

// AnswerResponse is the response shape produced for every request.
type AnswerResponse struct {
	Answer             string   `json:"answer"`
	GuardrailScore     float64  `json:"guardrailScore"`
	DocumentsRetrieved int      `json:"documentsRetrieved"`
	DocumentsRelevant  int      `json:"documentsRelevant"`
	Errors             []string `json:"errors"`
}

// UpsertRequest carries pre-chunked document content for indexing.
type UpsertRequest struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	Chunks     []struct {
		Section string `json:"section"`
		Text    string `json:"text"`
	} `json:"chunks"`
}

// Handler exposes the pipeline and index maintenance over HTTP.
type Handler struct {
	pipeline *usecase.AnswerPipeline
	jobRepo  domain.IndexJobRepository
}

// NewHandler creates the HTTP handler.
func NewHandler(pipeline *usecase.AnswerPipeline, jobRepo domain.IndexJobRepository) *Handler {
	return &Handler{pipeline: pipeline, jobRepo: jobRepo}
}

// Register binds routes on the echo instance.
func (h *Handler) Register(e *echo.Echo) {
	e.POST("/v1/query/answer", h.Answer)
	e.POST("/v1/query/answer/stream", h.AnswerStream)
	e.POST("/internal/index/upsert", h.UpsertIndex)
	e.POST("/internal/index/delete", h.DeleteIndex)
}

// Answer runs the pipeline and returns the complete response object. The
// pipeline never fails outward; an HTTP error here means a malformed request.
func (h *Handler) Answer(ctx echo.Context) error {
	var req AnswerRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if req.Question == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "question is required"})
	}

	result := h.pipeline.Execute(ctx.Request().Context(), domain.MedicalQuery{
		Question:       req.Question,
		Biomarkers:     req.Biomarkers,
		PatientContext: req.PatientContext,
	})

	return ctx.JSON(http.StatusOK, toResponse(result))
}

// AnswerStream runs the pipeline and delivers the answer as server-sent
// events: status, metadata, repeated token, then done or error.
func (h *Handler) AnswerStream(ctx echo.Context) error {
	var req AnswerRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if req.Question == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "question is required"})
	}

	resp := ctx.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)

	events := h.pipeline.Stream(ctx.Request().Context(), domain.MedicalQuery{
		Question:       req.Question,
		Biomarkers:     req.Biomarkers,
		PatientContext: req.PatientContext,
	})

	for event := range events {
		payload := event.Payload
		if result, ok := payload.(*usecase.PipelineResult); ok {
			payload = toResponse(result)
		}
		if err := writeSSE(resp, string(event.Kind), payload); err != nil {
			// Client went away; the pipeline stops at its next yield point.
			return nil
		}
		resp.Flush()
	}
	return nil
}

// UpsertIndex enqueues an indexing job processed by the background worker.
func (h *Handler) UpsertIndex(ctx echo.Context) error {
	var req UpsertRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if req.DocumentID == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "missing document_id"})
	}
	if len(req.Chunks) == 0 {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "missing chunks"})
	}

	// Same shape the payload takes after a JSONB round trip, so the worker
	// decodes enqueued and persisted jobs identically.
	chunks := make([]interface{}, len(req.Chunks))
	for i, chunk := range req.Chunks {
		chunks[i] = map[string]interface{}{"section": chunk.Section, "text": chunk.Text}
	}

	job := &domain.IndexJob{
		ID:      uuid.New(),
		JobType: "upsert_document",
		Payload: map[string]interface{}{
			"document_id": req.DocumentID,
			"title":       req.Title,
			"chunks":      chunks,
		},
		Status:    "new",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := h.jobRepo.Enqueue(ctx.Request().Context(), job); err != nil {
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return ctx.JSON(http.StatusAccepted, map[string]string{"job_id": job.ID.String(), "status": "queued"})
}

// DeleteIndex enqueues a document removal job.
func (h *Handler) DeleteIndex(ctx echo.Context) error {
	var body map[string]interface{}
	if err := ctx.Bind(&body); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	documentID, _ := body["document_id"].(string)
	if documentID == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "missing document_id"})
	}

	job := &domain.IndexJob{
		ID:        uuid.New(),
		JobType:   "delete_document",
		Payload:   map[string]interface{}{"document_id": documentID},
		Status:    "new",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := h.jobRepo.Enqueue(ctx.Request().Context(), job); err != nil {
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return ctx.JSON(http.StatusAccepted, map[string]string{"job_id": job.ID.String(), "status": "queued"})
}

func toResponse(result *usecase.PipelineResult) AnswerResponse {
	errs := result.Errors
	if errs == nil {
		errs = []string{}
	}
	return AnswerResponse{
		Answer:             result.Answer,
		GuardrailScore:     result.GuardrailScore,
		DocumentsRetrieved: result.DocumentsRetrieved,
		DocumentsRelevant:  result.DocumentsRelevant,
		Errors:             errs,
	}
}

func writeSSE(resp *echo.Response, event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(resp, "event: %s\ndata: %s\n\n", event, data)
	return err
}
