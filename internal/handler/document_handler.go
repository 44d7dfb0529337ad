package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/arturoeanton/go-study-assistant/internal/retrieval"
	"github.com/arturoeanton/go-study-assistant/internal/service"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

// DocumentHandler handles document upload, listing and search.
type DocumentHandler struct {
	documents *service.DocumentService
	tracker   *JobTracker
	maxUpload int64
}

// NewDocumentHandler creates a new document handler. maxUpload bounds PDF
// uploads in bytes.
func NewDocumentHandler(documents *service.DocumentService, tracker *JobTracker, maxUpload int64) *DocumentHandler {
	return &DocumentHandler{documents: documents, tracker: tracker, maxUpload: maxUpload}
}

// Register sets up document routes.
func (h *DocumentHandler) Register(router fiber.Router) {
	docs := router.Group("/documents")
	docs.Post("/", h.Create)
	docs.Post("/upload", h.Upload)
	docs.Get("/", h.List)
	docs.Get("/:id", h.Get)
	docs.Delete("/:id", h.Delete)
	docs.Get("/:id/chunks", h.Chunks)
	docs.Post("/:id/search", h.Search)
}

// Create registers a document from raw text and chunks it in the background.
func (h *DocumentHandler) Create(c fiber.Ctx) error {
	var body struct {
		Title string `json:"title"`
		Text  string `json:"text"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if strings.TrimSpace(body.Text) == "" {
		return badRequest(c, "text is required")
	}
	if strings.TrimSpace(body.Title) == "" {
		return badRequest(c, "title is required")
	}

	doc, err := h.documents.Create(c.Context(), body.Title, "", int64(len(body.Text)))
	if err != nil {
		return fail(c, err)
	}

	text := body.Text
	jobID := h.startJob(doc.ID, func(ctx context.Context, progress service.ProgressFunc) error {
		return h.documents.ProcessText(ctx, doc.ID, text, progress)
	})

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"document": doc,
		"job_id":   jobID,
	})
}

// Upload accepts a multipart PDF under the "file" field.
func (h *DocumentHandler) Upload(c fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "file is required")
	}
	if !strings.EqualFold(filepath.Ext(fh.Filename), ".pdf") {
		return badRequest(c, "only PDF files are supported")
	}
	if h.maxUpload > 0 && fh.Size > h.maxUpload {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
			"error": fmt.Sprintf("file exceeds %d bytes", h.maxUpload),
		})
	}

	f, err := fh.Open()
	if err != nil {
		return fail(c, fmt.Errorf("open upload: %w", err))
	}
	defer f.Close()

	// The multipart file does not outlive the request; keep a copy for the job.
	data, err := io.ReadAll(f)
	if err != nil {
		return fail(c, fmt.Errorf("read upload: %w", err))
	}

	title := c.FormValue("title")
	doc, err := h.documents.Create(c.Context(), title, fh.Filename, int64(len(data)))
	if err != nil {
		return fail(c, err)
	}

	jobID := h.startJob(doc.ID, func(ctx context.Context, progress service.ProgressFunc) error {
		return h.documents.ProcessPDF(ctx, doc.ID, bytes.NewReader(data), int64(len(data)), progress)
	})

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"document": doc,
		"job_id":   jobID,
	})
}

// startJob runs fn in the background and reports its stages to the tracker.
func (h *DocumentHandler) startJob(documentID string, fn func(context.Context, service.ProgressFunc) error) string {
	jobID := uuid.New().String()
	h.tracker.CreateJob(jobID, documentID, service.ProcessingSteps)

	go func() {
		err := fn(context.Background(), func(stage string, step int) {
			h.tracker.Advance(jobID, stage, step)
		})
		h.tracker.Finish(jobID, err)
	}()
	return jobID
}

// List returns all documents.
func (h *DocumentHandler) List(c fiber.Ctx) error {
	docs, err := h.documents.List(c.Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"documents": docs,
		"count":     len(docs),
	})
}

// Get returns a single document.
func (h *DocumentHandler) Get(c fiber.Ctx) error {
	doc, err := h.documents.Get(c.Context(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(doc)
}

// Delete removes a document.
func (h *DocumentHandler) Delete(c fiber.Ctx) error {
	if err := h.documents.Delete(c.Context(), c.Params("id")); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Chunks returns the ordered chunks of a document.
func (h *DocumentHandler) Chunks(c fiber.Ctx) error {
	chunks, err := h.documents.Chunks(c.Context(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"chunks": chunks,
		"count":  len(chunks),
	})
}

// Search ranks a document's chunks against a query and returns the scores.
func (h *DocumentHandler) Search(c fiber.Ctx) error {
	var body struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.Limit <= 0 {
		limit, err := strconv.Atoi(c.Query("limit", strconv.Itoa(retrieval.DefaultMaxChunks)))
		if err != nil || limit <= 0 {
			return badRequest(c, "limit must be a positive integer")
		}
		body.Limit = limit
	}

	results, err := h.documents.Search(c.Context(), c.Params("id"), body.Query, body.Limit)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"query":   body.Query,
		"results": results,
		"count":   len(results),
	})
}
