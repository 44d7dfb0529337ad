package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/arturoeanton/go-study-assistant/internal/domain"
	"github.com/arturoeanton/go-study-assistant/internal/service"
	"github.com/gofiber/fiber/v3"
)

// aiTimeout bounds a single model call made on behalf of a request.
const aiTimeout = 2 * time.Minute

// AIHandler handles chat, concept explanation and study material generation.
type AIHandler struct {
	study *service.StudyService
}

// NewAIHandler creates a new AI handler.
func NewAIHandler(study *service.StudyService) *AIHandler {
	return &AIHandler{study: study}
}

// Register sets up AI routes.
func (h *AIHandler) Register(router fiber.Router) {
	ai := router.Group("/ai")
	ai.Post("/chat", h.Chat)
	ai.Post("/chat/stream", h.ChatStream)
	ai.Post("/explain-concept", h.ExplainConcept)
	ai.Post("/generate-flashcards", h.generate("flashcards"))
	ai.Post("/generate-quiz", h.generate("quiz"))
	ai.Post("/generate-summary", h.generate("summary"))
	ai.Post("/generate/:kind", h.Generate)
	ai.Get("/generators", h.ListGenerators)
	ai.Get("/chat-history/:documentId", h.ChatHistory)
	ai.Get("/generations/:documentId", h.Generations)
}

type questionRequest struct {
	DocumentID string `json:"document_id"`
	Question   string `json:"question"`
}

func (r questionRequest) validate() string {
	switch {
	case r.DocumentID == "":
		return "document_id is required"
	case strings.TrimSpace(r.Question) == "":
		return "question is required"
	}
	return ""
}

// Chat answers a question about a document.
func (h *AIHandler) Chat(c fiber.Ctx) error {
	var body questionRequest
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if msg := body.validate(); msg != "" {
		return badRequest(c, msg)
	}

	ctx, cancel := context.WithTimeout(c.Context(), aiTimeout)
	defer cancel()

	answer, err := h.study.Chat(ctx, body.DocumentID, body.Question)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"question":        body.Question,
		"answer":          answer.Answer,
		"relevant_chunks": answer.RelevantChunks,
	})
}

// ChatStream answers a question as Server-Sent Events: one "chunks" event
// with the relevant chunk indices, "token" events, then "done". A stream
// that breaks off ends with an "error" event instead of "done".
func (h *AIHandler) ChatStream(c fiber.Ctx) error {
	var body questionRequest
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if msg := body.validate(); msg != "" {
		return badRequest(c, msg)
	}

	ctx, cancel := context.WithTimeout(context.Background(), aiTimeout)
	stream, chunks, err := h.study.ChatStream(ctx, body.DocumentID, body.Question)
	if err != nil {
		cancel()
		return fail(c, err)
	}

	setSSEHeaders(c)
	return c.SendStreamWriter(func(w *bufio.Writer) {
		defer cancel()

		writeEvent(w, "chunks", fiber.Map{"relevant_chunks": domain.ChunkIndices(chunks)})
		if err := w.Flush(); err != nil {
			return
		}
		for chunk := range stream {
			if chunk.Err != nil {
				writeEvent(w, "error", fiber.Map{"error": "answer stream interrupted"})
				_ = w.Flush()
				return
			}
			writeEvent(w, "token", fiber.Map{"content": chunk.Text})
			if err := w.Flush(); err != nil {
				return
			}
		}
		writeEvent(w, "done", fiber.Map{})
		_ = w.Flush()
	})
}

func writeEvent(w *bufio.Writer, event string, payload any) {
	data, _ := json.Marshal(payload)
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}

// ExplainConcept explains a concept using the document as context.
func (h *AIHandler) ExplainConcept(c fiber.Ctx) error {
	var body struct {
		DocumentID string `json:"document_id"`
		Concept    string `json:"concept"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.DocumentID == "" || strings.TrimSpace(body.Concept) == "" {
		return badRequest(c, "document_id and concept are required")
	}

	ctx, cancel := context.WithTimeout(c.Context(), aiTimeout)
	defer cancel()

	exp, err := h.study.ExplainConcept(ctx, body.DocumentID, body.Concept)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(exp)
}

type generateRequest struct {
	DocumentID string `json:"document_id"`
	Count      int    `json:"count"`
}

func (h *AIHandler) generate(kind string) fiber.Handler {
	return func(c fiber.Ctx) error {
		var body generateRequest
		if err := c.Bind().JSON(&body); err != nil {
			return badRequest(c, "invalid request body")
		}
		if body.DocumentID == "" {
			return badRequest(c, "document_id is required")
		}
		if body.Count < 0 {
			return badRequest(c, "count must not be negative")
		}

		ctx, cancel := context.WithTimeout(c.Context(), aiTimeout)
		defer cancel()

		gen, err := h.study.Generate(ctx, body.DocumentID, kind, body.Count)
		if err != nil {
			return fail(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(gen)
	}
}

// Generate runs the generator named in the path.
func (h *AIHandler) Generate(c fiber.Ctx) error {
	return h.generate(c.Params("kind"))(c)
}

// ListGenerators returns the available generators with descriptions.
func (h *AIHandler) ListGenerators(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"generators": h.study.Generators(),
	})
}

// ChatHistory returns the conversation recorded for a document.
func (h *AIHandler) ChatHistory(c fiber.Ctx) error {
	msgs, err := h.study.ChatHistory(c.Context(), c.Params("documentId"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"messages": msgs,
		"count":    len(msgs),
	})
}

// Generations returns the study material generated for a document.
func (h *AIHandler) Generations(c fiber.Ctx) error {
	gens, err := h.study.Generations(c.Context(), c.Params("documentId"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"generations": gens,
		"count":       len(gens),
	})
}
