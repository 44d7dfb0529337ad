package middleware

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/arturoeanton/go-study-assistant/internal/domain"
	"github.com/gofiber/fiber/v3"
)

// AuditWriter defines how audit records are persisted.
type AuditWriter interface {
	WriteAudit(action, resource, resourceID, details, ip, userAgent string) error
}

// AuditMiddleware records every request in the activity log.
func AuditMiddleware(writer AuditWriter) fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()

		// Fiber reuses request buffers once the handler returns.
		method := strings.Clone(c.Method())
		path := strings.Clone(c.Path())
		ip := strings.Clone(c.IP())
		userAgent := strings.Clone(c.Get("User-Agent"))

		err := c.Next()

		details := map[string]any{
			"method":      method,
			"path":        path,
			"status":      c.Response().StatusCode(),
			"duration_ms": time.Since(start).Milliseconds(),
		}
		detailsJSON, _ := json.Marshal(details)
		action := ActionFor(method, path)

		go func() {
			if writeErr := writer.WriteAudit(action, "api", path, string(detailsJSON), ip, userAgent); writeErr != nil {
				slog.Error("failed to write audit log", "error", writeErr)
			}
		}()

		return err
	}
}

// ActionFor classifies a request for the activity feed.
func ActionFor(method, path string) string {
	if method != fiber.MethodPost {
		return domain.AuditActionHTTPRequest
	}
	switch {
	case strings.Contains(path, "/documents") && !strings.HasSuffix(path, "/search"):
		return domain.AuditActionDocumentUpload
	case strings.Contains(path, "/ai/chat"):
		return domain.AuditActionChat
	case strings.Contains(path, "/ai/generate"):
		return domain.AuditActionGenerate
	}
	return domain.AuditActionHTTPRequest
}
