package handler

import (
	"errors"
	"log/slog"

	"github.com/arturoeanton/go-study-assistant/internal/port"
	"github.com/gofiber/fiber/v3"
)

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, port.ErrDocumentNotFound), errors.Is(err, port.ErrGeneratorNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, port.ErrDocumentNotReady):
		return fiber.StatusConflict
	case errors.Is(err, port.ErrEmptyQuery), errors.Is(err, port.ErrNoText):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

// fail writes err as a JSON error body. Internal errors are logged.
func fail(c fiber.Ctx, err error) error {
	status := statusFor(err)
	if status == fiber.StatusInternalServerError {
		slog.Error("request failed", "path", c.Path(), "error", err)
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func badRequest(c fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}
