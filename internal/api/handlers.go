// Package api contains the HTTP handlers for the AI workflow service
package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"ai-workflows/backend/internal/logging"
	"ai-workflows/backend/internal/workflow"
	"ai-workflows/backend/pkg/models"
)

const (
	// ServiceName is reported by the health check and used for telemetry.
	ServiceName = "ai-workflows"

	// HeaderErrorKind tells clients which failure class produced a 500.
	HeaderErrorKind = "X-Error-Kind"
)

// Version is set at build time.
var Version = "dev"

// Handler contains HTTP handlers for the workflow service REST API
type Handler struct {
	generator workflow.Generator
	logger    *logging.Logger
}

// NewHandler creates a new Handler with required dependencies
func NewHandler(generator workflow.Generator, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Handler{generator: generator, logger: logger}
}

// HandleHealth returns basic health status (always returns 200 OK)
// (GET /health)
func (h *Handler) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, models.HealthStatus{
		Status:            "ok",
		Timestamp:         time.Now(),
		Service:           ServiceName,
		Version:           Version,
		VocabularyVersion: workflow.VocabularyVersion,
	})
}

// GenerateWorkflow converts a natural-language prompt into a workflow
// document. Both failure kinds answer 500 with {"error": message}.
// (POST /ai-workflows)
func (h *Handler) GenerateWorkflow(c echo.Context) error {
	var req models.GenerateWorkflowRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body: " + bindMessage(err)})
	}

	ctx := c.Request().Context()
	result, err := h.generator.Extract(ctx, req.Prompt)
	if err != nil {
		if kind := workflow.Kind(err); kind != "" {
			c.Response().Header().Set(HeaderErrorKind, kind)
		}
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
	}

	return c.JSONBlob(http.StatusOK, result.Raw)
}

func bindMessage(err error) string {
	if he, ok := err.(*echo.HTTPError); ok {
		if msg, ok := he.Message.(string); ok {
			return msg
		}
	}
	return err.Error()
}
