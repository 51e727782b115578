package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"ai-workflows/backend/internal/auth"
	"ai-workflows/backend/internal/logging"
	"ai-workflows/backend/pkg/models"
)

// ServerOptions configures the router built by NewServer.
type ServerOptions struct {
	AllowOrigins []string
	// Auth guards POST /ai-workflows and the MCP routes when non-nil.
	Auth echo.MiddlewareFunc
	// MCP is mounted under /mcp when non-nil.
	MCP http.Handler
}

// NewServer builds the echo router with middleware and all routes.
func NewServer(h *Handler, logger *logging.Logger, opts ServerOptions) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetOutput(logger.Writer())
	e.HTTPErrorHandler = errorHandler(logger)

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, id string) {
			r := c.Request()
			c.SetRequest(r.WithContext(logging.WithRequestID(r.Context(), id)))
		},
	}))
	e.Use(otelecho.Middleware(ServiceName))
	e.Use(requestLogger(logger))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: opts.AllowOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
	}))

	var guards []echo.MiddlewareFunc
	if opts.Auth != nil {
		guards = append(guards, opts.Auth)
	}

	e.GET("/health", h.HandleHealth)
	e.POST("/ai-workflows", h.GenerateWorkflow, guards...)

	// expose OpenAPI spec and Swagger UI
	e.GET("/openapi.yaml", SpecHandler)
	e.GET("/docs", SwaggerHandler)

	// MCP tools reach the same upstream as /ai-workflows
	if opts.MCP != nil {
		e.Any("/mcp", echo.WrapHandler(opts.MCP), guards...)
		e.Any("/mcp/*", echo.WrapHandler(opts.MCP), guards...)
	}

	return e
}

func requestLogger(logger *logging.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"request_id", v.RequestID,
				"remote_ip", v.RemoteIP,
			}
			if subject := auth.Subject(c.Request().Context()); subject != "" {
				fields = append(fields, "subject", subject)
			}
			if v.Status >= http.StatusInternalServerError {
				logger.Warn("request failed", fields...)
				return nil
			}
			logger.Info("request", fields...)
			return nil
		},
	})
}

// errorHandler renders every echo error as {"error": message}.
func errorHandler(logger *logging.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		msg := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			msg = fmt.Sprint(he.Message)
		} else {
			logger.FromContext(c.Request().Context()).Error("unhandled error", "error", err)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, models.ErrorResponse{Error: msg})
		}
		if err != nil {
			logger.Error("failed to write error response", "error", err)
		}
	}
}
