package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"ai-workflows/backend/internal/api"
	"ai-workflows/backend/internal/auth"
	"ai-workflows/backend/internal/config"
	"ai-workflows/backend/internal/logging"
	"ai-workflows/backend/internal/mcp"
	"ai-workflows/backend/internal/tls"
)

// NewHandler assembles the HTTP router: REST API, docs and MCP.
func NewHandler(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*echo.Echo, error) {
	extractor, err := NewExtractor(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create extractor: %w", err)
	}

	authz, err := auth.New(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("auth initialization failed: %w", err)
	}

	opts := api.ServerOptions{AllowOrigins: cfg.CORS.AllowOrigins}
	if authz.Enabled() {
		opts.Auth = echo.WrapMiddleware(authz.RequireAuth)
		logger.Info("bearer auth enabled", "issuer", cfg.Auth.Issuer)
	}

	mcpServer := mcp.NewServer(extractor, api.Version, logger)
	opts.MCP = mcp.Handler(mcpServer.GetMCPServer())

	return api.NewServer(api.NewHandler(extractor, logger), logger, opts), nil
}

// Serve runs the HTTP service until ctx is cancelled, then shuts down
// gracefully within the configured timeout.
func Serve(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	logger.Info("Starting AI workflow service",
		"environment", cfg.Environment,
		"model", cfg.Upstream.Model,
		"strategy", cfg.Extraction.Strategy,
		"json_mode", cfg.Upstream.JSONMode,
	)

	e, err := NewHandler(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if cfg.TLS.Enable {
		generated, err := tls.EnsureCert(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.Hostnames)
		if err != nil {
			return fmt.Errorf("tls setup failed: %w", err)
		}
		if generated {
			logger.Warn("generated self-signed certificate", "cert_file", cfg.TLS.CertFile, "hostnames", cfg.TLS.Hostnames)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "address", addr, "tls", cfg.TLS.Enable)
		if cfg.TLS.Enable {
			serverErrors <- server.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			serverErrors <- server.ListenAndServe()
		}
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownTimeout := cfg.HTTP.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
		if err := server.Close(); err != nil {
			logger.Error("Server close error", "error", err)
		}
		return err
	}

	logger.Info("Server stopped gracefully")
	return nil
}
