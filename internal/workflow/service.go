// Package workflow turns natural-language instructions into workflow
// documents by prompting a chat-completion model and extracting the JSON
// object from its answer.
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric"

	"ai-workflows/backend/internal/completion"
	"ai-workflows/backend/internal/logging"
	"ai-workflows/backend/pkg/models"
)

// Generator produces a workflow document for an instruction.
type Generator interface {
	Extract(ctx context.Context, instruction string) (*Result, error)
}

// Result is a successful extraction.
type Result struct {
	// Raw is the extracted JSON object, compacted.
	Raw json.RawMessage
	// Content is the full model answer Raw was taken from.
	Content string
	Model   string
	Usage   *completion.Usage
}

// Document decodes Raw into the typed workflow view. Fields the model
// invented are dropped; missing fields stay zero.
func (r *Result) Document() (*models.WorkflowDocument, error) {
	var doc models.WorkflowDocument
	if err := json.Unmarshal(r.Raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode workflow document: %w", err)
	}
	return &doc, nil
}

// Options configures an Extractor.
type Options struct {
	Request  RequestOptions
	Strategy string
	// Meter defaults to the global OpenTelemetry meter provider.
	Meter metric.Meter
}

// Extractor is the service behind POST /ai-workflows.
type Extractor struct {
	client  completion.Client
	extract ExtractFunc
	opts    RequestOptions
	logger  *logging.Logger
	metrics *extractorMetrics
}

// NewExtractor creates a new Extractor.
func NewExtractor(client completion.Client, opts Options, logger *logging.Logger) (*Extractor, error) {
	extract, err := Strategy(opts.Strategy)
	if err != nil {
		return nil, err
	}
	m, err := newExtractorMetrics(opts.Meter)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Extractor{
		client:  client,
		extract: extract,
		opts:    opts.Request,
		logger:  logger,
		metrics: m,
	}, nil
}

// Extract makes exactly one upstream call for instruction and parses the
// workflow object out of the first choice. Errors are *UpstreamError or
// *MalformedOutputError.
func (e *Extractor) Extract(ctx context.Context, instruction string) (*Result, error) {
	start := time.Now()
	logger := e.logger.FromContext(ctx)

	result, err := e.extractOnce(ctx, instruction)
	if err != nil {
		kind := Kind(err)
		e.metrics.record(ctx, kind, time.Since(start))
		logger.Warn("workflow extraction failed",
			"kind", kind,
			"retryable", Retryable(err),
			"error", err.Error(),
			"prompt_length", len(instruction),
		)
		return nil, err
	}

	e.metrics.record(ctx, outcomeOK, time.Since(start))
	logger.Info("workflow extracted",
		"model", result.Model,
		"prompt_length", len(instruction),
		"workflow_bytes", len(result.Raw),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	if doc, err := result.Document(); err == nil {
		if unknown := UnknownTerms(doc); len(unknown) > 0 {
			logger.Warn("workflow uses terms outside the vocabulary",
				"steps", len(doc.Steps()),
				"unknown", strings.Join(unknown, ","),
			)
		}
	}
	return result, nil
}

func (e *Extractor) extractOnce(ctx context.Context, instruction string) (*Result, error) {
	req := BuildChatRequest(instruction, e.opts)

	reply, err := e.client.Complete(ctx, req)
	if err != nil {
		upstreamErr := &UpstreamError{Err: err}
		var statusErr *completion.StatusError
		if errors.As(err, &statusErr) {
			upstreamErr.StatusCode = statusErr.StatusCode
		}
		return nil, upstreamErr
	}

	content, ok := reply.FirstContent()
	if !ok {
		return nil, &UpstreamError{Err: errors.New("completion returned no choices")}
	}

	raw, err := e.extract(content)
	if err != nil {
		return nil, err
	}

	model := reply.Model
	if model == "" {
		model = req.Model
	}
	return &Result{
		Raw:     raw,
		Content: content,
		Model:   model,
		Usage:   reply.Usage,
	}, nil
}
