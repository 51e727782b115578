// Package mcp exposes workflow generation as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"ai-workflows/backend/internal/logging"
	"ai-workflows/backend/internal/workflow"
)

// BasePath is where the MCP endpoints are mounted.
const BasePath = "/mcp"

type Server struct {
	mcpServer *server.MCPServer
	generator workflow.Generator
	logger    *logging.Logger
}

func NewServer(generator workflow.Generator, version string, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Server{
		mcpServer: server.NewMCPServer(
			"AI Workflows",
			version,
			server.WithToolCapabilities(true),
		),
		generator: generator,
		logger:    logger,
	}

	s.registerTools()
	return s
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"generate_workflow",
			mcp.WithDescription("Turn a natural-language instruction into a workflow document"),
			mcp.WithString("prompt", mcp.Required(), mcp.Description("What the workflow should do")),
		),
		s.handleGenerateWorkflow,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_vocabulary",
			mcp.WithDescription("List the trigger models and actions a workflow may use"),
		),
		s.handleListVocabulary,
	)
}

func (s *Server) handleGenerateWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	prompt, ok := args["prompt"].(string)
	if !ok || prompt == "" {
		return mcp.NewToolResultError("Missing required parameter: prompt"), nil
	}

	result, err := s.generator.Extract(ctx, prompt)
	if err != nil {
		s.logger.FromContext(ctx).Warn("mcp generate_workflow failed", "error", err, "kind", workflow.Kind(err))
		return mcp.NewToolResultError(fmt.Sprintf("Failed to generate workflow (%s): %v", workflow.Kind(err), err)), nil
	}

	return mcp.NewToolResultText(string(result.Raw)), nil
}

func (s *Server) handleListVocabulary(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(workflow.CurrentVocabulary())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode vocabulary: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// Handler serves the MCP transports under BasePath: streamable HTTP at
// BasePath itself and the SSE pair at BasePath+"/sse" and BasePath+"/message".
func Handler(mcpServer *server.MCPServer) http.Handler {
	sseServer := server.NewSSEServer(mcpServer, server.WithStaticBasePath(BasePath))
	streamable := server.NewStreamableHTTPServer(mcpServer, server.WithEndpointPath(BasePath))

	mux := http.NewServeMux()
	mux.Handle(BasePath, streamable)
	mux.Handle(BasePath+"/sse", sseServer)
	mux.Handle(BasePath+"/message", sseServer)
	return mux
}
