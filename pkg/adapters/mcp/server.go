// Package mcp exposes the diagnosis engine as a Model Context Protocol server.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/aretw0/rootcause"
	"github.com/aretw0/rootcause/internal/logging"
	"github.com/aretw0/rootcause/pkg/diagnosis"
	"github.com/aretw0/rootcause/pkg/domain"
	"github.com/aretw0/rootcause/pkg/rule"
	"github.com/aretw0/rootcause/pkg/trace"
)

const rulesURI = "rootcause://rules"

// Engine defines what the MCP server needs from the diagnosis engine.
type Engine interface {
	Diagnose(ctx context.Context, root *trace.Invocation, vars domain.SessionVariables) (*diagnosis.Report, error)
	Rules() []rule.Rule
}

// Server wraps the engine and exposes it as an MCP Server.
type Server struct {
	engine    Engine
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		engine:    engine,
		logger:    logger,
		mcpServer: server.NewMCPServer("rootcause-mcp", strings.TrimSpace(rootcause.Version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves MCP over SSE on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("Shutting down MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	// TOOL: diagnose
	diagnoseTool := mcp.NewTool("diagnose",
		mcp.WithDescription("Find the performance problems of an invocation tree and explain their root causes."),
		mcp.WithString("trace", mcp.Required(), mcp.Description("The invocation tree, as JSON or YAML")),
		mcp.WithString("variables", mcp.Description("JSON object of session variables, e.g. {\"baseline\": 500} (optional)")),
		mcp.WithOutputSchema[diagnosis.Report](),
	)
	s.mcpServer.AddTool(diagnoseTool, mcp.NewStructuredToolHandler(s.handleDiagnose))

	// TOOL: list_rules
	s.mcpServer.AddTool(mcp.NewTool("list_rules",
		mcp.WithDescription("List the diagnosis rules with the tag types they need and produce."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jsonBytes, err := json.Marshal(rule.DescribeAll(s.engine.Rules()))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("encode failed: %v", err)), nil
		}
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})
}

func (s *Server) handleDiagnose(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (diagnosis.Report, error) {
	text, _ := args["trace"].(string)
	root, err := decodeTrace(text)
	if err != nil {
		s.logger.Warn("MCP Diagnose: Trace rejected", "err", err, "size", len(text))
		return diagnosis.Report{}, fmt.Errorf("invalid trace: %w", err)
	}

	vars := domain.SessionVariables{}
	if varStr, ok := args["variables"].(string); ok && strings.TrimSpace(varStr) != "" {
		if err := json.Unmarshal([]byte(varStr), &vars); err != nil {
			return diagnosis.Report{}, fmt.Errorf("invalid variables: %w", err)
		}
	}

	report, err := s.engine.Diagnose(ctx, root, vars)
	if err != nil {
		s.logger.Error("MCP Diagnose: Failed", "trace_id", root.ID, "err", err)
		return diagnosis.Report{}, fmt.Errorf("diagnosis failed: %w", err)
	}
	return *report, nil
}

// decodeTrace reads JSON when the text looks like an object, YAML otherwise.
func decodeTrace(text string) (*trace.Invocation, error) {
	format := trace.FormatYAML
	if strings.HasPrefix(strings.TrimSpace(text), "{") {
		format = trace.FormatJSON
	}
	return trace.Decode(strings.NewReader(text), format)
}

func (s *Server) registerResources() {
	// EXPOSE: rootcause://rules
	s.mcpServer.AddResource(mcp.NewResource(rulesURI, "Diagnosis Rules",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, err := json.Marshal(rule.DescribeAll(s.engine.Rules()))
		if err != nil {
			return nil, fmt.Errorf("failed to describe rules: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      rulesURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
