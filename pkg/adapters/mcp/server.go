package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/arbor/internal/presentation/graph"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/machine"
	"github.com/aretw0/arbor/pkg/tree"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	treeURI    = "arbor://tree"
	mermaidURI = "arbor://tree/mermaid"
)

// Engine defines the subset of *arbor.Engine exposed to agents.
type Engine interface {
	Tree() *tree.Tree
	Entities(ctx context.Context) ([]domain.EntityID, error)
	Snapshot(ctx context.Context, entity domain.EntityID) (*machine.Instance, error)
	History(ctx context.Context, entity domain.EntityID) ([]domain.HistoryRecord, error)
	SetStationary(ctx context.Context, entity domain.EntityID, stationary bool) error
	Restart(ctx context.Context, entity domain.EntityID) error
}

// Server wraps an Engine and exposes it as an MCP Server.
type Server struct {
	engine    Engine
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		engine:    engine,
		logger:    logger,
		mcpServer: server.NewMCPServer("arbor-mcp", version),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the SSE transport on port until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
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
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("get_tree",
		mcp.WithDescription("Get the state declarations in resolution order."),
	), s.handleGetTree)

	s.mcpServer.AddTool(mcp.NewTool("list_instances",
		mcp.WithDescription("List the attached entities."),
	), s.handleListInstances)

	s.mcpServer.AddTool(mcp.NewTool("get_instance",
		mcp.WithDescription("Get the current state, flags and history of one entity."),
		mcp.WithString("entity", mcp.Required(), mcp.Description("Entity id")),
	), s.handleGetInstance)

	s.mcpServer.AddTool(mcp.NewTool("get_history",
		mcp.WithDescription("Get the transition history of one entity, oldest first."),
		mcp.WithString("entity", mcp.Required(), mcp.Description("Entity id")),
		mcp.WithNumber("limit", mcp.Description("Keep only the most recent records (optional)")),
	), s.handleGetHistory)

	s.mcpServer.AddTool(mcp.NewTool("set_stationary",
		mcp.WithDescription("Freeze or release an entity. A stationary entity is never resolved."),
		mcp.WithString("entity", mcp.Required(), mcp.Description("Entity id")),
		mcp.WithBoolean("stationary", mcp.Required(), mcp.Description("New flag value")),
	), s.handleSetStationary)

	s.mcpServer.AddTool(mcp.NewTool("restart",
		mcp.WithDescription("Put a terminated entity back to its initial state."),
		mcp.WithString("entity", mcp.Required(), mcp.Description("Entity id")),
	), s.handleRestart)
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(treeURI, "State Tree",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		data, err := json.Marshal(s.engine.Tree().Specs())
		if err != nil {
			return nil, fmt.Errorf("failed to encode tree: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: treeURI, MIMEType: "application/json", Text: string(data)},
		}, nil
	})

	s.mcpServer.AddResource(mcp.NewResource(mermaidURI, "State Tree Diagram",
		mcp.WithMIMEType("text/plain"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: mermaidURI, MIMEType: "text/plain", Text: graph.GenerateMermaid(s.engine.Tree(), nil)},
		}, nil
	})
}

func (s *Server) handleGetTree(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.engine.Tree().Specs())
}

func (s *Server) handleListInstances(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entities, err := s.engine.Entities(ctx)
	if err != nil {
		return s.toolError("list_instances", err), nil
	}
	if entities == nil {
		entities = []domain.EntityID{}
	}
	return jsonResult(entities)
}

func (s *Server) handleGetInstance(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entity, err := request.RequireString("entity")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	inst, err := s.engine.Snapshot(ctx, domain.EntityID(entity))
	if err != nil {
		return s.toolError("get_instance", err), nil
	}
	return jsonResult(inst)
}

func (s *Server) handleGetHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entity, err := request.RequireString("entity")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit := request.GetInt("limit", -1)
	records, err := s.engine.History(ctx, domain.EntityID(entity))
	if err != nil {
		return s.toolError("get_history", err), nil
	}
	if limit >= 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	if records == nil {
		records = []domain.HistoryRecord{}
	}
	return jsonResult(records)
}

func (s *Server) handleSetStationary(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entity, err := request.RequireString("entity")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	stationary, err := request.RequireBool("stationary")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.engine.SetStationary(ctx, domain.EntityID(entity), stationary); err != nil {
		return s.toolError("set_stationary", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s stationary=%t", entity, stationary)), nil
}

func (s *Server) handleRestart(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entity, err := request.RequireString("entity")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.engine.Restart(ctx, domain.EntityID(entity)); err != nil {
		return s.toolError("restart", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s restarted", entity)), nil
}

// toolError reports engine failures to the agent as tool errors. Unknown
// entities and misuse are expected; anything else is also logged.
func (s *Server) toolError(tool string, err error) *mcp.CallToolResult {
	var perr *domain.ProgrammingError
	if !errors.Is(err, domain.ErrInstanceNotFound) && !errors.As(err, &perr) {
		s.logger.Error("MCP tool failed", "tool", tool, "error", err)
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", tool, err))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
