package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/internal/presentation/graph"
	"github.com/aretw0/arbor/internal/presentation/tui"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// LibraryURI is the resource listing the description library.
const LibraryURI = "arbor://library"

// Output formats of the build tool.
const (
	FormatOutline = "outline"
	FormatMermaid = "mermaid"
)

// Server exposes arbor's resolver and builder as MCP tools.
type Server struct {
	blocks    *arbor.Blocks
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(blocks *arbor.Blocks, opts ...Option) *Server {
	s := &Server{
		blocks:    blocks,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("arbor-mcp", arbor.Version),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves MCP over SSE on port until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())
	httpServer := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
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

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("resolve",
		mcp.WithDescription("Fetch the description stored at an address (file://, http(s)://, lib:// or app-relative) without building it."),
		mcp.WithString("address", mcp.Required(), mcp.Description("Description address")),
	), s.handleResolve)

	s.mcpServer.AddTool(mcp.NewTool("build",
		mcp.WithDescription("Build a node tree from an address or an inline JSON description and render it."),
		mcp.WithString("address", mcp.Description("Description address (ignored when description is given)")),
		mcp.WithString("description", mcp.Description("Inline JSON description")),
		mcp.WithString("format", mcp.Description("outline (default) or mermaid"), mcp.Enum(FormatOutline, FormatMermaid)),
	), s.handleBuild)

	s.mcpServer.AddTool(mcp.NewTool("inspect",
		mcp.WithDescription("List the node types, registered functions and action types descriptions may use."),
	), s.handleInspect)
}

func (s *Server) handleResolve(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	address, err := request.RequireString("address")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	desc, err := s.blocks.Resolve(ctx, address)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("resolve failed: %v", err)), nil
	}
	jsonBytes, err := json.MarshalIndent(desc, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode failed: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleBuild(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var (
		root domain.Node
		err  error
	)
	if raw := request.GetString("description", ""); raw != "" {
		var desc map[string]any
		if err := json.Unmarshal([]byte(raw), &desc); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid description: %v", err)), nil
		}
		root, err = s.blocks.Build(ctx, desc)
	} else if address := request.GetString("address", ""); address != "" {
		root, err = s.blocks.BuildAddress(ctx, address)
	} else {
		return mcp.NewToolResultError("one of address or description is required"), nil
	}
	if err != nil {
		s.logger.Warn("MCP build failed", "err", err)
		return mcp.NewToolResultError(fmt.Sprintf("build failed: %v", err)), nil
	}

	switch format := request.GetString("format", FormatOutline); format {
	case FormatMermaid:
		return mcp.NewToolResultText(graph.GenerateMermaid(root, nil)), nil
	case FormatOutline:
		return mcp.NewToolResultText(tui.Outline(root)), nil
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown format %q", format)), nil
	}
}

func (s *Server) handleInspect(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(s.blocks.Inspect())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode failed: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(LibraryURI, "Description library",
		mcp.WithMIMEType("application/json"),
	), s.handleLibrary)
}

func (s *Server) handleLibrary(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	ids := []string{}
	if lib := s.blocks.Library(); lib != nil {
		listed, err := lib.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list library: %w", err)
		}
		ids = listed
	}
	jsonBytes, _ := json.Marshal(ids)
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      LibraryURI,
			MIMEType: "application/json",
			Text:     string(jsonBytes),
		},
	}, nil
}
