// Package mcpserver exposes the toolface.Registry over the Model Context
// Protocol, on both a stdio transport (for local agent clients) and a
// streamable-HTTP transport (for MCP_HTTP_ADDR). The teacher only shows
// MCP usage from the client side (internal/mcpclient/mcpclient.go, built
// on the same github.com/modelcontextprotocol/go-sdk/mcp package); this
// package generalizes that package's conventions (Implementation,
// ClientOptions-style options, content/result shapes) to the server side.
package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"

	mcppkg "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"docmind/internal/toolface"
	"docmind/internal/version"
)

// Server wraps an MCP server bound to a toolface.Registry.
type Server struct {
	registry toolface.Registry
	mcp      *mcppkg.Server
	log      zerolog.Logger
}

// New builds a Server exposing every operation in reg as an MCP tool.
func New(reg toolface.Registry, log zerolog.Logger) *Server {
	srv := mcppkg.NewServer(&mcppkg.Implementation{Name: "docmind", Version: version.Version}, nil)
	s := &Server{registry: reg, mcp: srv, log: log}
	for _, op := range reg.Operations() {
		s.registerTool(op)
	}
	return s
}

func (s *Server) registerTool(op toolface.Operation) {
	tool := &mcppkg.Tool{
		Name:        op.Name(),
		Description: op.Description(),
		InputSchema: op.JSONSchema(),
	}
	name := op.Name()
	s.mcp.AddTool(tool, func(ctx context.Context, req *mcppkg.CallToolRequest) (*mcppkg.CallToolResult, error) {
		raw, err := json.Marshal(req.Params.Arguments)
		if err != nil {
			raw = json.RawMessage("{}")
		}
		data, err := s.registry.Dispatch(ctx, name, raw)
		if err != nil {
			s.log.Error().Err(err).Str("tool", name).Msg("dispatch failed")
			return &mcppkg.CallToolResult{
				IsError: true,
				Content: []mcppkg.Content{&mcppkg.TextContent{Text: err.Error()}},
			}, nil
		}
		return &mcppkg.CallToolResult{
			Content: []mcppkg.Content{&mcppkg.TextContent{Text: string(data)}},
		}, nil
	})
}

// RunStdio serves the MCP protocol over stdin/stdout until ctx is canceled
// or the transport closes, the entry point used by cmd/docmind-server when
// launched as a subprocess MCP server.
func (s *Server) RunStdio(ctx context.Context) error {
	return s.mcp.Run(ctx, &mcppkg.StdioTransport{})
}

// HTTPHandler returns an http.Handler serving the streamable-HTTP MCP
// transport, mounted by cmd/docmind-server at MCP_HTTP_ADDR.
func (s *Server) HTTPHandler() http.Handler {
	return mcppkg.NewStreamableHTTPHandler(func(*http.Request) *mcppkg.Server { return s.mcp }, nil)
}
