package server

import (
	"github.com/mark3labs/mcp-go/server"
)

// Transport startup lives here; both methods block until the server
// stops, so neither is covered by unit tests.

// Serve runs the orchestrator over stdio until the client disconnects.
func (ms *MCPServer) Serve() error {
	ms.logger.Info("Serving MCP over stdio")
	return server.ServeStdio(ms.server)
}

// ServeSSE runs the orchestrator over HTTP/SSE on addr, rooted at /mcp.
func (ms *MCPServer) ServeSSE(addr string) error {
	ms.logger.Info("Serving MCP over HTTP/SSE", "address", addr, "base_path", "/mcp")
	sse := server.NewSSEServer(ms.server,
		server.WithBaseURL("http://"+addr),
		server.WithStaticBasePath("/mcp"),
	)
	return sse.Start(addr)
}
