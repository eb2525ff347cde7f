// Package bridge exposes the editor's tool registry over HTTP for the
// Claude CLI. One server speaks two dialects on the same port: MCP
// JSON-RPC 2.0 at POST /mcp for the CLI's --mcp-config integration, and a
// small REST surface (/health, /tools) for diagnostics and direct tool
// invocation.
//
// The server binds to 127.0.0.1 only. When the requested port is taken it
// probes forward sequentially until a free port is found; Port() reports
// the port actually bound.
package bridge
