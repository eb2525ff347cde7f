package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/asiloisad/pulsar-claude-chat/host"
	"github.com/asiloisad/pulsar-claude-chat/tools"
)

const (
	// ServerName identifies this MCP server to clients.
	ServerName = "pulsar-claude-chat"
	// ServerVersion is reported in the initialize handshake.
	ServerVersion = "1.0.0"
	// DefaultProtocolVersion is used when the client does not request one.
	DefaultProtocolVersion = "2025-06-18"

	// DefaultPortAttempts bounds the sequential port probe.
	DefaultPortAttempts = 20
)

// mcpSession records one MCP client handshake. Sessions are advisory:
// tools/call is never rejected for a missing or unknown session id.
type mcpSession struct {
	ProtocolVersion string
	ClientName      string
	ClientVersion   string
	CreatedAt       time.Time
}

// Server hosts the bridge endpoints on a loopback port.
type Server struct {
	registry *tools.Registry
	caps     host.Capabilities
	log      *slog.Logger
	router   *gin.Engine

	mu       sync.Mutex
	sessions map[string]mcpSession
	listener net.Listener
	httpSrv  *http.Server
	port     int
}

// New builds a Server around the given registry and host capabilities.
func New(registry *tools.Registry, caps host.Capabilities, log *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	s := &Server{
		registry: registry,
		caps:     caps,
		log:      log,
		router:   router,
		sessions: make(map[string]mcpSession),
	}

	router.POST("/mcp", s.handleMCP)
	router.DELETE("/mcp", s.handleMCPDelete)
	router.GET("/health", s.handleHealth)
	router.GET("/tools", s.handleToolsList)
	router.POST("/tools/:name", s.handleToolCall)

	return s
}

// corsMiddleware allows cross-origin requests from any editor webview and
// answers preflight directly.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Mcp-Session-Id")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Mcp-Session-Id")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Start binds a loopback port and begins serving. When startPort is taken,
// successive ports are probed (up to DefaultPortAttempts) before giving up.
func (s *Server) Start(startPort int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return fmt.Errorf("server already started")
	}

	listener, port, err := bindFirstFree(startPort, DefaultPortAttempts)
	if err != nil {
		return err
	}

	s.listener = listener
	s.port = port
	s.httpSrv = &http.Server{
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.log.Info("bridge server listening", "port", port)

	go func() {
		if err := s.httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("bridge server error", "error", err)
		}
	}()

	return nil
}

// bindFirstFree probes ports sequentially with real binds and keeps the
// first listener that succeeds.
func bindFirstFree(startPort, attempts int) (net.Listener, int, error) {
	var lastErr error
	for i := 0; i < attempts; i++ {
		port := startPort + i
		listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err == nil {
			return listener, port, nil
		}
		lastErr = err
	}
	return nil, 0, fmt.Errorf("no free port in range %d-%d: %w", startPort, startPort+attempts-1, lastErr)
}

// Port returns the bound port, or 0 before Start.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// URL returns the MCP endpoint URL for --mcp-config, or "" before Start.
func (s *Server) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == 0 {
		return ""
	}
	return fmt.Sprintf("http://127.0.0.1:%d/mcp", s.port)
}

// Shutdown stops the server, waiting for in-flight requests up to the
// context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpSrv
	s.httpSrv = nil
	s.listener = nil
	s.port = 0
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	s.log.Info("bridge server shutting down")
	return srv.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
